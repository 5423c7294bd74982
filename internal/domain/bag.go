package domain

// Rand is the part of *math/rand.Rand the engine needs.
type Rand interface {
	Intn(n int) int
}

// Shuffle returns a Fisher-Yates permutation of all seven kinds.
func Shuffle(rng Rand) []PieceKind {
	bag := make([]PieceKind, len(AllKinds))
	copy(bag, AllKinds[:])
	for i := len(bag) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		bag[i], bag[j] = bag[j], bag[i]
	}
	return bag
}

// refill threshold: a new bag is appended once at most this many kinds remain
const bagRefillAt = 1

// Spawn pops the next kind off queue, topping it up with a full bag first when it runs low.
// The returned queue never shares its backing array with the argument.
func Spawn(queue []PieceKind, rng Rand) (Piece, []PieceKind) {
	next := make([]PieceKind, len(queue), len(queue)+len(AllKinds))
	copy(next, queue)
	if len(next) <= bagRefillAt {
		next = append(next, Shuffle(rng)...)
	}
	return NewPiece(next[0]), next[1:]
}
