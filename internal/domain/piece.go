package domain

// PieceKind doubles as the board cell value a locked piece leaves behind.
type PieceKind int

const (
	KindI PieceKind = iota + 1
	KindO
	KindT
	KindL
	KindJ
	KindS
	KindZ
)

// AllKinds is the content of one bag.
var AllKinds = [7]PieceKind{KindI, KindO, KindT, KindL, KindJ, KindS, KindZ}

var kindNames = map[PieceKind]string{
	KindI: "I", KindO: "O", KindT: "T", KindL: "L", KindJ: "J", KindS: "S", KindZ: "Z",
}

func (k PieceKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "?"
}

func (k PieceKind) Valid() bool {
	return k >= KindI && k <= KindZ
}

// Shape is an occupancy mask, 1 where the piece has a block.
type Shape [][]int

var baseShapes = map[PieceKind]Shape{
	KindI: {
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	},
	KindO: {
		{1, 1},
		{1, 1},
	},
	KindT: {
		{0, 1, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindL: {
		{0, 0, 1},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindJ: {
		{1, 0, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindS: {
		{0, 1, 1},
		{1, 1, 0},
		{0, 0, 0},
	},
	KindZ: {
		{1, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	},
}

// rotationTable[kind][r] is the mask of kind at rotation r. Built once and never mutated.
var rotationTable = buildRotationTable()

func buildRotationTable() map[PieceKind][4]Shape {
	table := make(map[PieceKind][4]Shape, len(baseShapes))
	for kind, base := range baseShapes {
		var states [4]Shape
		states[0] = base
		for r := 1; r < 4; r++ {
			if kind == KindO {
				states[r] = base
				continue
			}
			states[r] = rotateClockwise(states[r-1])
		}
		table[kind] = states
	}
	return table
}

func rotateClockwise(s Shape) Shape {
	n := len(s)
	out := make(Shape, n)
	for i := range out {
		out[i] = make([]int, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[j][n-1-i] = s[i][j]
		}
	}
	return out
}

// ShapeFor returns the table mask for kind at rotation.
func ShapeFor(kind PieceKind, rotation int) Shape {
	return rotationTable[kind][((rotation%4)+4)%4]
}

// Piece is a value: every transform returns a new Piece.
type Piece struct {
	Kind     PieceKind `json:"kind"`
	Rotation int       `json:"rotation"`
	Shape    Shape     `json:"shape"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
}

// NewPiece places kind at rotation 0 on the spawn anchor.
func NewPiece(kind PieceKind) Piece {
	shape := ShapeFor(kind, 0)
	return Piece{
		Kind:     kind,
		Rotation: 0,
		Shape:    shape,
		X:        (Width - len(shape[0])) / 2,
		Y:        0,
	}
}

// Cells returns the absolute board coordinates of every occupied cell as (x, y) pairs.
func (p Piece) Cells() [][2]int {
	cells := make([][2]int, 0, 4)
	for y, row := range p.Shape {
		for x, v := range row {
			if v != 0 {
				cells = append(cells, [2]int{p.X + x, p.Y + y})
			}
		}
	}
	return cells
}

// Mask returns a copy of the occupancy mask that callers may keep.
func (p Piece) Mask() Shape {
	out := make(Shape, len(p.Shape))
	for i, row := range p.Shape {
		out[i] = append([]int(nil), row...)
	}
	return out
}
