package domain

// Board is indexed [row][column]; row 0 is the top.
type Board [][]Cell

func NewBoard() Board {
	board := make(Board, Height)
	for i := range board {
		board[i] = make([]Cell, Width)
	}
	return board
}

// this creates a deep copy of the board
func CopyBoard(board Board) Board {
	newBoard := make(Board, len(board))
	for i := range board {
		newBoard[i] = make([]Cell, len(board[i]))
		copy(newBoard[i], board[i])
	}
	return newBoard
}

// IsValidMove reports whether every block of p is inside the walls, above the floor and,
// once on the visible board, on an empty cell. Rows above 0 are the spawn buffer.
func IsValidMove(p Piece, board Board) bool {
	for _, c := range p.Cells() {
		x, y := c[0], c[1]
		if x < 0 || x >= Width || y >= Height {
			return false
		}
		if y >= 0 && board[y][x] != Empty {
			return false
		}
	}
	return true
}

// Move translates without validating.
func Move(p Piece, dx, dy int) Piece {
	p.X += dx
	p.Y += dy
	return p
}

// wall kick offsets tried in order when a plain rotation collides
var kickOffsets = [][2]int{
	{-1, 0},
	{1, 0},
	{0, -1},
	{-2, 0},
	{2, 0},
}

// Rotate turns p clockwise. If neither the plain rotation nor any kick fits,
// p is returned unchanged.
func Rotate(p Piece, board Board) Piece {
	if p.Kind == KindO {
		return p
	}

	candidate := p
	candidate.Rotation = (p.Rotation + 1) % 4
	candidate.Shape = ShapeFor(p.Kind, candidate.Rotation)

	if IsValidMove(candidate, board) {
		return candidate
	}

	for _, kick := range kickOffsets {
		kicked := Move(candidate, kick[0], kick[1])
		if IsValidMove(kicked, board) {
			return kicked
		}
	}

	return p
}

// MergeIntoBoard returns a new board with p written in. Out of bounds blocks are dropped.
func MergeIntoBoard(p Piece, board Board) Board {
	merged := CopyBoard(board)
	for _, c := range p.Cells() {
		x, y := c[0], c[1]
		if y < 0 || y >= len(merged) || x < 0 || x >= len(merged[y]) {
			continue
		}
		merged[y][x] = Cell(p.Kind)
	}
	return merged
}

func isRowComplete(row []Cell) bool {
	for _, v := range row {
		if v == Empty {
			return false
		}
	}
	return true
}

// ClearLines removes every complete row and pads the top with empty rows.
func ClearLines(board Board) (Board, int) {
	kept := make(Board, 0, len(board))
	for _, row := range board {
		if isRowComplete(row) {
			continue
		}
		kept = append(kept, append([]Cell(nil), row...))
	}

	cleared := len(board) - len(kept)
	result := make(Board, 0, len(board))
	for i := 0; i < cleared; i++ {
		result = append(result, make([]Cell, Width))
	}
	result = append(result, kept...)
	return result, cleared
}

// CreateGarbageLine returns a row of garbage with one random hole.
func CreateGarbageLine(rng Rand) []Cell {
	row := make([]Cell, Width)
	hole := rng.Intn(Width)
	for x := range row {
		if x != hole {
			row[x] = Garbage
		}
	}
	return row
}

// AddGarbageLines drops the top n rows and pushes n garbage rows in at the bottom.
func AddGarbageLines(board Board, n int, rng Rand) Board {
	if n <= 0 {
		return CopyBoard(board)
	}
	if n > len(board) {
		n = len(board)
	}

	result := CopyBoard(board[n:])
	for i := 0; i < n; i++ {
		result = append(result, CreateGarbageLine(rng))
	}
	return result
}

// Occupancy flattens the board to 0/1 for spectators.
func Occupancy(board Board) [][]int {
	grid := make([][]int, len(board))
	for y, row := range board {
		grid[y] = make([]int, len(row))
		for x, v := range row {
			if v != Empty {
				grid[y][x] = 1
			}
		}
	}
	return grid
}
