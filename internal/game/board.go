package game

const (
	Width  = 10
	Height = 22
	// The top two rows are a hidden spawn buffer and are never rendered by
	// clients. A piece locked inside them ends the game.
	BufferRows = 2
)

type Board [][]Cell

func NewBoard() Board {
	b := make(Board, Height)
	for y := range b {
		b[y] = make([]Cell, Width)
	}
	return b
}

type Pos struct {
	X int
	Y int
}
