package game

import "math/rand"

// Cell is one board square: empty, a locked color, or the drop preview.
type Cell string

const (
	CellEmpty   Cell = ""
	CellPreview Cell = "hover"
)

type Kind string

const (
	KindI Kind = "I"
	KindJ Kind = "J"
	KindL Kind = "L"
	KindO Kind = "O"
	KindS Kind = "S"
	KindT Kind = "T"
	KindZ Kind = "Z"
)

var Kinds = []Kind{KindI, KindJ, KindL, KindO, KindS, KindT, KindZ}

var colors = map[Kind]Cell{
	KindI: "cyan",
	KindJ: "blue",
	KindL: "orange",
	KindO: "yellow",
	KindS: "green",
	KindT: "purple",
	KindZ: "red",
}

var shapes = map[Kind][][]int{
	KindI: {
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	},
	KindJ: {
		{1, 0, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindL: {
		{0, 0, 1},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindO: {
		{1, 1},
		{1, 1},
	},
	KindS: {
		{0, 1, 1},
		{1, 1, 0},
		{0, 0, 0},
	},
	KindT: {
		{0, 1, 0},
		{1, 1, 1},
		{0, 0, 0},
	},
	KindZ: {
		{1, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	},
}

// Piece is one falling tetromino. Shape is mutated in place by rotation, so
// every Piece needs its own copy of the template matrix.
type Piece struct {
	Kind  Kind
	Shape [][]bool
	Color Cell
}

func NewPiece(k Kind) *Piece {
	tpl := shapes[k]
	shape := make([][]bool, len(tpl))
	for y, row := range tpl {
		shape[y] = make([]bool, len(row))
		for x, v := range row {
			shape[y][x] = v == 1
		}
	}
	return &Piece{Kind: k, Shape: shape, Color: colors[k]}
}

func RandomKind() Kind {
	return Kinds[rand.Intn(len(Kinds))]
}

// Source deals the session its next pieces. Solo games draw at random; room
// games draw from the room's shared queue so every member sees the same order.
type Source interface {
	Next() *Piece
}

type RandomSource struct{}

func (RandomSource) Next() *Piece { return NewPiece(RandomKind()) }

// rotated returns the clockwise rotation of shape without touching it.
func rotated(shape [][]bool) [][]bool {
	rows, cols := len(shape), len(shape[0])
	out := make([][]bool, cols)
	for x := 0; x < cols; x++ {
		out[x] = make([]bool, rows)
		for y := 0; y < rows; y++ {
			out[x][rows-1-y] = shape[y][x]
		}
	}
	return out
}
