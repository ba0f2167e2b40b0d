package game

const (
	spawnX     = 4
	startSpeed = 1000
	minSpeed   = 100

	linesPerLevel = 7
	pointsPerLine = 100
)

// Session is one player's entire game state. It is owned by a single writer
// (the world loop); nothing here is safe for concurrent use.
type Session struct {
	Board     Board
	Current   *Piece
	NextPiece *Piece
	X, Y      int

	Score             int
	Level             int
	Speed             int // descent interval in ms
	LinesSinceLevelUp int
	TotalLinesCleared int
	GameOver          bool

	Source Source
}

func NewSession(src Source) *Session {
	if src == nil {
		src = RandomSource{}
	}
	s := &Session{
		Board:     NewBoard(),
		Current:   src.Next(),
		NextPiece: src.Next(),
		X:         spawnX,
		Y:         0,
		Level:     1,
		Speed:     startSpeed,
		Source:    src,
	}
	s.ghost()
	return s
}

// collidesAt reports whether shape anchored at (px, py) hits a wall, the
// floor or a locked cell. Negative y is legal: pieces spawn partly above the
// visible board.
func (s *Session) collidesAt(shape [][]bool, px, py int) bool {
	for y, row := range shape {
		for x, filled := range row {
			if !filled {
				continue
			}
			nx, ny := px+x, py+y
			if nx < 0 || nx >= Width || ny >= Height {
				return true
			}
			if ny >= 0 {
				if c := s.Board[ny][nx]; c != CellEmpty && c != CellPreview {
					return true
				}
			}
		}
	}
	return false
}

// Collides probes the active piece shifted by (dx, dy).
func (s *Session) Collides(dx, dy int) bool {
	return s.collidesAt(s.Current.Shape, s.X+dx, s.Y+dy)
}

// fix locks the active piece into the board and returns the coordinates it
// wrote. Locking inside the spawn buffer means the stack reached the top.
func (s *Session) fix() []Pos {
	var out []Pos
	for y, row := range s.Current.Shape {
		for x, filled := range row {
			if !filled {
				continue
			}
			gx, gy := s.X+x, s.Y+y
			if gx < 0 || gx >= Width || gy < 0 || gy >= Height {
				continue
			}
			s.Board[gy][gx] = s.Current.Color
			if gy < BufferRows {
				s.GameOver = true
			}
			out = append(out, Pos{X: gx, Y: gy})
		}
	}
	return out
}

// ghost recomputes the drop preview: wipe the old marks, probe down to the
// resting row, mark the cells the piece would occupy there.
func (s *Session) ghost() {
	drop := 0
	for !s.Collides(0, drop+1) {
		drop++
	}
	for y := range s.Board {
		for x, c := range s.Board[y] {
			if c == CellPreview {
				s.Board[y][x] = CellEmpty
			}
		}
	}
	for y, row := range s.Current.Shape {
		for x, filled := range row {
			if !filled {
				continue
			}
			gx, gy := s.X+x, s.Y+y+drop
			if gx >= 0 && gx < Width && gy >= 0 && gy < Height && s.Board[gy][gx] == CellEmpty {
				s.Board[gy][gx] = CellPreview
			}
		}
	}
}

// clearLines removes every full row, pays out score and handles leveling.
// Preview marks never count as occupied.
func (s *Session) clearLines() (cleared int, leveled bool) {
	kept := make(Board, 0, Height)
	for _, row := range s.Board {
		full := true
		for _, c := range row {
			if c == CellEmpty || c == CellPreview {
				full = false
				break
			}
		}
		if !full {
			kept = append(kept, row)
		}
	}
	cleared = Height - len(kept)
	if cleared == 0 {
		return 0, false
	}

	fresh := make(Board, 0, Height)
	for i := 0; i < cleared; i++ {
		fresh = append(fresh, make([]Cell, Width))
	}
	s.Board = append(fresh, kept...)

	s.Score += cleared * pointsPerLine
	s.TotalLinesCleared += cleared
	s.LinesSinceLevelUp += cleared
	for s.LinesSinceLevelUp >= linesPerLevel {
		s.LinesSinceLevelUp -= linesPerLevel
		s.Level++
		s.Speed = max(minSpeed, s.Speed*77/100)
		leveled = true
	}
	return cleared, leveled
}

// RenderGrid returns a copy of the board with the active piece overlaid —
// the grid clients actually draw.
func (s *Session) RenderGrid() [][]Cell {
	out := make([][]Cell, Height)
	for y, row := range s.Board {
		out[y] = append([]Cell(nil), row...)
	}
	for y, row := range s.Current.Shape {
		for x, filled := range row {
			if !filled {
				continue
			}
			gx, gy := s.X+x, s.Y+y
			if gx >= 0 && gx < Width && gy >= 0 && gy < Height {
				out[gy][gx] = s.Current.Color
			}
		}
	}
	return out
}
