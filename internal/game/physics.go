package game

// MoveResult describes what a move (or drop) did to the session.
type MoveResult struct {
	Moved     bool  // piece shifted without locking
	Locked    bool  // downward move was blocked: piece fixed, next spawned
	Fixed     []Pos // cells written by the lock, for client effects
	Cleared   int
	LeveledUp bool // speed changed, descent timer needs rescheduling
	GameOver  bool
}

// Wall-kick attempts, tried in order after the unshifted rotation collides.
var (
	kicksI     = []Pos{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {-2, 0}, {2, 0}}
	kicksOther = []Pos{{-1, 0}, {1, 0}, {0, -1}}
)

// Move attempts to shift the active piece by one cell. A blocked sideways
// move is a plain no-op. A blocked downward move locks the piece, clears
// lines and spawns the next one; if the fresh piece collides immediately the
// game is over.
func (s *Session) Move(dx, dy int) MoveResult {
	if s.GameOver {
		return MoveResult{}
	}
	if s.Collides(dx, dy) {
		if dy != 1 {
			return MoveResult{}
		}
		res := MoveResult{Locked: true}
		res.Fixed = s.fix()
		res.Cleared, res.LeveledUp = s.clearLines()
		s.Current = s.NextPiece
		s.NextPiece = s.Source.Next()
		s.X, s.Y = spawnX, 0
		if s.GameOver || s.Collides(0, 0) {
			s.GameOver = true
			res.GameOver = true
			return res
		}
		s.ghost()
		return res
	}
	s.X += dx
	s.Y += dy
	s.ghost()
	return MoveResult{Moved: true}
}

// Rotate turns the active piece 90° clockwise, re-centering by half the
// dimension change and walking the kick table when the turned shape
// collides. Either the whole rotation lands or nothing changes.
func (s *Session) Rotate() bool {
	if s.GameOver {
		return false
	}
	rot := rotated(s.Current.Shape)
	bx := s.X + floorDiv(len(s.Current.Shape[0])-len(rot[0]), 2)
	by := s.Y + floorDiv(len(s.Current.Shape)-len(rot), 2)
	if s.Current.Kind == KindO {
		bx, by = s.X, s.Y
	}
	if s.collidesAt(rot, bx, by) {
		kicks := kicksOther
		if s.Current.Kind == KindI {
			kicks = kicksI
		}
		ok := false
		for _, k := range kicks {
			if !s.collidesAt(rot, bx+k.X, by+k.Y) {
				bx, by = bx+k.X, by+k.Y
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	s.Current.Shape = rot
	s.X, s.Y = bx, by
	s.ghost()
	return true
}

// Drop hard-drops: move down until the piece locks.
func (s *Session) Drop() MoveResult {
	for {
		res := s.Move(0, 1)
		if !res.Moved {
			return res
		}
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
