package room

import (
	"errors"
	"sort"

	"quadris/internal/game"
)

var (
	ErrNotFound   = errors.New("lobby not found")
	ErrFull       = errors.New("lobby full")
	ErrInGame     = errors.New("lobby already in game")
	ErrNameLength = errors.New("player name must be 1-12 characters")
	ErrNameTaken  = errors.New("player name already taken in this lobby")
)

const (
	MaxMembers = 4
	MaxNameLen = 12
)

// Member is the room's denormalized view of one player: enough to broadcast
// the whole room without reaching into every live session.
type Member struct {
	ConnID         string
	Name           string
	Ready          bool
	GameOver       bool
	Score          int
	Level          int
	Lines          int
	PiecesConsumed int
	Grid           [][]game.Cell
}

type Room struct {
	ID      string
	Members []*Member
	ChiefID string

	// Started covers countdown and live play; Counting is only the countdown
	// window, during which no session exists yet.
	Started  bool
	Counting bool

	// GCGen invalidates a pending empty-room expiry; CountdownGen invalidates
	// in-flight countdown ticks. Stale timer fires carry an old generation
	// and are dropped.
	GCGen        int
	CountdownGen int

	pieceQueue []game.Kind
}

func New(id string) *Room {
	return &Room{ID: id}
}

// Join validates and appends a member. The first member becomes chief. A
// repeated (conn, name) join is a no-op so a reconnect race stays harmless.
func (r *Room) Join(connID, name string) error {
	if r.Started {
		return ErrInGame
	}
	if len(r.Members) >= MaxMembers {
		return ErrFull
	}
	if len(name) == 0 || len(name) > MaxNameLen {
		return ErrNameLength
	}
	for _, m := range r.Members {
		if m.Name == name {
			if m.ConnID == connID {
				return nil
			}
			return ErrNameTaken
		}
	}
	r.Members = append(r.Members, &Member{ConnID: connID, Name: name})
	if len(r.Members) == 1 {
		r.ChiefID = connID
	}
	return nil
}

// Leave removes the member and re-elects the chief from the head of the
// remaining list. Reports whether anything was removed and whether the room
// is now empty.
func (r *Room) Leave(connID string) (removed, empty bool) {
	for i, m := range r.Members {
		if m.ConnID != connID {
			continue
		}
		r.Members = append(r.Members[:i], r.Members[i+1:]...)
		if len(r.Members) == 0 {
			return true, true
		}
		if r.ChiefID == connID {
			r.ChiefID = r.Members[0].ConnID
		}
		return true, false
	}
	return false, false
}

func (r *Room) MemberByConn(connID string) *Member {
	for _, m := range r.Members {
		if m.ConnID == connID {
			return m
		}
	}
	return nil
}

func (r *Room) ToggleReady(connID string) bool {
	m := r.MemberByConn(connID)
	if m == nil {
		return false
	}
	m.Ready = !m.Ready
	return true
}

func (r *Room) AllReady() bool {
	for _, m := range r.Members {
		if !m.Ready {
			return false
		}
	}
	return true
}

func (r *Room) Alive() []*Member {
	var out []*Member
	for _, m := range r.Members {
		if !m.GameOver {
			out = append(out, m)
		}
	}
	return out
}

// PieceAt lazily extends the shared queue up to index i and returns the kind
// there. Every member draws from the same queue, so all of them see the
// identical piece order no matter how fast they drop.
func (r *Room) PieceAt(i int) game.Kind {
	for len(r.pieceQueue) <= i {
		r.pieceQueue = append(r.pieceQueue, game.RandomKind())
	}
	return r.pieceQueue[i]
}

// ResetQueue starts a fresh shared sequence for a new match.
func (r *Room) ResetQueue() {
	r.pieceQueue = r.pieceQueue[:0]
}

// Leaderboard returns the members sorted by score, best first.
func (r *Room) Leaderboard() []*Member {
	out := append([]*Member(nil), r.Members...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Source adapts the room queue to game.Source for one member. The member's
// consumed counter doubles as its cursor into the shared sequence.
type Source struct {
	room   *Room
	member *Member
}

func (r *Room) SourceFor(m *Member) *Source {
	return &Source{room: r, member: m}
}

func (s *Source) Next() *game.Piece {
	k := s.room.PieceAt(s.member.PiecesConsumed)
	s.member.PiecesConsumed++
	return game.NewPiece(k)
}
