package world

import "quadris/internal/protocol"

// Msg is the tagged union of everything the world loop processes: one
// variant per client intent plus the internal timer messages. Dispatch is a
// type switch, so an unhandled variant is visible at a glance.
type Msg interface{ isWorldMsg() }

type Connect struct {
	ConnID string
	Outbox chan protocol.ServerEvent
}

type Disconnect struct{ ConnID string }

type StartGame struct{ ConnID string }

type MoveBlock struct {
	ConnID string
	DX, DY int
}

type RotateBlock struct{ ConnID string }

type DropBlock struct{ ConnID string }

type ResetGame struct{ ConnID string }

type StopGame struct{ ConnID string }

type CreateLobby struct{ ConnID string }

type JoinLobby struct {
	ConnID string
	RoomID string
	Name   string
}

type LeaveLobby struct{ ConnID string }

type ToggleReady struct {
	ConnID string
	RoomID string
}

type StartMatch struct {
	ConnID string
	RoomID string
}

// DeclareGameOver is the client acknowledging its own top-out.
type DeclareGameOver struct {
	ConnID string
	RoomID string
}

// LookupRoom answers the HTTP layer's "does this room exist" question.
type LookupRoom struct {
	RoomID string
	Reply  chan *protocol.RoomSnapshot
}

type Shutdown struct{}

// Internal timer fires. Each carries the generation it was armed with;
// anything stale is dropped.
type descentTick struct {
	ConnID string
	Gen    int
}

type roomExpired struct {
	RoomID string
	Gen    int
}

type countdownTick struct {
	RoomID string
	N      int
	Gen    int
}

// GetView reflects internal state without data races; test-only.
type GetView struct{ Reply chan View }

type View struct {
	NumConns int
	Sessions map[string]SessionView
	Rooms    map[string]RoomView
}

type SessionView struct {
	Score    int
	Level    int
	Speed    int
	GameOver bool
}

type RoomView struct {
	Members  []string
	ChiefID  string
	Started  bool
	Counting bool
}

func (Connect) isWorldMsg()         {}
func (Disconnect) isWorldMsg()      {}
func (StartGame) isWorldMsg()       {}
func (MoveBlock) isWorldMsg()       {}
func (RotateBlock) isWorldMsg()     {}
func (DropBlock) isWorldMsg()       {}
func (ResetGame) isWorldMsg()       {}
func (StopGame) isWorldMsg()        {}
func (CreateLobby) isWorldMsg()     {}
func (JoinLobby) isWorldMsg()       {}
func (LeaveLobby) isWorldMsg()      {}
func (ToggleReady) isWorldMsg()     {}
func (StartMatch) isWorldMsg()      {}
func (DeclareGameOver) isWorldMsg() {}
func (LookupRoom) isWorldMsg()      {}
func (Shutdown) isWorldMsg()        {}
func (descentTick) isWorldMsg()     {}
func (roomExpired) isWorldMsg()     {}
func (countdownTick) isWorldMsg()   {}
func (GetView) isWorldMsg()         {}
