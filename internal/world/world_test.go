package world

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"quadris/internal/protocol"
)

// helper: drain the outbox until an event of the wanted type shows up, with a
// deadline so tests never hang.
func recvEvent(t *testing.T, ch <-chan protocol.ServerEvent, want string, within time.Duration) protocol.ServerEvent {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", want)
			}
			if evt.Type == want {
				return evt
			}
			// interleaved refreshes are expected; keep draining
		case <-deadline:
			t.Fatalf("timed out waiting for %q", want)
			return protocol.ServerEvent{} // unreachable
		}
	}
}

func recvNoEvent(t *testing.T, ch <-chan protocol.ServerEvent, unwanted string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if evt.Type == unwanted {
				t.Fatalf("expected no %q within %v, but got one", unwanted, within)
			}
		case <-deadline:
			return
		}
	}
}

func getView(t *testing.T, w *World) View {
	t.Helper()
	reply := make(chan View, 1)
	w.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func newTestWorld(t *testing.T, opts Options) *World {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, zap.NewNop(), opts)
}

func connect(w *World, id string) chan protocol.ServerEvent {
	out := make(chan protocol.ServerEvent, 64)
	w.Inbox() <- Connect{ConnID: id, Outbox: out}
	return out
}

func TestStartGameDeliversInitialSnapshot(t *testing.T) {
	w := newTestWorld(t, Options{})
	out := connect(w, "c1")

	w.Inbox() <- StartGame{ConnID: "c1"}
	evt := recvEvent(t, out, protocol.EvtReceiveGame, time.Second)

	if evt.Game == nil {
		t.Fatalf("receiveGame without a game snapshot")
	}
	if len(evt.Game.Grid) != 22 || len(evt.Game.Grid[0]) != 10 {
		t.Fatalf("want a 22x10 grid, got %dx%d", len(evt.Game.Grid), len(evt.Game.Grid[0]))
	}
	if evt.Game.Level != 1 || evt.Game.Speed != 1000 {
		t.Fatalf("fresh session: want level=1 speed=1000, got level=%d speed=%d", evt.Game.Level, evt.Game.Speed)
	}
	if evt.Game.Next == nil {
		t.Fatalf("fresh session should carry a next piece")
	}
}

func TestMoveBroadcastsRefresh(t *testing.T) {
	w := newTestWorld(t, Options{})
	out := connect(w, "c1")
	w.Inbox() <- StartGame{ConnID: "c1"}
	_ = recvEvent(t, out, protocol.EvtReceiveGame, time.Second)

	w.Inbox() <- MoveBlock{ConnID: "c1", DX: 0, DY: 1}
	evt := recvEvent(t, out, protocol.EvtRefreshGame, time.Second)
	if evt.Game == nil {
		t.Fatalf("refreshGame without a game snapshot")
	}
}

func TestMoveWithoutSessionIsSilent(t *testing.T) {
	w := newTestWorld(t, Options{})
	out := connect(w, "c1")

	w.Inbox() <- MoveBlock{ConnID: "c1", DX: 0, DY: 1}
	w.Inbox() <- RotateBlock{ConnID: "c1"}
	w.Inbox() <- DropBlock{ConnID: "c1"}

	recvNoEvent(t, out, protocol.EvtError, 100*time.Millisecond)
}

func TestJoinValidationScenario(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute})
	out := connect(w, "c1")

	w.Inbox() <- CreateLobby{ConnID: "c1"}
	created := recvEvent(t, out, protocol.EvtLobbyCreated, time.Second)
	rid := created.RoomID
	if rid == "" {
		t.Fatalf("lobbyCreated without a room id")
	}

	w.Inbox() <- JoinLobby{ConnID: "c1", RoomID: rid, Name: ""}
	evt := recvEvent(t, out, protocol.EvtError, time.Second)
	if evt.ErrorType != protocol.ErrNameLength {
		t.Fatalf("empty name: want %q, got %q", protocol.ErrNameLength, evt.ErrorType)
	}

	w.Inbox() <- JoinLobby{ConnID: "c1", RoomID: rid, Name: strings.Repeat("x", 13)}
	evt = recvEvent(t, out, protocol.EvtError, time.Second)
	if evt.ErrorType != protocol.ErrNameLength {
		t.Fatalf("13-char name: want %q, got %q", protocol.ErrNameLength, evt.ErrorType)
	}

	w.Inbox() <- JoinLobby{ConnID: "c1", RoomID: rid, Name: "alice"}
	joined := recvEvent(t, out, protocol.EvtLobbyJoined, time.Second)
	if joined.Room == nil || joined.Room.ChiefID != "c1" {
		t.Fatalf("first joiner should become chief, got %+v", joined.Room)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	w := newTestWorld(t, Options{})
	out := connect(w, "c1")

	w.Inbox() <- JoinLobby{ConnID: "c1", RoomID: "room-nope", Name: "alice"}
	evt := recvEvent(t, out, protocol.EvtError, time.Second)
	if evt.ErrorType != protocol.ErrLobbyNotFound {
		t.Fatalf("want %q, got %q", protocol.ErrLobbyNotFound, evt.ErrorType)
	}
}

func TestFifthJoinRejected(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute})
	chief := connect(w, "c1")
	w.Inbox() <- CreateLobby{ConnID: "c1"}
	rid := recvEvent(t, chief, protocol.EvtLobbyCreated, time.Second).RoomID

	names := []string{"a", "b", "c", "d"}
	conns := []string{"c1", "c2", "c3", "c4"}
	for i := range conns {
		if conns[i] != "c1" {
			connect(w, conns[i])
		}
		w.Inbox() <- JoinLobby{ConnID: conns[i], RoomID: rid, Name: names[i]}
	}
	_ = recvEvent(t, chief, protocol.EvtLobbyJoined, time.Second)

	out5 := connect(w, "c5")
	w.Inbox() <- JoinLobby{ConnID: "c5", RoomID: rid, Name: "e"}
	evt := recvEvent(t, out5, protocol.EvtError, time.Second)
	if evt.ErrorType != protocol.ErrLobbyFull {
		t.Fatalf("want %q, got %q", protocol.ErrLobbyFull, evt.ErrorType)
	}
}

func TestLeaveReelectsChiefAndNotifies(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute})
	a := connect(w, "a")
	b := connect(w, "b")
	w.Inbox() <- CreateLobby{ConnID: "a"}
	rid := recvEvent(t, a, protocol.EvtLobbyCreated, time.Second).RoomID
	w.Inbox() <- JoinLobby{ConnID: "a", RoomID: rid, Name: "alice"}
	w.Inbox() <- JoinLobby{ConnID: "b", RoomID: rid, Name: "bob"}

	w.Inbox() <- LeaveLobby{ConnID: "a"}
	evt := recvEvent(t, b, protocol.EvtPlayerLeft, time.Second)
	if evt.Room == nil || evt.Room.ChiefID != "b" {
		t.Fatalf("remaining member should be promoted to chief, got %+v", evt.Room)
	}
}

func TestEmptyRoomGarbageCollected(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: 20 * time.Millisecond})
	out := connect(w, "c1")
	w.Inbox() <- CreateLobby{ConnID: "c1"}
	rid := recvEvent(t, out, protocol.EvtLobbyCreated, time.Second).RoomID

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := getView(t, w).Rooms[rid]; !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("empty room %s was never garbage collected", rid)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestJoinCancelsRoomGC(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: 30 * time.Millisecond})
	out := connect(w, "c1")
	w.Inbox() <- CreateLobby{ConnID: "c1"}
	rid := recvEvent(t, out, protocol.EvtLobbyCreated, time.Second).RoomID
	w.Inbox() <- JoinLobby{ConnID: "c1", RoomID: rid, Name: "alice"}
	_ = recvEvent(t, out, protocol.EvtLobbyJoined, time.Second)

	time.Sleep(80 * time.Millisecond)
	if _, ok := getView(t, w).Rooms[rid]; !ok {
		t.Fatalf("occupied room %s must survive the GC deadline", rid)
	}
}

// startTwoPlayerMatch drives two connections through create/join/ready/start
// and past the countdown, returning the room id and both outboxes.
func startTwoPlayerMatch(t *testing.T, w *World) (string, chan protocol.ServerEvent, chan protocol.ServerEvent) {
	t.Helper()
	a := connect(w, "a")
	b := connect(w, "b")
	w.Inbox() <- CreateLobby{ConnID: "a"}
	rid := recvEvent(t, a, protocol.EvtLobbyCreated, time.Second).RoomID
	w.Inbox() <- JoinLobby{ConnID: "a", RoomID: rid, Name: "alice"}
	w.Inbox() <- JoinLobby{ConnID: "b", RoomID: rid, Name: "bob"}
	w.Inbox() <- ToggleReady{ConnID: "a", RoomID: rid}
	w.Inbox() <- ToggleReady{ConnID: "b", RoomID: rid}
	w.Inbox() <- StartMatch{ConnID: "a", RoomID: rid}

	_ = recvEvent(t, a, protocol.EvtMatchStarting, time.Second)
	_ = recvEvent(t, a, protocol.EvtReceiveGame, 2*time.Second)
	_ = recvEvent(t, b, protocol.EvtReceiveGame, 2*time.Second)
	return rid, a, b
}

func TestMatchRunsCountdownThenDealsBoards(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute, CountdownInterval: 5 * time.Millisecond})
	a := connect(w, "a")
	b := connect(w, "b")
	w.Inbox() <- CreateLobby{ConnID: "a"}
	rid := recvEvent(t, a, protocol.EvtLobbyCreated, time.Second).RoomID
	w.Inbox() <- JoinLobby{ConnID: "a", RoomID: rid, Name: "alice"}
	w.Inbox() <- JoinLobby{ConnID: "b", RoomID: rid, Name: "bob"}
	w.Inbox() <- ToggleReady{ConnID: "a", RoomID: rid}
	w.Inbox() <- ToggleReady{ConnID: "b", RoomID: rid}
	w.Inbox() <- StartMatch{ConnID: "a", RoomID: rid}

	_ = recvEvent(t, b, protocol.EvtMatchStarting, time.Second)
	for want := 3; want >= 0; want-- {
		evt := recvEvent(t, b, protocol.EvtCountdown, time.Second)
		if evt.Count == nil || *evt.Count != want {
			t.Fatalf("countdown: want %d, got %+v", want, evt.Count)
		}
	}
	_ = recvEvent(t, a, protocol.EvtReceiveGame, time.Second)
	_ = recvEvent(t, b, protocol.EvtReceiveGame, time.Second)

	v := getView(t, w)
	if len(v.Sessions) != 2 {
		t.Fatalf("want 2 sessions after kickoff, got %d", len(v.Sessions))
	}
	if rv := v.Rooms[rid]; !rv.Started || rv.Counting {
		t.Fatalf("room should be started and past the countdown: %+v", rv)
	}
}

func TestStartMatchRequiresChiefAndReady(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute, CountdownInterval: 5 * time.Millisecond})
	a := connect(w, "a")
	b := connect(w, "b")
	w.Inbox() <- CreateLobby{ConnID: "a"}
	rid := recvEvent(t, a, protocol.EvtLobbyCreated, time.Second).RoomID
	w.Inbox() <- JoinLobby{ConnID: "a", RoomID: rid, Name: "alice"}
	w.Inbox() <- JoinLobby{ConnID: "b", RoomID: rid, Name: "bob"}

	// not ready yet: silent no-op
	w.Inbox() <- StartMatch{ConnID: "a", RoomID: rid}
	recvNoEvent(t, a, protocol.EvtMatchStarting, 100*time.Millisecond)

	w.Inbox() <- ToggleReady{ConnID: "a", RoomID: rid}
	w.Inbox() <- ToggleReady{ConnID: "b", RoomID: rid}

	// bob is not the chief: silent no-op
	w.Inbox() <- StartMatch{ConnID: "b", RoomID: rid}
	recvNoEvent(t, b, protocol.EvtMatchStarting, 100*time.Millisecond)

	if rv := getView(t, w).Rooms[rid]; rv.Started {
		t.Fatalf("room must not have started: %+v", rv)
	}
}

func TestMatchEndsWhenOnePlayerSurvives(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute, CountdownInterval: 5 * time.Millisecond})
	rid, _, b := startTwoPlayerMatch(t, w)

	w.Inbox() <- DeclareGameOver{ConnID: "a", RoomID: rid}

	evt := recvEvent(t, b, protocol.EvtMatchEnd, time.Second)
	if evt.Room == nil || evt.Room.Started {
		t.Fatalf("match end must carry a stopped room, got %+v", evt.Room)
	}
	if evt.Winner == nil || evt.Winner.ID != "b" {
		t.Fatalf("bob should be the winner, got %+v", evt.Winner)
	}
	for _, p := range evt.Room.Players {
		if p.GameOver {
			t.Fatalf("member %s still flagged game over after match end", p.Name)
		}
	}

	v := getView(t, w)
	for id, s := range v.Sessions {
		if s.GameOver {
			t.Fatalf("session %s still flagged game over after match end", id)
		}
	}
	if rv := v.Rooms[rid]; rv.Started {
		t.Fatalf("room still marked started after match end")
	}
}

func TestCountdownAbortsWhenRoomDropsBelowTwo(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute, CountdownInterval: 50 * time.Millisecond})
	a := connect(w, "a")
	b := connect(w, "b")
	w.Inbox() <- CreateLobby{ConnID: "a"}
	rid := recvEvent(t, a, protocol.EvtLobbyCreated, time.Second).RoomID
	w.Inbox() <- JoinLobby{ConnID: "a", RoomID: rid, Name: "alice"}
	w.Inbox() <- JoinLobby{ConnID: "b", RoomID: rid, Name: "bob"}
	w.Inbox() <- ToggleReady{ConnID: "a", RoomID: rid}
	w.Inbox() <- ToggleReady{ConnID: "b", RoomID: rid}
	w.Inbox() <- StartMatch{ConnID: "a", RoomID: rid}
	_ = recvEvent(t, b, protocol.EvtMatchStarting, time.Second)

	w.Inbox() <- LeaveLobby{ConnID: "a"}
	_ = recvEvent(t, b, protocol.EvtPlayerLeft, time.Second)

	recvNoEvent(t, b, protocol.EvtReceiveGame, 300*time.Millisecond)
	if rv := getView(t, w).Rooms[rid]; rv.Started || rv.Counting {
		t.Fatalf("countdown should have aborted: %+v", rv)
	}
}

func TestDisconnectLeavesRoom(t *testing.T) {
	w := newTestWorld(t, Options{RoomTTL: time.Minute})
	a := connect(w, "a")
	b := connect(w, "b")
	w.Inbox() <- CreateLobby{ConnID: "a"}
	rid := recvEvent(t, a, protocol.EvtLobbyCreated, time.Second).RoomID
	w.Inbox() <- JoinLobby{ConnID: "a", RoomID: rid, Name: "alice"}
	w.Inbox() <- JoinLobby{ConnID: "b", RoomID: rid, Name: "bob"}
	_ = recvEvent(t, b, protocol.EvtLobbyJoined, time.Second)

	w.Inbox() <- Disconnect{ConnID: "a"}

	evt := recvEvent(t, b, protocol.EvtPlayerLeft, time.Second)
	if evt.Room == nil || len(evt.Room.Players) != 1 {
		t.Fatalf("want one remaining member, got %+v", evt.Room)
	}
	v := getView(t, w)
	if v.NumConns != 1 {
		t.Fatalf("want 1 live conn after disconnect, got %d", v.NumConns)
	}
	if _, ok := v.Sessions["a"]; ok {
		t.Fatalf("disconnected player's session must be discarded")
	}
}

func TestStopGameCancelsSession(t *testing.T) {
	w := newTestWorld(t, Options{})
	out := connect(w, "c1")
	w.Inbox() <- StartGame{ConnID: "c1"}
	_ = recvEvent(t, out, protocol.EvtReceiveGame, time.Second)

	w.Inbox() <- StopGame{ConnID: "c1"}
	if v := getView(t, w); len(v.Sessions) != 0 {
		t.Fatalf("want no sessions after stop, got %d", len(v.Sessions))
	}
}
