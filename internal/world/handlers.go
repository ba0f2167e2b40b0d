package world

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quadris/internal/game"
	"quadris/internal/protocol"
	"quadris/internal/room"
)

func (w *World) handleConnect(msg Connect) {
	w.conns[msg.ConnID] = msg.Outbox
	w.log.Info("connected", zap.String("conn", msg.ConnID))
}

func (w *World) handleDisconnect(connID string) {
	ch, ok := w.conns[connID]
	if !ok {
		return
	}
	// remove the conn first so nothing below can send (or recurse) into it
	delete(w.conns, connID)
	close(ch)
	w.leaveRoom(connID)
	if s := w.sessions[connID]; s != nil {
		w.stopDescent(s)
		delete(w.sessions, connID)
	}
	w.log.Info("disconnected", zap.String("conn", connID))
}

// --- gameplay ---------------------------------------------------------------

func (w *World) handleStartGame(connID string) {
	if _, ok := w.conns[connID]; !ok {
		return
	}
	if old := w.sessions[connID]; old != nil {
		w.stopDescent(old)
	}
	s := &session{Session: game.NewSession(game.RandomSource{})}
	w.sessions[connID] = s
	w.send(connID, protocol.ServerEvent{Type: protocol.EvtReceiveGame, Game: gameSnapshot(s)})
	w.scheduleDescent(connID, s)
	w.log.Info("game started", zap.String("conn", connID))
}

func (w *World) handleStopGame(connID string) {
	s := w.sessions[connID]
	if s == nil {
		return
	}
	w.stopDescent(s)
	delete(w.sessions, connID)
	w.log.Info("game stopped", zap.String("conn", connID))
}

func (w *World) handleMove(msg MoveBlock) {
	s := w.sessions[msg.ConnID]
	if s == nil || s.GameOver {
		return
	}
	// only unit deltas are legal: left, right, soft drop
	valid := (msg.DX == -1 || msg.DX == 1) && msg.DY == 0 || msg.DX == 0 && msg.DY == 1
	if !valid {
		return
	}
	w.finishMove(msg.ConnID, s, s.Move(msg.DX, msg.DY))
}

func (w *World) handleRotate(connID string) {
	s := w.sessions[connID]
	if s == nil || s.GameOver {
		return
	}
	if s.Rotate() {
		w.refreshPlayer(connID, s)
	}
}

func (w *World) handleDrop(connID string) {
	s := w.sessions[connID]
	if s == nil || s.GameOver {
		return
	}
	w.finishMove(connID, s, s.Drop())
}

func (w *World) handleDescentTick(msg descentTick) {
	s := w.sessions[msg.ConnID]
	if s == nil || msg.Gen != s.timerGen || s.GameOver {
		return
	}
	w.finishMove(msg.ConnID, s, s.Move(0, 1))
	if !s.GameOver {
		// re-arm at the current speed, so a level-up reschedule falls out
		w.scheduleDescent(msg.ConnID, s)
	}
}

// finishMove turns a physics result into deliveries: locked-cell effects,
// the player's refreshed snapshot, and game-over / match-end handling. A
// rejected sideways move produces nothing at all.
func (w *World) finishMove(connID string, s *session, res game.MoveResult) {
	if !res.Moved && !res.Locked {
		return
	}
	if res.Locked && len(res.Fixed) > 0 {
		w.send(connID, protocol.ServerEvent{Type: protocol.EvtBlockFixed, Positions: toPositions(res.Fixed)})
	}
	if res.LeveledUp && !s.GameOver {
		// leveling changed the speed: restart the descent timer at the new
		// cadence (idempotent, arming always supersedes the pending fire)
		w.scheduleDescent(connID, s)
	}
	w.refreshPlayer(connID, s)
	if s.GameOver {
		w.sessionOver(connID, s, true)
	}
}

// refreshPlayer syncs the room's member projection from the session, then
// pushes the player their own snapshot (with the room attached when in one).
func (w *World) refreshPlayer(connID string, s *session) {
	snap := gameSnapshot(s)
	if rid, ok := w.roomOf[connID]; ok {
		if r := w.rooms[rid]; r != nil {
			if m := r.MemberByConn(connID); m != nil {
				m.Grid = snap.Grid
				m.Score, m.Level, m.Lines = s.Score, s.Level, s.TotalLinesCleared
				m.GameOver = s.GameOver
			}
			snap.Room = roomSnapshot(r)
		}
	}
	w.send(connID, protocol.ServerEvent{Type: protocol.EvtRefreshGame, Game: snap})
}

// sessionOver stops the descent timer, tells the loser their final score and
// re-evaluates the match if the player was in a started room.
func (w *World) sessionOver(connID string, s *session, notify bool) {
	w.stopDescent(s)
	if notify {
		score := s.Score
		w.send(connID, protocol.ServerEvent{Type: protocol.EvtGameOver, Score: &score})
	}
	w.log.Info("game over", zap.String("conn", connID), zap.Int("score", s.Score))

	rid, ok := w.roomOf[connID]
	if !ok {
		return
	}
	r := w.rooms[rid]
	if r == nil || !r.Started || r.Counting {
		return
	}
	if m := r.MemberByConn(connID); m != nil {
		m.GameOver = true
	}
	if len(r.Alive()) <= 1 {
		w.endMatch(r)
		return
	}
	w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtRefreshRoom, Room: roomSnapshot(r)})
}

// --- lobby ------------------------------------------------------------------

func (w *World) handleCreateLobby(connID string) {
	if _, ok := w.conns[connID]; !ok {
		return
	}
	id := "room-" + uuid.NewString()[:8]
	r := room.New(id)
	w.rooms[id] = r
	// the creator is not a member yet; they join with a name like anyone else
	w.armRoomGC(r)
	w.send(connID, protocol.ServerEvent{Type: protocol.EvtLobbyCreated, RoomID: id, Room: roomSnapshot(r)})
	w.log.Info("lobby created", zap.String("room", id), zap.String("conn", connID))
}

func (w *World) handleJoinLobby(msg JoinLobby) {
	r := w.rooms[msg.RoomID]
	if r == nil {
		w.sendError(msg.ConnID, protocol.ErrLobbyNotFound, msg.RoomID)
		return
	}
	if prev, ok := w.roomOf[msg.ConnID]; ok && prev != msg.RoomID {
		w.leaveRoom(msg.ConnID)
	}
	if err := r.Join(msg.ConnID, msg.Name); err != nil {
		w.sendError(msg.ConnID, errTag(err), msg.RoomID)
		return
	}
	r.GCGen++ // cancel any pending empty-room expiry
	w.roomOf[msg.ConnID] = msg.RoomID
	w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtLobbyJoined, RoomID: r.ID, Room: roomSnapshot(r)})
	w.log.Info("joined lobby",
		zap.String("room", r.ID), zap.String("conn", msg.ConnID), zap.String("name", msg.Name))
}

func (w *World) handleLeaveLobby(connID string) {
	w.leaveRoom(connID)
}

func (w *World) handleToggleReady(msg ToggleReady) {
	rid := msg.RoomID
	if rid == "" {
		rid = w.roomOf[msg.ConnID]
	}
	r := w.rooms[rid]
	if r == nil {
		return
	}
	if r.ToggleReady(msg.ConnID) {
		w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtRefreshRoom, Room: roomSnapshot(r)})
	}
}

// leaveRoom removes the connection from its room (if any), discarding its
// in-progress match game, re-arming GC on the last man out and aborting a
// countdown that no longer has enough players.
func (w *World) leaveRoom(connID string) {
	rid, ok := w.roomOf[connID]
	if !ok {
		return
	}
	delete(w.roomOf, connID)
	r := w.rooms[rid]
	if r == nil {
		return
	}
	removed, empty := r.Leave(connID)
	if !removed {
		return
	}
	if r.Started {
		if s := w.sessions[connID]; s != nil {
			w.stopDescent(s)
			delete(w.sessions, connID)
		}
	}
	w.log.Info("left lobby", zap.String("room", rid), zap.String("conn", connID))
	if empty {
		r.Started, r.Counting = false, false
		r.CountdownGen++
		w.armRoomGC(r)
		return
	}
	if r.Counting && len(r.Members) < 2 {
		r.Started, r.Counting = false, false
		r.CountdownGen++
		w.log.Info("countdown aborted", zap.String("room", rid))
	}
	w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtPlayerLeft, Room: roomSnapshot(r)})
	if r.Started && !r.Counting && len(r.Alive()) <= 1 {
		w.endMatch(r)
	}
}

func errTag(err error) string {
	switch {
	case errors.Is(err, room.ErrFull):
		return protocol.ErrLobbyFull
	case errors.Is(err, room.ErrInGame):
		return protocol.ErrLobbyInGame
	case errors.Is(err, room.ErrNameLength):
		return protocol.ErrNameLength
	case errors.Is(err, room.ErrNameTaken):
		return protocol.ErrNameTaken
	default:
		return protocol.ErrLobbyNotFound
	}
}

func (w *World) lookupRoom(roomID string) *protocol.RoomSnapshot {
	r := w.rooms[roomID]
	if r == nil {
		return nil
	}
	return roomSnapshot(r)
}

// --- match orchestration ----------------------------------------------------

func (w *World) handleStartMatch(msg StartMatch) {
	r := w.rooms[msg.RoomID]
	if r == nil || r.Started {
		return
	}
	// chief only, everyone ready, at least two players — anything else is a
	// silent no-op, not a protocol error
	if msg.ConnID != r.ChiefID || len(r.Members) < 2 || !r.AllReady() {
		w.log.Debug("start match rejected",
			zap.String("room", r.ID), zap.String("conn", msg.ConnID))
		return
	}
	r.Started, r.Counting = true, true
	r.ResetQueue()
	w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtMatchStarting, Room: roomSnapshot(r)})
	r.CountdownGen++
	gen := r.CountdownGen
	n := w.opts.CountdownFrom
	time.AfterFunc(w.opts.CountdownInterval, func() {
		w.post(countdownTick{RoomID: r.ID, N: n, Gen: gen})
	})
	w.log.Info("match starting", zap.String("room", r.ID), zap.Int("players", len(r.Members)))
}

func (w *World) handleCountdownTick(msg countdownTick) {
	r := w.rooms[msg.RoomID]
	if r == nil || msg.Gen != r.CountdownGen || !r.Counting {
		return
	}
	n := msg.N
	w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtCountdown, Count: &n})
	if n > 0 {
		time.AfterFunc(w.opts.CountdownInterval, func() {
			w.post(countdownTick{RoomID: msg.RoomID, N: n - 1, Gen: msg.Gen})
		})
		return
	}
	w.beginMatch(r)
}

// beginMatch gives every member a fresh session fed by the room's shared
// piece queue and its own descent timer. Initial snapshots go to each player
// individually: at kickoff you only see your own board.
func (w *World) beginMatch(r *room.Room) {
	r.Counting = false
	for _, m := range r.Members {
		m.GameOver = false
		m.Score, m.Level, m.Lines = 0, 1, 0
		m.PiecesConsumed = 0
		if old := w.sessions[m.ConnID]; old != nil {
			w.stopDescent(old)
		}
		s := &session{Session: game.NewSession(r.SourceFor(m))}
		w.sessions[m.ConnID] = s
		m.Grid = s.RenderGrid()
		w.send(m.ConnID, protocol.ServerEvent{Type: protocol.EvtReceiveGame, Game: gameSnapshot(s)})
		w.scheduleDescent(m.ConnID, s)
	}
	w.log.Info("match running", zap.String("room", r.ID), zap.Int("players", len(r.Members)))
}

// endMatch closes out the round: flags cleared, timers stopped, leaderboard
// broadcast. The room itself survives for a rematch.
func (w *World) endMatch(r *room.Room) {
	r.Started = false
	alive := r.Alive()
	var winner *protocol.PlayerInfo
	if len(alive) == 1 {
		pi := playerInfo(alive[0])
		winner = &pi
	}
	for _, m := range r.Members {
		m.GameOver = false
		if s := w.sessions[m.ConnID]; s != nil {
			w.stopDescent(s)
			s.GameOver = false
		}
	}
	w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtMatchEnd, Room: leaderboardSnapshot(r), Winner: winner})
	w.log.Info("match over", zap.String("room", r.ID))
}

func (w *World) handleDeclareGameOver(msg DeclareGameOver) {
	if s := w.sessions[msg.ConnID]; s != nil && !s.GameOver {
		s.GameOver = true
		if rid, ok := w.roomOf[msg.ConnID]; ok {
			if r := w.rooms[rid]; r != nil {
				if m := r.MemberByConn(msg.ConnID); m != nil {
					m.GameOver = true
				}
			}
		}
		w.sessionOver(msg.ConnID, s, false)
		return
	}
	// no live session; still honor the acknowledgment for the room
	rid := msg.RoomID
	if rid == "" {
		rid = w.roomOf[msg.ConnID]
	}
	r := w.rooms[rid]
	if r == nil || !r.Started || r.Counting {
		return
	}
	if m := r.MemberByConn(msg.ConnID); m != nil {
		m.GameOver = true
	}
	if len(r.Alive()) <= 1 {
		w.endMatch(r)
		return
	}
	w.broadcast(r, protocol.ServerEvent{Type: protocol.EvtRefreshRoom, Room: roomSnapshot(r)})
}

// --- timers -----------------------------------------------------------------

// scheduleDescent arms the one-shot descent timer at the session's current
// speed. Arming always bumps the generation, so a fire from a cancelled or
// rescheduled timer identifies itself as stale and is dropped.
func (w *World) scheduleDescent(connID string, s *session) {
	s.timerGen++
	gen := s.timerGen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(time.Duration(s.Speed)*time.Millisecond, func() {
		w.post(descentTick{ConnID: connID, Gen: gen})
	})
}

func (w *World) stopDescent(s *session) {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (w *World) armRoomGC(r *room.Room) {
	r.GCGen++
	gen := r.GCGen
	time.AfterFunc(w.opts.RoomTTL, func() {
		w.post(roomExpired{RoomID: r.ID, Gen: gen})
	})
}

func (w *World) handleRoomExpired(msg roomExpired) {
	r := w.rooms[msg.RoomID]
	if r == nil || msg.Gen != r.GCGen || len(r.Members) != 0 {
		return
	}
	delete(w.rooms, msg.RoomID)
	w.log.Info("empty lobby deleted", zap.String("room", msg.RoomID))
}
