// Package world holds the single-writer actor that owns every session and
// room. All game mutation happens on one goroutine fed by an inbox channel;
// timers never touch state directly, they post messages back into the inbox.
package world

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quadris/internal/game"
	"quadris/internal/protocol"
	"quadris/internal/room"
)

type Options struct {
	// RoomTTL is how long an empty room survives before garbage collection.
	RoomTTL time.Duration
	// CountdownFrom is the first number broadcast before a match (3..0).
	CountdownFrom int
	// CountdownInterval is the gap between countdown ticks. Tests shrink it.
	CountdownInterval time.Duration
}

func (o *Options) fill() {
	if o.RoomTTL <= 0 {
		o.RoomTTL = 30 * time.Second
	}
	if o.CountdownFrom <= 0 {
		o.CountdownFrom = 3
	}
	if o.CountdownInterval <= 0 {
		o.CountdownInterval = time.Second
	}
}

// session couples one player's game state with its descent timer
// bookkeeping. The timer handle lives here so "at most one active timer per
// session" holds by construction: arming always bumps the generation first.
type session struct {
	*game.Session
	timer    *time.Timer
	timerGen int
}

type World struct {
	inbox chan Msg
	opts  Options
	log   *zap.Logger

	conns    map[string]chan protocol.ServerEvent
	sessions map[string]*session
	rooms    map[string]*room.Room
	roomOf   map[string]string // conn id -> room id, non-owning back-reference

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, log *zap.Logger, opts Options) *World {
	opts.fill()
	ctx, cancel := context.WithCancel(parent)
	w := &World{
		inbox:    make(chan Msg, 64),
		opts:     opts,
		log:      log,
		conns:    make(map[string]chan protocol.ServerEvent),
		sessions: make(map[string]*session),
		rooms:    make(map[string]*room.Room),
		roomOf:   make(map[string]string),
		ctx:      ctx,
		cancel:   cancel,
	}
	go w.loop()
	return w
}

func (w *World) Inbox() chan<- Msg { return w.inbox }

func (w *World) loop() {
	for {
		select {
		case <-w.ctx.Done():
			w.shutdown()
			return

		case m := <-w.inbox:
			switch msg := m.(type) {
			case Connect:
				w.handleConnect(msg)
			case Disconnect:
				w.handleDisconnect(msg.ConnID)
			case StartGame:
				w.handleStartGame(msg.ConnID)
			case MoveBlock:
				w.handleMove(msg)
			case RotateBlock:
				w.handleRotate(msg.ConnID)
			case DropBlock:
				w.handleDrop(msg.ConnID)
			case ResetGame:
				w.handleStartGame(msg.ConnID) // reset re-inits from scratch
			case StopGame:
				w.handleStopGame(msg.ConnID)
			case CreateLobby:
				w.handleCreateLobby(msg.ConnID)
			case JoinLobby:
				w.handleJoinLobby(msg)
			case LeaveLobby:
				w.handleLeaveLobby(msg.ConnID)
			case ToggleReady:
				w.handleToggleReady(msg)
			case StartMatch:
				w.handleStartMatch(msg)
			case DeclareGameOver:
				w.handleDeclareGameOver(msg)
			case LookupRoom:
				msg.Reply <- w.lookupRoom(msg.RoomID)
			case descentTick:
				w.handleDescentTick(msg)
			case roomExpired:
				w.handleRoomExpired(msg)
			case countdownTick:
				w.handleCountdownTick(msg)
			case GetView:
				msg.Reply <- w.view()
			case Shutdown:
				w.shutdown()
				return
			}
		}
	}
}

// post feeds a message back into the inbox from a timer goroutine.
func (w *World) post(m Msg) {
	select {
	case w.inbox <- m:
	case <-w.ctx.Done():
	}
}

func (w *World) shutdown() {
	for id, s := range w.sessions {
		w.stopDescent(s)
		delete(w.sessions, id)
	}
	for id, ch := range w.conns {
		close(ch)
		delete(w.conns, id)
	}
	clear(w.rooms)
	clear(w.roomOf)
	w.cancel()
}

// send delivers to one connection without ever blocking the loop. A full
// outbox means the consumer is dead or hopeless; drop it.
func (w *World) send(connID string, evt protocol.ServerEvent) {
	ch, ok := w.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- evt:
	default:
		w.log.Warn("dropping slow connection", zap.String("conn", connID))
		w.handleDisconnect(connID)
	}
}

func (w *World) broadcast(r *room.Room, evt protocol.ServerEvent) {
	ids := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.ConnID)
	}
	for _, id := range ids {
		w.send(id, evt)
	}
}

func (w *World) sendError(connID, tag, roomID string) {
	w.send(connID, protocol.ServerEvent{Type: protocol.EvtError, ErrorType: tag, RoomID: roomID})
}

func (w *World) view() View {
	v := View{
		NumConns: len(w.conns),
		Sessions: make(map[string]SessionView, len(w.sessions)),
		Rooms:    make(map[string]RoomView, len(w.rooms)),
	}
	for id, s := range w.sessions {
		v.Sessions[id] = SessionView{Score: s.Score, Level: s.Level, Speed: s.Speed, GameOver: s.GameOver}
	}
	for id, r := range w.rooms {
		rv := RoomView{ChiefID: r.ChiefID, Started: r.Started, Counting: r.Counting}
		for _, m := range r.Members {
			rv.Members = append(rv.Members, m.ConnID)
		}
		v.Rooms[id] = rv
	}
	return v
}
