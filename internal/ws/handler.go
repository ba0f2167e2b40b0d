package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"quadris/internal/protocol"
	"quadris/internal/world"
)

const writeTimeout = 3 * time.Second

// Handler bridges one websocket connection to the world actor: a writer
// goroutine drains the connection's outbox, the read loop translates JSON
// intents into world messages.
func Handler(w *world.World, log *zap.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(rw, r, &websocket.AcceptOptions{
			// browser clients are served from a different origin in dev
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan protocol.ServerEvent, 32)

		w.Inbox() <- world.Connect{ConnID: connID, Outbox: out}
		defer func() { w.Inbox() <- world.Disconnect{ConnID: connID} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			// the world closes the outbox on disconnect or drop
			for evt := range out {
				payload, err := json.Marshal(evt)
				if err != nil {
					log.Error("marshal event", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// anything else still means the conn is gone; Disconnect in defer
				return
			}

			var cm protocol.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","errorType":"badMessage"}`))
				continue
			}

			msg, ok := toIntent(connID, cm)
			if !ok {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"error","errorType":"badMessage"}`))
				continue
			}
			w.Inbox() <- msg
		}
	}
}

func toIntent(connID string, m protocol.ClientMessage) (world.Msg, bool) {
	switch m.Type {
	case protocol.MsgStartGame:
		return world.StartGame{ConnID: connID}, true
	case protocol.MsgMoveBlock:
		return world.MoveBlock{ConnID: connID, DX: m.X, DY: m.Y}, true
	case protocol.MsgRotateBlock:
		return world.RotateBlock{ConnID: connID}, true
	case protocol.MsgDropBlock:
		return world.DropBlock{ConnID: connID}, true
	case protocol.MsgResetGame:
		return world.ResetGame{ConnID: connID}, true
	case protocol.MsgStopGame:
		return world.StopGame{ConnID: connID}, true
	case protocol.MsgCreateLobby:
		return world.CreateLobby{ConnID: connID}, true
	case protocol.MsgJoinLobby:
		return world.JoinLobby{ConnID: connID, RoomID: m.RoomID, Name: m.PlayerName}, true
	case protocol.MsgLeaveLobby:
		return world.LeaveLobby{ConnID: connID}, true
	case protocol.MsgToggleReady:
		return world.ToggleReady{ConnID: connID, RoomID: m.RoomID}, true
	case protocol.MsgStartMultiplayer:
		return world.StartMatch{ConnID: connID, RoomID: m.RoomID}, true
	case protocol.MsgGameOver:
		return world.DeclareGameOver{ConnID: connID, RoomID: m.RoomID}, true
	default:
		return nil, false
	}
}
