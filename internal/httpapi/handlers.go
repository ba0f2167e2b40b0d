package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quadris/internal/protocol"
	"quadris/internal/world"
)

// RoomLookup lets the lobby page check a share link before opening a socket.
func RoomLookup(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")

		reply := make(chan *protocol.RoomSnapshot, 1)
		w.Inbox() <- world.LookupRoom{RoomID: roomID, Reply: reply}
		snap := <-reply

		rw.Header().Set("Content-Type", "application/json")
		if snap == nil {
			rw.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(rw).Encode(struct {
				Error string `json:"error"`
			}{Error: "lobby not found"})
			return
		}
		_ = json.NewEncoder(rw).Encode(struct {
			Room *protocol.RoomSnapshot `json:"room"`
		}{Room: snap})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
