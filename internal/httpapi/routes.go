package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quadris/internal/world"
	"quadris/internal/ws"
)

func SetupRoutes(w *world.World, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/rooms/{roomID}", RoomLookup(w))
	r.Get("/ws", ws.Handler(w, log))
	return r
}
