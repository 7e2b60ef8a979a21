package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pong/internal/api"
	"pong/internal/metrics"
)

const serviceName = "pong"

// NewRouter builds the full HTTP surface with the shared middleware stack.
func NewRouter(h *api.Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(metrics.Middleware(serviceName, routePattern))

	GameRoutes(r, h)
	return r
}

// GameRoutes mounts the game endpoints. The WebSocket route stays outside the request
// timeout group since it lives as long as the player is connected.
func GameRoutes(r chi.Router, h *api.Handlers) {
	r.Get("/ws", h.GameWS)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/healthz", h.Health)
		r.Handle("/metrics", metrics.Handler())
		r.Route("/api/v1/game", func(r chi.Router) {
			r.Get("/rooms", h.ListRooms)
			r.Get("/rooms/{roomName}/player", h.RoomPlayer)
			r.Post("/rooms/invite", h.Invite)
			r.Get("/players", h.Players)
			r.Get("/history/{userKey}", h.History)
		})
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
