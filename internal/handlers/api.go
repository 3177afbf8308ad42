// internal/handlers/api.go
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/gamehub/internal/middleware"
	"github.com/skip2/go-qrcode"
	"github.com/sirupsen/logrus"
)

const qrSize = 256

// RouterConfig is what NewRouter needs beyond the hub.
type RouterConfig struct {
	AllowedOrigins []string
	PublicURL      string
	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// NewRouter mounts the HTTP API and the websocket endpoint.
func NewRouter(logger *logrus.Logger, hub *Hub, accounts *AccountHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "connections": hub.ConnectionCount()})
	})

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", hub.ListRoomsHandler)
		r.Get("/public", hub.PublicRoomsHandler)
		r.Get("/{roomID}/qr", hub.RoomQRHandler(cfg.PublicURL))
	})

	limiter := middleware.NewIPRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateLimit)
	r.Route("/api/auth", func(r chi.Router) {
		r.With(limiter.Limit).Post("/signup", accounts.Signup)
		r.With(limiter.Limit).Post("/login", accounts.Login)
		r.Post("/logout", accounts.Logout)
		r.Get("/me", accounts.Me)
	})

	r.Get("/ws", WSHandler(logger, hub, cfg.AllowedOrigins))
	return r
}

func (h *Hub) ListRoomsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": h.dir.ListRooms()})
}

func (h *Hub) PublicRoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.dir.PublicRooms(r.Context())
	if err != nil {
		h.logger.Errorf("failed to list public rooms: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rooms": rooms})
}

// RoomQRHandler serves a PNG QR code of the room's join link.
func (h *Hub) RoomQRHandler(publicURL string) http.HandlerFunc {
	base := strings.TrimRight(publicURL, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		if _, ok := h.dir.GetRoom(roomID); !ok {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		png, err := qrcode.Encode(base+"/join/"+roomID, qrcode.Medium, qrSize)
		if err != nil {
			h.logger.Errorf("Room %s: qr generation failed: %v", roomID, err)
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
