package websocket

import (
	"net/http"
	"slices"

	"github.com/dennisdiepolder/monti/acw/internal/auth"
	"github.com/dennisdiepolder/monti/acw/internal/config"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub      *Hub
	config   *config.Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler. Browser origins must be in
// ALLOWED_ORIGINS; requests without an Origin header are accepted.
func NewHandler(hub *Hub, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
			},
		},
		logger: logger.With().Str("component", "websocket_handler").Logger(),
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	claims, _ := auth.GetUserFromContext(r.Context())
	client := NewClient(h.hub, conn, h.config, h.logger, claims)

	h.hub.register <- client

	client.Start()
}
