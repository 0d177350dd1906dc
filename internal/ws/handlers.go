package ws

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/k0msak007/jobber-chat/internal/auth"
)

// Handler upgrades HTTP connections to WebSocket and spawns the read/write
// pumps for the new client.
type Handler struct {
	hub        *Hub
	jwtService *auth.JWTService
	upgrader   websocket.Upgrader
}

func NewHandler(hub *Hub, jwtService *auth.JWTService, allowedOrigins string) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewOriginChecker(allowedOrigins),
		},
	}
}

// RegisterRoutes wires the chat WebSocket endpoint.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/chat", h.ServeWS).Methods(http.MethodGet)
}

// ServeWS upgrades a GET /ws/chat request to a WebSocket connection.
// Authentication reads the gateway JWT from:
//  1. The `token` query parameter, or
//  2. The `Authorization: Bearer <token>` header.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}

	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already wrote the error response.
		return
	}

	client := NewClient(h.hub, conn, claims.Username)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
