package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"studyhall/auth"
	"studyhall/contract"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websocket sessions and hands each
// one a sink registered with the room.
type Handler struct {
	log          *slog.Logger
	hub          contract.IHub
	ctx          context.Context
	limits       Limits
	bufferSize   int
	maxFrameSize int64

	// jwtSecret enables token checks when non-empty. An empty secret
	// means the deployment trusts its network boundary instead.
	jwtSecret []byte

	upgrader websocket.Upgrader
}

func NewHandler(ctx context.Context, log *slog.Logger, hub contract.IHub, limits Limits, bufferSize int, maxFrameSize int64, jwtSecret []byte) *Handler {
	return &Handler{
		log:          log,
		hub:          hub,
		ctx:          ctx,
		limits:       limits,
		bufferSize:   bufferSize,
		maxFrameSize: maxFrameSize,
		jwtSecret:    jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if len(h.jwtSecret) > 0 {
		if _, err := h.authenticate(r); err != nil {
			h.log.Warn("Rejected unauthenticated connection", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Unable to upgrade connection", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := &Client{
		log:          h.log,
		hub:          h.hub,
		conn:         conn,
		sink:         NewSink(h.bufferSize),
		connectionID: uuid.NewString(),
		limits:       h.limits,
		maxFrameSize: h.maxFrameSize,
		ctx:          h.ctx,
	}

	h.log.Info("Connection established", "connectionID", client.connectionID, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

// authenticate checks the token from the Authorization header, falling
// back to the "token" query param for browser websocket clients that
// cannot set headers.
func (h *Handler) authenticate(r *http.Request) (*auth.Claims, error) {
	tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	return auth.ValidateToken(h.jwtSecret, tokenString)
}
