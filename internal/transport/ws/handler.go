// Package ws accepts websocket connections and pumps protocol frames
// between each client and the event router.
package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parlorchat/parlor/internal/config"
	"github.com/parlorchat/parlor/internal/presence"
	"github.com/parlorchat/parlor/internal/router"
)

// Handler upgrades HTTP requests to websocket connections and runs the
// per-connection read and write pumps.
type Handler struct {
	cfg      config.WebSocketConfig
	router   *router.Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket Handler.
//
// Precondition: cfg must be valid; r and logger must be non-nil.
func NewHandler(cfg config.WebSocketConfig, r *router.Router, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		router: r,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TLS termination and origin policy belong to the reverse proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request, mints a connection identity, attaches it to
// the router, and starts the pumps. The identity is stable for the
// connection's lifetime; a client that reconnects is a brand-new identity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	connID := uuid.NewString()
	outbox := presence.NewOutbox(connID, h.cfg.OutboxBuffer)

	if err := h.router.Connect(connID, outbox); err != nil {
		h.logger.Error("attaching connection",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
		_ = conn.Close()
		return
	}

	h.logger.Info("client connected",
		zap.String("conn_id", connID),
		zap.String("remote_addr", r.RemoteAddr),
	)

	c := &client{
		connID: connID,
		conn:   conn,
		outbox: outbox,
		cfg:    h.cfg,
		router: h.router,
		logger: h.logger.With(zap.String("conn_id", connID)),
	}

	go c.writePump()
	go c.readPump()
}
