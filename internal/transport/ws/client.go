package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parlorchat/parlor/internal/config"
	"github.com/parlorchat/parlor/internal/presence"
	"github.com/parlorchat/parlor/internal/protocol"
	"github.com/parlorchat/parlor/internal/router"
)

// client holds one websocket connection and its pumps.
type client struct {
	connID string
	conn   *websocket.Conn
	outbox *presence.Outbox
	cfg    config.WebSocketConfig
	router *router.Router
	logger *zap.Logger
}

// readPump reads frames from the websocket, decodes them, and dispatches to
// the router. It owns the disconnect transition: any read failure, including
// a clean close, tears the connection down exactly once via the router.
func (c *client) readPump() {
	defer func() {
		c.router.Disconnect(c.connID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		c.dispatch(frame)
	}
}

// dispatch decodes one inbound frame and routes it. Malformed frames and
// unknown event names are dropped without killing the connection: a fault in
// one frame must not cost the client its session.
func (c *client) dispatch(frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		c.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch env.Event {
	case protocol.EventLogin:
		var req protocol.LoginRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.logger.Warn("dropping malformed login payload", zap.Error(err))
			return
		}
		c.router.Login(c.connID, req.Nickname, req.RoomID)

	case protocol.EventMessage:
		var req protocol.MessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.logger.Warn("dropping malformed message payload", zap.Error(err))
			return
		}
		c.router.Message(c.connID, req.Text)

	case protocol.EventMove:
		var req protocol.MoveRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.logger.Warn("dropping malformed move payload", zap.Error(err))
			return
		}
		c.router.Move(c.connID, req.X, req.Y)

	default:
		c.logger.Debug("dropping unknown event", zap.String("event", env.Event))
	}
}

// writePump drains the outbox to the websocket and keeps the connection
// alive with pings. When the outbox closes (the registry unregistered the
// connection) it sends a close frame and exits.
func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.outbox.Frames():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
