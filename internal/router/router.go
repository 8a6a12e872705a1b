// Package router binds inbound protocol events to the presence registries
// and produces the outbound broadcasts. It is the only writer of connection,
// session, and room state.
package router

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/parlorchat/parlor/internal/config"
	"github.com/parlorchat/parlor/internal/presence"
	"github.com/parlorchat/parlor/internal/protocol"
)

// DefaultRoom is the room joined when a login carries no room ID.
const DefaultRoom = "default"

const (
	maxNicknameRunes = 32
	maxMessageRunes  = 512
)

// fallbackNickname replaces a nickname that is empty after trimming. The
// protocol has no login-rejection event, so coercion is the only option that
// keeps the client usable.
const fallbackNickname = "anonymous"

// Router is the per-connection event state machine:
// Connected → LoggedIn → Disconnected.
type Router struct {
	registry *presence.Registry
	rooms    *presence.Directory
	stage    config.StageConfig
	logger   *zap.Logger
}

// New creates a Router over the given registries.
//
// Precondition: registry, rooms, and logger must be non-nil; stage must be valid.
func New(registry *presence.Registry, rooms *presence.Directory, stage config.StageConfig, logger *zap.Logger) *Router {
	return &Router{
		registry: registry,
		rooms:    rooms,
		stage:    stage,
		logger:   logger,
	}
}

// Connect registers a freshly attached transport connection. No session
// exists until the connection logs in.
//
// Precondition: connID must be unique for the connection's lifetime.
// Postcondition: The connection is registered, or an error on duplicate connID.
func (r *Router) Connect(connID string, outbox *presence.Outbox) error {
	if err := r.registry.Register(connID, outbox); err != nil {
		return err
	}

	// Tell the client its identity; it has no other way to recognise
	// itself in the roster.
	frame, err := protocol.Encode(protocol.EventConnected, connID)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}
	if err := outbox.Push(frame); err != nil {
		r.logger.Warn("unicasting identity",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
	}

	r.logger.Info("connection attached", zap.String("conn_id", connID))
	return nil
}

// Login creates a session for the connection, joins its room, unicasts the
// full roster to the joiner, and announces the join to the rest of the room.
// A second login on the same connection is rejected.
func (r *Router) Login(connID, nickname, roomID string) {
	nickname = sanitizeNickname(nickname)
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		roomID = DefaultRoom
	}

	outbox, ok := r.registry.OutboxFor(connID)
	if !ok {
		r.logger.Warn("login from unknown connection", zap.String("conn_id", connID))
		return
	}

	sess := presence.NewSession(connID, nickname, roomID, r.randomPosition(), outbox)
	if err := r.registry.Bind(connID, sess); err != nil {
		r.logger.Warn("login rejected",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
		return
	}
	r.rooms.Join(sess)

	// The roster includes the joiner itself: it joined before the snapshot.
	roster := r.rooms.Snapshot(roomID)
	frame, err := protocol.Encode(protocol.EventLoginSuccess, roster)
	if err != nil {
		r.logger.Error("encoding roster", zap.Error(err))
		return
	}
	if err := sess.Send(frame); err != nil {
		r.logger.Warn("unicasting roster",
			zap.String("conn_id", connID),
			zap.Error(err),
		)
	}

	joined, err := protocol.Encode(protocol.EventUserJoined, protocol.UserJoined{
		ID:   connID,
		User: sess.View(),
	})
	if err != nil {
		r.logger.Error("encoding join announcement", zap.Error(err))
		return
	}
	delivered := r.rooms.Broadcast(roomID, joined, connID)

	r.logger.Info("user logged in",
		zap.String("conn_id", connID),
		zap.String("nickname", nickname),
		zap.String("room", roomID),
		zap.Int("peers_notified", delivered),
	)
}

// Message broadcasts a chat line to the sender's whole room, sender included.
// The server echo is the single source of truth for what was said; clients
// must not also render locally. Events from connections with no bound session
// are dropped silently.
func (r *Router) Message(connID, text string) {
	sess, ok := r.registry.Lookup(connID)
	if !ok {
		r.logger.Debug("message from connection without session", zap.String("conn_id", connID))
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if runes := []rune(text); len(runes) > maxMessageRunes {
		text = string(runes[:maxMessageRunes])
	}

	frame, err := protocol.Encode(protocol.EventMessage, protocol.MessageBroadcast{
		SenderID: connID,
		Nickname: sess.Nickname(),
		Text:     text,
	})
	if err != nil {
		r.logger.Error("encoding message", zap.Error(err))
		return
	}
	r.rooms.Broadcast(sess.RoomID(), frame, "")
}

// Move updates the session's position and announces it to the rest of the
// room, excluding the mover. Non-finite coordinates are dropped; finite ones
// are clamped into the stage bounds before any state mutates.
func (r *Router) Move(connID string, x, y float64) {
	sess, ok := r.registry.Lookup(connID)
	if !ok {
		r.logger.Debug("move from connection without session", zap.String("conn_id", connID))
		return
	}

	if !isFinite(x) || !isFinite(y) {
		r.logger.Warn("rejecting non-finite position",
			zap.String("conn_id", connID),
			zap.Float64("x", x),
			zap.Float64("y", y),
		)
		return
	}

	pos := protocol.Position{
		X: clamp(x, r.stage.MinX, r.stage.MaxX),
		Y: clamp(y, r.stage.MinY, r.stage.MaxY),
	}
	sess.SetPosition(pos)

	frame, err := protocol.Encode(protocol.EventUserMoved, protocol.UserMoved{
		ID:       connID,
		Position: pos,
	})
	if err != nil {
		r.logger.Error("encoding move", zap.Error(err))
		return
	}
	r.rooms.Broadcast(sess.RoomID(), frame, connID)
}

// Disconnect tears down a connection: unregisters it, removes its session
// from the room, and announces the departure to the remaining members.
// Safe to invoke at any state and idempotent; a repeat call or a disconnect
// before login completes emits nothing.
func (r *Router) Disconnect(connID string) {
	sess, existed := r.registry.Unregister(connID)
	if !existed {
		return
	}
	if sess == nil {
		r.logger.Info("connection detached before login", zap.String("conn_id", connID))
		return
	}

	roomID := sess.RoomID()
	r.rooms.Leave(roomID, connID)

	frame, err := protocol.Encode(protocol.EventUserLeft, connID)
	if err != nil {
		r.logger.Error("encoding departure", zap.Error(err))
		return
	}
	delivered := r.rooms.Broadcast(roomID, frame, connID)

	r.logger.Info("user disconnected",
		zap.String("conn_id", connID),
		zap.String("nickname", sess.Nickname()),
		zap.String("room", roomID),
		zap.Int("peers_notified", delivered),
	)
}

// randomPosition picks a uniform initial position inside the stage bounds.
func (r *Router) randomPosition() protocol.Position {
	return protocol.Position{
		X: r.stage.MinX + rand.Float64()*(r.stage.MaxX-r.stage.MinX),
		Y: r.stage.MinY + rand.Float64()*(r.stage.MaxY-r.stage.MinY),
	}
}

func sanitizeNickname(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return fallbackNickname
	}
	if runes := []rune(nickname); len(runes) > maxNicknameRunes {
		nickname = string(runes[:maxNicknameRunes])
	}
	return nickname
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
