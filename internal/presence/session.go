package presence

import (
	"fmt"
	"sync"

	"github.com/parlorchat/parlor/internal/protocol"
)

// Session is the server-side record of a logged-in connection. Identity,
// nickname, and room are fixed at login; only the position mutates afterwards.
type Session struct {
	id       string
	nickname string
	roomID   string

	mu  sync.Mutex
	pos protocol.Position

	outbox *Outbox
}

// NewSession creates a Session bound to the given outbox.
//
// Precondition: id and roomID must be non-empty; outbox may be nil only in tests
// that never fan out to the session.
func NewSession(id, nickname, roomID string, pos protocol.Position, outbox *Outbox) *Session {
	return &Session{
		id:       id,
		nickname: nickname,
		roomID:   roomID,
		pos:      pos,
		outbox:   outbox,
	}
}

// ID returns the owning connection's identifier.
func (s *Session) ID() string { return s.id }

// Nickname returns the display name chosen at login.
func (s *Session) Nickname() string { return s.nickname }

// RoomID returns the room joined at login. Sessions never switch rooms.
func (s *Session) RoomID() string { return s.roomID }

// Position returns the current stage position.
func (s *Session) Position() protocol.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// SetPosition replaces the current stage position.
func (s *Session) SetPosition(pos protocol.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
}

// View returns the client-visible projection of the session.
func (s *Session) View() protocol.SessionView {
	pos := s.Position()
	return protocol.SessionView{
		Nickname: s.nickname,
		RoomID:   s.roomID,
		X:        pos.X,
		Y:        pos.Y,
	}
}

// Send pushes a frame to the session's outbox without blocking.
//
// Postcondition: The frame is enqueued, or an error if the session has no
// outbox or the outbox is closed or full.
func (s *Session) Send(frame []byte) error {
	if s.outbox == nil {
		return fmt.Errorf("session %s has no outbox", s.id)
	}
	return s.outbox.Push(frame)
}
