package presence

import (
	"fmt"
	"sync"
)

// connection is one live transport connection: an outbox from the moment the
// transport attaches, and a session once login completes.
type connection struct {
	outbox  *Outbox
	session *Session
}

// Registry tracks live connections and their session bindings.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection // connID → connection
}

// NewRegistry creates an empty connection Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connection),
	}
}

// Register records a new transport connection with no session yet.
//
// Precondition: connID must be non-empty; outbox must be non-nil.
// Postcondition: The connection is tracked, or an error if the connID is already registered.
func (r *Registry) Register(connID string, outbox *Outbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		return fmt.Errorf("connection %q already registered", connID)
	}
	r.conns[connID] = &connection{outbox: outbox}
	return nil
}

// Bind attaches a session to a registered connection on successful login.
// A connection that already carries a session is rejected: re-login must not
// silently leak the previous room membership.
//
// Postcondition: Returns nil and the session is bound, or an error if the
// connID is unknown or already bound.
func (r *Registry) Bind(connID string, sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connID]
	if !exists {
		return fmt.Errorf("connection %q not registered", connID)
	}
	if conn.session != nil {
		return fmt.Errorf("connection %q already logged in as %q", connID, conn.session.Nickname())
	}
	conn.session = sess
	return nil
}

// Lookup returns the session bound to the given connection.
//
// Postcondition: Returns (session, true) if the connection is registered and
// logged in, or (nil, false) otherwise.
func (r *Registry) Lookup(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connID]
	if !exists || conn.session == nil {
		return nil, false
	}
	return conn.session, true
}

// OutboxFor returns the outbox of a registered connection, bound or not.
//
// Postcondition: Returns (outbox, true) if the connection is registered,
// or (nil, false) otherwise.
func (r *Registry) OutboxFor(connID string) (*Outbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connID]
	if !exists {
		return nil, false
	}
	return conn.outbox, true
}

// Unregister removes a connection on disconnect, closing its outbox and
// returning its bound session for downstream cleanup. Idempotent: a second
// call for the same connID returns (nil, false).
//
// Postcondition: The connection is no longer tracked and its outbox is closed.
func (r *Registry) Unregister(connID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connID]
	if !exists {
		return nil, false
	}
	delete(r.conns, connID)
	_ = conn.outbox.Close()
	return conn.session, true
}

// Count returns the number of live connections, logged in or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
