package presence

import (
	"sync"

	"github.com/parlorchat/parlor/internal/protocol"
)

// Directory groups sessions by room and fans frames out to room members.
// A room exists exactly while it has at least one member; the entry is
// pruned when the last member leaves. All methods are safe for concurrent use.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Session // roomID → connID → session
}

// NewDirectory creates an empty room Directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]map[string]*Session),
	}
}

// Join adds a session to its room's member set, creating the room on first join.
//
// Precondition: sess must be non-nil with a non-empty RoomID.
func (d *Directory) Join(sess *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	roomID := sess.RoomID()
	if d.rooms[roomID] == nil {
		d.rooms[roomID] = make(map[string]*Session)
	}
	d.rooms[roomID][sess.ID()] = sess
}

// Leave removes a connection from a room, pruning the room entry when it
// becomes empty. Unknown rooms and members are a no-op.
func (d *Directory) Leave(roomID, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(d.rooms, roomID)
	}
}

// Snapshot returns the current roster of a room as client-visible views.
//
// Postcondition: Returns a fresh map safe to serialize; empty for unknown rooms.
func (d *Directory) Snapshot(roomID string) protocol.Roster {
	d.mu.RLock()
	members := d.rooms[roomID]
	sessions := make([]*Session, 0, len(members))
	for _, sess := range members {
		sessions = append(sessions, sess)
	}
	d.mu.RUnlock()

	// Views are built outside the directory lock; Session.View takes the
	// session's own lock.
	roster := make(protocol.Roster, len(sessions))
	for _, sess := range sessions {
		roster[sess.ID()] = sess.View()
	}
	return roster
}

// Members returns the sessions currently in a room.
//
// Postcondition: Returns a fresh slice (may be empty); mutations to the
// directory after the call do not affect it.
func (d *Directory) Members(roomID string) []*Session {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	result := make([]*Session, 0, len(members))
	for _, sess := range members {
		result = append(result, sess)
	}
	return result
}

// Broadcast pushes a frame to every member of a room except excludeID.
// Delivery is fire-and-forget: closed or full outboxes are skipped. The member
// set is snapshotted at call time, so a concurrent join or leave cannot
// corrupt the fan-out.
//
// Postcondition: Returns the number of members the frame was enqueued for.
func (d *Directory) Broadcast(roomID string, frame []byte, excludeID string) int {
	members := d.Members(roomID)

	delivered := 0
	for _, sess := range members {
		if sess.ID() == excludeID {
			continue
		}
		if err := sess.Send(frame); err != nil {
			continue
		}
		delivered++
	}
	return delivered
}

// RoomCount returns the number of rooms with at least one member.
func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Stats returns the number of occupied rooms and total members across them.
func (d *Directory) Stats() (rooms, members int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rooms = len(d.rooms)
	for _, m := range d.rooms {
		members += len(m)
	}
	return rooms, members
}
