// Package protocol defines the JSON event protocol spoken between the parlor
// server and its clients. Every frame is an Envelope: a named event with a
// structured payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound event names (client → server).
const (
	EventLogin   = "login"
	EventMessage = "message"
	EventMove    = "move"
)

// Outbound event names (server → client).
const (
	// EventConnected carries the transport-assigned connection ID to a
	// freshly attached client, before login. Payload: the ID string.
	EventConnected = "connected"

	EventLoginSuccess = "loginSuccess"
	EventUserJoined   = "userJoined"
	EventUserLeft     = "userLeft"
	EventUserMoved    = "userMoved"
)

// Envelope is the wire frame for both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Position is a 2D stage coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SessionView is the client-visible projection of a session.
type SessionView struct {
	Nickname string  `json:"nickname"`
	RoomID   string  `json:"roomID"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// LoginRequest is the payload of a login event.
type LoginRequest struct {
	Nickname string `json:"nickname"`
	RoomID   string `json:"roomID"`
}

// MessageRequest is the payload of an inbound message event.
type MessageRequest struct {
	Text string `json:"text"`
}

// MoveRequest is the payload of a move event.
type MoveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Roster maps connection IDs to session views. It is the loginSuccess payload.
type Roster map[string]SessionView

// UserJoined announces a new room member to the rest of the room.
type UserJoined struct {
	ID   string      `json:"id"`
	User SessionView `json:"user"`
}

// MessageBroadcast carries a chat line to the whole room, sender included.
type MessageBroadcast struct {
	SenderID string `json:"senderId"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}

// UserMoved announces a position change to the rest of the room.
// The mover is excluded: its local position is authoritative.
type UserMoved struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
}

// The userLeft payload is the bare connection ID string.

// Encode marshals a payload and wraps it in an Envelope frame.
//
// Postcondition: Returns a complete JSON frame or a non-nil error.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshalling %s envelope: %w", event, err)
	}
	return frame, nil
}

// Decode parses a wire frame into an Envelope.
//
// Postcondition: Returns an Envelope with a non-empty Event, or a non-nil error.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshalling envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("envelope missing event name")
	}
	return env, nil
}
