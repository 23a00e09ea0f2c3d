// Package server implements the wire protocol for the room relay: every frame
// is a JSON envelope carrying a type tag and the payload for that tag.
package server

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MessageType tags an envelope on the wire.
type MessageType string

// Client-originated tags. Anything else arriving from a client is rejected.
const (
	TypeJoin MessageType = "join"
	TypeChat MessageType = "chat"
)

// Server-originated tags.
const (
	TypeUserList   MessageType = "user-list"
	TypeUserJoined MessageType = "user-joined"
	TypeUserLeft   MessageType = "user-left"
	TypeError      MessageType = "error"
)

// Envelope is one wire frame: a tag plus the payload belonging to that tag.
// Decoded envelopes always carry one of the typed payload structs below.
type Envelope struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// JoinPayload asks to enter a room under a display name. Both fields are
// required and must be non-empty.
type JoinPayload struct {
	RoomID   string `json:"roomId" validate:"required"`
	UserName string `json:"userName" validate:"required"`
}

// ChatPayload carries one chat line. Inbound frames only set Message; the
// server fills UserName from the sender's session before fanning out.
type ChatPayload struct {
	UserName string `json:"userName,omitempty"`
	Message  string `json:"message"`
}

// UserListPayload is the room roster sent to a client right after it joins.
type UserListPayload struct {
	Users []string `json:"users"`
}

// UserEventPayload announces a single participant joining or leaving.
type UserEventPayload struct {
	UserName string `json:"userName"`
}

// ErrorPayload tells a client why its frame was refused.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeError reports an inbound frame that could not be turned into a valid
// client envelope. It never escapes the offending connection.
type DecodeError struct {
	Reason string
	cause  error
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("decode envelope: %s: %v", e.Reason, e.cause)
	}
	return "decode envelope: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.cause }

var validate = validator.New()

// Decode parses a raw text frame into a typed client envelope. It is strict:
// the frame must be valid JSON, the tag must be join or chat, and the payload
// must carry the required fields for that tag. Server-originated tags are
// refused here on purpose; clients have no business sending them.
func Decode(raw []byte) (Envelope, error) {
	var frame struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Envelope{}, &DecodeError{Reason: "frame is not valid JSON", cause: err}
	}

	switch frame.Type {
	case TypeJoin:
		var p JoinPayload
		if err := unmarshalPayload(frame.Payload, &p); err != nil {
			return Envelope{}, err
		}
		if err := validate.Struct(p); err != nil {
			return Envelope{}, &DecodeError{Reason: "join requires roomId and userName", cause: err}
		}
		return Envelope{Type: TypeJoin, Payload: p}, nil

	case TypeChat:
		// Message is decoded through a pointer so a missing key is refused
		// while an explicitly empty string passes.
		var p struct {
			Message *string `json:"message"`
		}
		if err := unmarshalPayload(frame.Payload, &p); err != nil {
			return Envelope{}, err
		}
		if p.Message == nil {
			return Envelope{}, &DecodeError{Reason: "chat requires a message field"}
		}
		return Envelope{Type: TypeChat, Payload: ChatPayload{Message: *p.Message}}, nil

	case "":
		return Envelope{}, &DecodeError{Reason: "missing type field"}

	default:
		return Envelope{}, &DecodeError{Reason: fmt.Sprintf("unsupported client message type %q", frame.Type)}
	}
}

func unmarshalPayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return &DecodeError{Reason: "missing payload"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &DecodeError{Reason: "payload is not a valid object", cause: err}
	}
	return nil
}

// Encode serializes an envelope to its wire frame. Server-constructed
// envelopes only ever carry the plain string payloads above, so encoding is
// total; the fallback exists to keep a marshal bug from silencing a frame.
func Encode(env Envelope) []byte {
	b, err := json.Marshal(env)
	if err != nil {
		b, _ = json.Marshal(Envelope{
			Type:    TypeError,
			Payload: ErrorPayload{Message: "internal encoding error"},
		})
	}
	return b
}
