package ws

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event is the envelope of every frame, in both directions.
type Event struct {
	Type    string          `json:"type"`
	TraceID string          `json:"trace_id"`
	Payload json.RawMessage `json:"payload"`
}

type EventHandler func(ctx context.Context, evt Event, c *Client) error

// Inbound event types. Outbound types are defined by the session package.
const (
	EventJoinRoom  = "join_room"
	EventMove      = "move"
	EventLeaveRoom = "leave_room"
	EventError     = "error"
)

type PayloadError struct {
	Message string `json:"message"`
}

type PayloadRoom struct {
	RoomID string `json:"room_id" validate:"required,max=64,printascii"`
}

type PayloadMove struct {
	RoomID string `json:"room_id" validate:"required,max=64,printascii"`
	Move   string `json:"move" validate:"required,max=16"`
}

func NewEvent(evtType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)

	if err != nil {
		return Event{}, err
	}

	evt := NewEventStruct(evtType, b, "")

	return evt, nil
}

// NewErrorEvent builds the error_<traceId> reply to a request that failed.
func NewErrorEvent(traceId, message string) (Event, error) {
	payload := PayloadError{Message: message}
	b, err := json.Marshal(payload)

	if err != nil {
		return Event{}, err
	}

	evt := NewEventStruct(fmt.Sprintf("%v_%v", EventError, traceId), b, traceId)

	return evt, nil
}

func NewEventStruct(evtType string, payload []byte, traceId string) Event {
	return Event{
		Type:    evtType,
		TraceID: traceId,
		Payload: payload,
	}
}
