package session

import (
	"github.com/judgegodwins/chess-relay/game"
	"github.com/judgegodwins/chess-relay/room"
)

// Outbound notification types.
const (
	EventSideAssignment = "side_assignment"
	EventOpponentJoined = "opponent_joined"
	EventOpponentLeft   = "opponent_left"
	EventRoomFull       = "room_full"
	EventRoomNotFound   = "room_not_found"
	EventMoveApplied    = "move_applied"
	EventInvalidMove    = "invalid_move"
	EventNotYourTurn    = "not_your_turn"
	EventStatusUpdate   = "status_update"
	EventLeft           = "left"
)

// Notification is one outbound message addressed to a single connection.
type Notification struct {
	Type    string
	Payload any
}

// Notifier delivers notifications to connections. Send is called while a
// room lock is held: it must not block and must not call back into the
// Coordinator. Notifications to one connection must be delivered in the
// order Send was called.
type Notifier interface {
	Send(conn room.ConnID, n Notification)
}

type PayloadSideAssignment struct {
	RoomID   string    `json:"room_id"`
	Side     game.Side `json:"side"`
	Color    string    `json:"color"`
	Position string    `json:"position"`
}

type PayloadOpponent struct {
	RoomID   string `json:"room_id"`
	Opponent string `json:"opponent,omitempty"`
}

type PayloadMessage struct {
	Message string `json:"message"`
}

type PayloadMoveApplied struct {
	RoomID   string    `json:"room_id"`
	Move     string    `json:"move"`
	UCI      string    `json:"uci"`
	Position string    `json:"position"`
	Side     game.Side `json:"side"`
}

type PayloadStatus struct {
	RoomID string      `json:"room_id"`
	Status room.Status `json:"status"`
	Turn   game.Side   `json:"turn,omitempty"`
	Winner game.Side   `json:"winner,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

type PayloadRoom struct {
	RoomID string `json:"room_id"`
}
