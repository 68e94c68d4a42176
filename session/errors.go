package session

import "errors"

// Rejections. Each is reported to the offending connection before it is
// returned, so callers only need them for logging and tests.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrIllegalMove        = errors.New("illegal move")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrGameOver           = errors.New("game is over")
	ErrWaitingForOpponent = errors.New("waiting for opponent")
	ErrNotParticipant     = errors.New("not a participant of this room")
	ErrRulesEngine        = errors.New("rules engine fault")
)

var rejections = []error{
	ErrRoomNotFound,
	ErrRoomFull,
	ErrIllegalMove,
	ErrNotYourTurn,
	ErrGameOver,
	ErrWaitingForOpponent,
	ErrNotParticipant,
}

// IsRejection reports whether err is a protocol rejection that has already
// been delivered to the client.
func IsRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}
