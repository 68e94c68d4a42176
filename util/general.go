package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewRoomID suggests a short room id for players to share.
func NewRoomID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
