package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/judgegodwins/chess-relay/http_utils"
	"github.com/judgegodwins/chess-relay/util"
)

func JoinRoomHandler(ctx context.Context, e Event, c *Client) error {
	var payload PayloadRoom

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	return c.manager.sessions.Join(c.ConnID(), payload.RoomID, c.Name)
}

func MoveHandler(ctx context.Context, e Event, c *Client) error {
	var payload PayloadMove

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	return c.manager.sessions.Move(c.ConnID(), payload.RoomID, payload.Move)
}

func LeaveRoomHandler(ctx context.Context, e Event, c *Client) error {
	var payload PayloadRoom

	if err := decodePayload(e, &payload); err != nil {
		return err
	}

	return c.manager.sessions.Leave(c.ConnID(), payload.RoomID)
}

// decodePayload unmarshals and validates the payload of e into v.
func decodePayload(e Event, v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}

	if res, ok := http_utils.ValidateStruct(util.Validate, v); !ok {
		return fmt.Errorf("invalid %s payload: %s", e.Type, strings.Join(res.Errors, "; "))
	}

	return nil
}
