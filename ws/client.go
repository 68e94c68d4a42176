package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/judgegodwins/chess-relay/room"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

var (
	ErrSlowConsumer = errors.New("client egress buffer is full")
	ErrShuttingDown = errors.New("server is shutting down")
)

type Client struct {
	ID         string
	Name       string
	connection *websocket.Conn
	manager    *Manager
	egress     chan Event
	err        chan error
	logger     zerolog.Logger
}

func NewClient(conn *websocket.Conn, manager *Manager, name string) *Client {
	id := uuid.NewString()
	return &Client{
		ID:         id,
		Name:       name,
		connection: conn,
		manager:    manager,
		egress:     make(chan Event, manager.config.EgressBuffer),
		err:        make(chan error, 2),
		logger:     log.With().Str("module", "ws").Str("conn", id).Logger(),
	}
}

func (c *Client) ConnID() room.ConnID {
	return room.ConnID(c.ID)
}

// Reads incoming messages from the clients websocket connection
func (c *Client) readMessages(ctx context.Context) {
	c.connection.SetReadLimit(c.manager.config.ReadLimit)

	if err := c.connection.SetReadDeadline(time.Now().Add(c.manager.config.PongWait)); err != nil {
		c.handleError(err)
		return
	}

	c.connection.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, payload, err := c.connection.ReadMessage()

			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					c.logger.Warn().Err(err).Msg("error reading message")
				}
				c.handleError(err)
				return
			}

			var evt Event

			if err := json.Unmarshal(payload, &evt); err != nil {
				c.pushError("", "malformed event")
				continue
			}

			c.logger.Debug().Str("type", evt.Type).Str("trace_id", evt.TraceID).Msg("event received")

			// Any errors returned from event handlers are emitted to the
			// client using the trace id
			if err := c.manager.routeEvent(ctx, evt, c); err != nil {
				c.logger.Info().Err(err).Str("type", evt.Type).Msg("error handling event")
				c.pushError(evt.TraceID, err.Error())
			}
		}
	}
}

// writes messages pushed to the client's egress channel
func (c *Client) writeMessages(ctx context.Context) {
	ticker := time.NewTicker(c.manager.config.PingInterval())

	defer func() {
		ticker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case message := <-c.egress:
			data, err := json.Marshal(message)

			if err != nil {
				c.handleError(err)
				return
			}

			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.TextMessage, data); err != nil {
				c.handleError(err)
				return
			}
		case <-ticker.C:
			c.connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.handleError(err)
				return
			}
		}
	}
}

// Sets a new read deadline when a pong is received for a ping message.
func (c *Client) pongHandler(pongMsg string) error {
	return c.connection.SetReadDeadline(time.Now().Add(c.manager.config.PongWait))
}

// handleError reports a fatal client error to the http handler, which closes
// the connection and removes the client. Only the first error is kept.
func (c *Client) handleError(e error) {
	select {
	case c.err <- e:
	default:
	}
}

// Returns the error channel
func (c *Client) Err() <-chan error {
	return c.err
}

// TrySend queues evt for delivery without blocking. It reports false when
// the egress buffer is full.
func (c *Client) TrySend(evt Event) bool {
	select {
	case c.egress <- evt:
		return true
	default:
		return false
	}
}

func (c *Client) pushError(traceID, message string) {
	errEvent, err := NewErrorEvent(traceID, message)
	if err != nil {
		c.handleError(err)
		return
	}

	if !c.TrySend(errEvent) {
		c.handleError(ErrSlowConsumer)
	}
}

// close sends a close frame and closes the underlying connection.
func (c *Client) close() {
	err := c.connection.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug().Err(err).Msg("error sending close message")
	}
	c.connection.Close()
}
