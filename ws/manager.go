// Package ws is the websocket gateway: it owns client connections, decodes
// inbound events for the session coordinator and delivers its notifications.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/judgegodwins/chess-relay/http_utils"
	"github.com/judgegodwins/chess-relay/room"
	"github.com/judgegodwins/chess-relay/session"
	"github.com/judgegodwins/chess-relay/tokens"
	"github.com/judgegodwins/chess-relay/util"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"golang.org/x/exp/slices"
)

// Sessions is the room protocol the gateway drives.
type Sessions interface {
	Join(conn room.ConnID, roomID, name string) error
	Move(conn room.ConnID, roomID, moveText string) error
	Leave(conn room.ConnID, roomID string) error
	Disconnect(conn room.ConnID)
}

type ClientList map[string]*Client

type Manager struct {
	clients ClientList
	sync.RWMutex
	handlers   map[string]EventHandler
	config     *util.Config
	tokenMaker tokens.Maker
	sessions   Sessions
	upgrader   websocket.Upgrader
}

func NewManager(config *util.Config, maker tokens.Maker) *Manager {
	m := &Manager{
		clients:    make(ClientList),
		handlers:   make(map[string]EventHandler),
		config:     config,
		tokenMaker: maker,
	}

	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     m.checkOrigin,
	}

	m.setupEventHandlers()

	return m
}

// SetSessions attaches the coordinator. It must be called before serving.
func (m *Manager) SetSessions(s Sessions) {
	m.sessions = s
}

func (m *Manager) setupEventHandlers() {
	m.handlers[EventJoinRoom] = JoinRoomHandler
	m.handlers[EventMove] = MoveHandler
	m.handlers[EventLeaveRoom] = LeaveRoomHandler
}

func (m *Manager) routeEvent(ctx context.Context, evt Event, c *Client) error {
	handler, ok := m.handlers[evt.Type]
	if !ok {
		return errors.New("there is no such event type")
	}

	err := handler(ctx, evt, c)
	if session.IsRejection(err) {
		// already reported to the client as a typed event
		c.logger.Debug().Err(err).Str("type", evt.Type).Msg("event rejected")
		return nil
	}
	return err
}

// Send implements session.Notifier. It never blocks: a client that cannot
// keep up is disconnected.
func (m *Manager) Send(conn room.ConnID, n session.Notification) {
	m.RLock()
	client, ok := m.clients[string(conn)]
	m.RUnlock()

	if !ok {
		return
	}

	evt, err := NewEvent(n.Type, n.Payload)
	if err != nil {
		client.logger.Error().Err(err).Str("type", n.Type).Msg("error encoding notification")
		return
	}

	if !client.TrySend(evt) {
		client.logger.Warn().Str("type", n.Type).Msg("egress full, dropping client")
		client.handleError(ErrSlowConsumer)
	}
}

func (m *Manager) addClient(client *Client) {
	m.Lock()
	defer m.Unlock()

	m.clients[client.ID] = client
}

func (m *Manager) removeClient(client *Client) {
	m.Lock()
	_, ok := m.clients[client.ID]
	delete(m.clients, client.ID)
	m.Unlock()

	if ok {
		client.close()
	}
}

// Len returns the number of connected clients.
func (m *Manager) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.clients)
}

// Shutdown asks every connected client to disconnect. Each connection is torn
// down by its own handler.
func (m *Manager) Shutdown() {
	m.RLock()
	defer m.RUnlock()

	for _, client := range m.clients {
		client.handleError(ErrShuttingDown)
	}
}

// Websocket connection handler
func (m *Manager) ServeWS(c *gin.Context) {
	name := ""

	if token := c.Query("token"); token != "" {
		payload, err := m.tokenMaker.VerifyToken(token)
		if err != nil {
			http_utils.SendResponse(c.Writer, http.StatusUnauthorized, http_utils.NewBaseResponse(false, err.Error()))
			return
		}
		name = payload.Username
	} else if m.config.RequireAuth {
		http_utils.SendResponse(c.Writer, http.StatusUnauthorized, http_utils.NewBaseResponse(false, "token not sent"))
		return
	}

	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied to the request
		log.Warn().Err(err).Str("module", "ws").Msg("error upgrading to websocket connection")
		return
	}

	client := NewClient(conn, m, name)
	m.addClient(client)
	client.logger.Info().Str("name", name).Msg("client connected")

	ctx, cancel := context.WithCancel(c.Request.Context())

	var wg conc.WaitGroup
	wg.Go(func() { client.readMessages(ctx) })
	wg.Go(func() { client.writeMessages(ctx) })

	err = <-client.Err()

	// Both pumps must be gone before the disconnect: an event still being
	// handled could otherwise seat the connection again after it.
	cancel()
	m.removeClient(client)
	wg.Wait()
	m.sessions.Disconnect(client.ConnID())

	client.logger.Info().Err(err).Msg("client disconnected")
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(m.config.AllowedOrigins, "*") || slices.Contains(m.config.AllowedOrigins, origin)
}
