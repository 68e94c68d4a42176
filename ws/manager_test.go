package ws

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/judgegodwins/chess-relay/game"
	"github.com/judgegodwins/chess-relay/room"
	"github.com/judgegodwins/chess-relay/session"
	"github.com/stretchr/testify/require"
)

func TestPlayOverWebsocket(t *testing.T) {
	srv := newTestServer(t, testConfig())
	x := srv.dial(t, "")
	y := srv.dial(t, "")

	send(t, x, EventJoinRoom, "1", PayloadRoom{RoomID: "ws-r1"})
	side := decode[session.PayloadSideAssignment](t, expect(t, x, session.EventSideAssignment))
	require.Equal(t, game.SideA, side.Side)

	send(t, y, EventJoinRoom, "1", PayloadRoom{RoomID: "ws-r1"})
	side = decode[session.PayloadSideAssignment](t, expect(t, y, session.EventSideAssignment))
	require.Equal(t, game.SideB, side.Side)
	require.Equal(t, session.EventOpponentJoined, next(t, y).Type)

	status := decode[session.PayloadStatus](t, next(t, y))
	require.Equal(t, room.StatusSideATurn, status.Status)

	expect(t, x, session.EventOpponentJoined)
	expect(t, x, session.EventStatusUpdate)

	send(t, x, EventMove, "2", PayloadMove{RoomID: "ws-r1", Move: "e4"})

	for _, conn := range []*websocket.Conn{x, y} {
		applied := decode[session.PayloadMoveApplied](t, expect(t, conn, session.EventMoveApplied))
		require.Equal(t, "e4", applied.Move)
		require.Equal(t, "e2e4", applied.UCI)

		status := decode[session.PayloadStatus](t, next(t, conn))
		require.Equal(t, room.StatusSideBTurn, status.Status)
	}

	send(t, y, EventMove, "3", PayloadMove{RoomID: "ws-r1", Move: "e9"})
	evt := next(t, y)
	require.Equal(t, session.EventInvalidMove, evt.Type)
	require.NotEmpty(t, decode[session.PayloadMessage](t, evt).Message)
}

func TestCoordinateNotationOverWebsocket(t *testing.T) {
	srv := newTestServer(t, testConfig())
	x := srv.dial(t, "")
	y := srv.dial(t, "")

	send(t, x, EventJoinRoom, "", PayloadRoom{RoomID: "ws-uci"})
	expect(t, x, session.EventSideAssignment)
	send(t, y, EventJoinRoom, "", PayloadRoom{RoomID: "ws-uci"})
	expect(t, y, session.EventStatusUpdate)
	expect(t, x, session.EventStatusUpdate)

	send(t, x, EventMove, "1", PayloadMove{RoomID: "ws-uci", Move: "g1f3"})

	for _, conn := range []*websocket.Conn{x, y} {
		applied := decode[session.PayloadMoveApplied](t, expect(t, conn, session.EventMoveApplied))
		require.Equal(t, "Nf3", applied.Move)
		require.Equal(t, "g1f3", applied.UCI)
		require.Contains(t, applied.Position, "5N2/PPPPPPPP/RNBQKB1R")
	}
}

// gatedSessions holds every Join until released and records the order in
// which joins and disconnects complete.
type gatedSessions struct {
	*session.Coordinator
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (g *gatedSessions) Join(conn room.ConnID, roomID, name string) error {
	g.entered <- struct{}{}
	<-g.release
	err := g.Coordinator.Join(conn, roomID, name)
	g.record("join")
	return err
}

func (g *gatedSessions) Disconnect(conn room.ConnID) {
	g.Coordinator.Disconnect(conn)
	g.record("disconnect")
}

func (g *gatedSessions) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *gatedSessions) recorded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func TestDisconnectWaitsForInflightEvents(t *testing.T) {
	srv := newTestServer(t, testConfig())
	gate := &gatedSessions{
		Coordinator: srv.sessions,
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	srv.manager.SetSessions(gate)

	conn := srv.dial(t, "")
	send(t, conn, EventJoinRoom, "", PayloadRoom{RoomID: "ws-teardown"})

	select {
	case <-gate.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("join was never handled")
	}

	// the connection is torn down while its join is still in flight
	srv.manager.Shutdown()
	require.Eventually(t, func() bool { return srv.manager.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
	require.Empty(t, gate.recorded())

	close(gate.release)

	require.Eventually(t, func() bool { return len(gate.recorded()) == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"join", "disconnect"}, gate.recorded())

	_, ok := srv.sessions.Snapshot("ws-teardown")
	require.False(t, ok)
	require.Zero(t, srv.sessions.Len())
}

func TestErrorEvents(t *testing.T) {
	srv := newTestServer(t, testConfig())
	conn := srv.dial(t, "")

	t.Run("unknown event type", func(t *testing.T) {
		send(t, conn, "dance", "t1", PayloadRoom{RoomID: "r"})

		evt := next(t, conn)
		require.Equal(t, "error_t1", evt.Type)
		require.Equal(t, "t1", evt.TraceID)
		require.Equal(t, "there is no such event type", decode[PayloadError](t, evt).Message)
	})

	t.Run("invalid payload", func(t *testing.T) {
		send(t, conn, EventJoinRoom, "t2", PayloadRoom{})

		evt := next(t, conn)
		require.Equal(t, "error_t2", evt.Type)
		require.Contains(t, decode[PayloadError](t, evt).Message, "room_id")
	})

	t.Run("malformed frame", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

		evt := next(t, conn)
		require.Equal(t, "error_", evt.Type)
	})

	t.Run("rejections are not errors", func(t *testing.T) {
		send(t, conn, EventMove, "t3", PayloadMove{RoomID: "nowhere", Move: "e4"})
		require.Equal(t, session.EventRoomNotFound, next(t, conn).Type)

		// the next frame answers the next request, no error_t3 in between
		send(t, conn, "dance", "t4", nil)
		require.Equal(t, "error_t4", next(t, conn).Type)
	})
}

func TestDisconnectNotifiesOpponent(t *testing.T) {
	srv := newTestServer(t, testConfig())
	x := srv.dial(t, "")
	y := srv.dial(t, "")

	send(t, x, EventJoinRoom, "", PayloadRoom{RoomID: "ws-r2"})
	expect(t, x, session.EventSideAssignment)
	send(t, y, EventJoinRoom, "", PayloadRoom{RoomID: "ws-r2"})
	expect(t, y, session.EventStatusUpdate)

	require.NoError(t, x.Close())

	left := decode[session.PayloadRoom](t, expect(t, y, session.EventOpponentLeft))
	require.Equal(t, "ws-r2", left.RoomID)

	require.Eventually(t, func() bool { return srv.manager.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestLeaveRoom(t *testing.T) {
	srv := newTestServer(t, testConfig())
	x := srv.dial(t, "")
	y := srv.dial(t, "")

	send(t, x, EventJoinRoom, "", PayloadRoom{RoomID: "ws-r3"})
	expect(t, x, session.EventSideAssignment)
	send(t, y, EventJoinRoom, "", PayloadRoom{RoomID: "ws-r3"})
	expect(t, y, session.EventStatusUpdate)

	send(t, x, EventLeaveRoom, "", PayloadRoom{RoomID: "ws-r3"})
	require.Equal(t, "ws-r3", decode[session.PayloadRoom](t, expect(t, x, session.EventLeft)).RoomID)
	expect(t, y, session.EventOpponentLeft)
}

func TestAuth(t *testing.T) {
	config := testConfig()
	config.RequireAuth = true
	srv := newTestServer(t, config)

	t.Run("token required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(srv.url, nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(srv.url+"?token=garbage", nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("names reach the opponent", func(t *testing.T) {
		xToken, _, err := srv.maker.CreateToken("judge", time.Minute)
		require.NoError(t, err)
		yToken, _, err := srv.maker.CreateToken("godwin", time.Minute)
		require.NoError(t, err)

		x := srv.dial(t, xToken)
		y := srv.dial(t, yToken)

		send(t, x, EventJoinRoom, "", PayloadRoom{RoomID: "ws-auth"})
		expect(t, x, session.EventSideAssignment)
		send(t, y, EventJoinRoom, "", PayloadRoom{RoomID: "ws-auth"})

		require.Equal(t, "judge", decode[session.PayloadOpponent](t, expect(t, y, session.EventOpponentJoined)).Opponent)
		require.Equal(t, "godwin", decode[session.PayloadOpponent](t, expect(t, x, session.EventOpponentJoined)).Opponent)
	})
}

func TestShutdownClosesClients(t *testing.T) {
	srv := newTestServer(t, testConfig())
	conn := srv.dial(t, "")

	send(t, conn, EventJoinRoom, "", PayloadRoom{RoomID: "ws-bye"})
	expect(t, conn, session.EventSideAssignment)

	srv.manager.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
	}
}

func TestSendDropsSlowClient(t *testing.T) {
	config := testConfig()
	config.EgressBuffer = 1
	m := NewManager(config, nil)

	client := NewClient(nil, m, "")
	m.addClient(client)

	m.Send(client.ConnID(), session.Notification{Type: session.EventLeft, Payload: session.PayloadRoom{RoomID: "r"}})
	require.Empty(t, client.Err())

	m.Send(client.ConnID(), session.Notification{Type: session.EventLeft, Payload: session.PayloadRoom{RoomID: "r"}})
	require.ErrorIs(t, <-client.Err(), ErrSlowConsumer)

	require.NotPanics(t, func() {
		m.Send("unknown", session.Notification{Type: session.EventLeft})
	})
}

func TestCheckOrigin(t *testing.T) {
	m := NewManager(testConfig(), nil)

	request := func(origin string) *http.Request {
		r, err := http.NewRequest(http.MethodGet, "/ws", nil)
		require.NoError(t, err)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	require.True(t, m.checkOrigin(request("")))
	require.True(t, m.checkOrigin(request("http://localhost:3000")))
	require.False(t, m.checkOrigin(request("http://evil.example")))

	m.config.AllowedOrigins = []string{"*"}
	require.True(t, m.checkOrigin(request("http://evil.example")))
}

func TestNewErrorEvent(t *testing.T) {
	evt, err := NewErrorEvent("abc", "boom")
	require.NoError(t, err)
	require.Equal(t, "error_abc", evt.Type)
	require.Equal(t, "abc", evt.TraceID)
	require.JSONEq(t, `{"message":"boom"}`, string(evt.Payload))
}
