// Package session implements the room protocol: joining, moving, leaving and
// disconnect handling, serialized per room.
package session

import (
	"fmt"
	"time"

	"github.com/judgegodwins/chess-relay/game"
	"github.com/judgegodwins/chess-relay/room"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Coordinator applies every event affecting a room under that room's lock.
// Events for different rooms run in parallel.
type Coordinator struct {
	rooms    *room.Registry
	oracle   game.Oracle
	notifier Notifier
}

func NewCoordinator(rooms *room.Registry, oracle game.Oracle, notifier Notifier) *Coordinator {
	return &Coordinator{
		rooms:    rooms,
		oracle:   oracle,
		notifier: notifier,
	}
}

// Join seats conn in roomID, creating the room if needed. A connection sits
// in at most one room, so joining another room leaves the current one first.
func (c *Coordinator) Join(conn room.ConnID, roomID, name string) error {
	if current, ok := c.rooms.RoomOf(conn); ok && current != roomID {
		c.leave(conn, current)
	}

	for {
		rm, _ := c.rooms.GetOrCreate(roomID)
		rm.Lock()
		if rm.Closed() {
			// destroyed between lookup and lock; the registry no longer has it
			rm.Unlock()
			continue
		}
		err := c.join(rm, conn, name)
		rm.Unlock()
		return err
	}
}

func (c *Coordinator) join(rm *room.Room, conn room.ConnID, name string) error {
	logger := roomLogger(rm, conn)

	if p, ok := rm.Seat(conn); ok {
		c.assign(rm, p)
		return nil
	}

	if rm.Full() {
		c.notify(conn, EventRoomFull, PayloadMessage{Message: "This room is full."})
		logger.Info().Msg("join rejected, room full")
		return fmt.Errorf("join %s: %w", rm.ID(), ErrRoomFull)
	}

	p, _ := rm.Sit(conn, name)
	c.rooms.Bind(conn, rm.ID())
	c.assign(rm, p)
	logger.Info().Str("side", string(p.Side)).Msg("joined room")

	opp, ok := rm.Opponent(conn)
	if !ok {
		rm.SetStatus(room.StatusAwaitingOpponent)
		return nil
	}

	c.notify(conn, EventOpponentJoined, PayloadOpponent{RoomID: rm.ID(), Opponent: opp.Name})
	c.notify(opp.Conn, EventOpponentJoined, PayloadOpponent{RoomID: rm.ID(), Opponent: p.Name})

	cls, err := c.classify(rm.Position())
	if err != nil {
		logger.Error().Err(err).Msg("classify on join")
		cls = game.Classification{State: game.StateNormal, Turn: game.SideA}
	}
	c.publishStatus(rm, cls)
	return nil
}

// Move validates moveText against the room's position and, if legal, makes
// the result authoritative and broadcasts it to every participant.
func (c *Coordinator) Move(conn room.ConnID, roomID, moveText string) error {
	rm, ok := c.rooms.Get(roomID)
	if !ok {
		return c.roomNotFound(conn, roomID)
	}

	rm.Lock()
	defer rm.Unlock()
	if rm.Closed() {
		return c.roomNotFound(conn, roomID)
	}

	logger := roomLogger(rm, conn)

	p, ok := rm.Seat(conn)
	if !ok {
		return c.reject(conn, EventInvalidMove, ErrNotParticipant)
	}
	if rm.Status().Terminal() {
		return c.reject(conn, EventInvalidMove, ErrGameOver)
	}
	if !rm.Full() {
		return c.reject(conn, EventInvalidMove, ErrWaitingForOpponent)
	}

	pos := rm.Position()

	before, err := c.classify(pos)
	if err != nil {
		return c.fault(conn, logger, err)
	}
	if before.Turn != p.Side {
		return c.reject(conn, EventNotYourTurn, ErrNotYourTurn)
	}

	var (
		res      game.ParseResult
		next     *game.Position
		after    game.Classification
		snapshot string
		applyErr error
	)
	err = c.consult(func() {
		res = c.oracle.Parse(pos, moveText)
		if !res.Legal {
			return
		}
		if next, applyErr = c.oracle.Apply(pos, res.Move); applyErr != nil {
			return
		}
		after = c.oracle.Classify(next)
		snapshot = c.oracle.Encode(next)
	})
	if err == nil {
		err = applyErr
	}
	if err != nil {
		return c.fault(conn, logger, err)
	}

	if !res.Legal {
		c.notify(conn, EventInvalidMove, PayloadMessage{Message: res.Reason})
		logger.Debug().Str("move", moveText).Str("reason", res.Reason).Msg("illegal move")
		return fmt.Errorf("%w: %s", ErrIllegalMove, res.Reason)
	}

	rm.SetPosition(next)
	logger.Info().Str("side", string(p.Side)).Str("move", res.Move.SAN).Msg("move applied")

	c.broadcast(rm, EventMoveApplied, PayloadMoveApplied{
		RoomID:   rm.ID(),
		Move:     res.Move.SAN,
		UCI:      res.Move.UCI,
		Position: snapshot,
		Side:     p.Side,
	})
	c.publishStatus(rm, after)
	return nil
}

// Leave removes conn from roomID on request. Leaving a room conn is not in
// is acknowledged without effect.
func (c *Coordinator) Leave(conn room.ConnID, roomID string) error {
	if current, ok := c.rooms.RoomOf(conn); ok && current == roomID {
		c.leave(conn, roomID)
	}
	c.notify(conn, EventLeft, PayloadRoom{RoomID: roomID})
	return nil
}

// Disconnect handles the loss of conn. Unknown connections are ignored, so
// repeated calls are no-ops.
func (c *Coordinator) Disconnect(conn room.ConnID) {
	roomID, ok := c.rooms.RoomOf(conn)
	if !ok {
		return
	}
	c.leave(conn, roomID)
}

func (c *Coordinator) leave(conn room.ConnID, roomID string) {
	rm, ok := c.rooms.Get(roomID)
	if !ok {
		c.rooms.Unbind(conn)
		return
	}

	rm.Lock()
	defer rm.Unlock()
	if rm.Closed() {
		return
	}

	p, ok := rm.Vacate(conn)
	if !ok {
		return
	}
	c.rooms.Unbind(conn)
	logger := roomLogger(rm, conn)
	logger.Info().Str("side", string(p.Side)).Msg("left room")

	if rm.Count() == 0 {
		c.rooms.Destroy(rm)
		return
	}

	rm.SetStatus(room.StatusOpponentLeft)
	c.broadcast(rm, EventOpponentLeft, PayloadRoom{RoomID: rm.ID()})
}

// RoomSnapshot is a consistent read-only copy of a room's state.
type RoomSnapshot struct {
	ID           string             `json:"id"`
	Status       room.Status        `json:"status"`
	Position     string             `json:"position"`
	Participants []room.Participant `json:"participants"`
	Full         bool               `json:"full"`
	CreatedAt    time.Time          `json:"created_at"`
}

func (c *Coordinator) Snapshot(roomID string) (RoomSnapshot, bool) {
	rm, ok := c.rooms.Get(roomID)
	if !ok {
		return RoomSnapshot{}, false
	}
	return c.snapshot(rm)
}

// Len returns the number of live rooms.
func (c *Coordinator) Len() int {
	return c.rooms.Len()
}

func (c *Coordinator) Snapshots() []RoomSnapshot {
	rooms := c.rooms.Rooms()
	out := make([]RoomSnapshot, 0, len(rooms))
	for _, rm := range rooms {
		if snap, ok := c.snapshot(rm); ok {
			out = append(out, snap)
		}
	}
	return out
}

func (c *Coordinator) snapshot(rm *room.Room) (RoomSnapshot, bool) {
	rm.Lock()
	defer rm.Unlock()
	if rm.Closed() {
		return RoomSnapshot{}, false
	}
	return RoomSnapshot{
		ID:           rm.ID(),
		Status:       rm.Status(),
		Position:     c.encode(rm.Position()),
		Participants: rm.Participants(),
		Full:         rm.Full(),
		CreatedAt:    rm.CreatedAt(),
	}, true
}

func (c *Coordinator) assign(rm *room.Room, p room.Participant) {
	c.notify(p.Conn, EventSideAssignment, PayloadSideAssignment{
		RoomID:   rm.ID(),
		Side:     p.Side,
		Color:    p.Side.Color(),
		Position: c.encode(rm.Position()),
	})
}

func (c *Coordinator) publishStatus(rm *room.Room, cls game.Classification) {
	status := statusOf(cls)
	rm.SetStatus(status)
	c.broadcast(rm, EventStatusUpdate, PayloadStatus{
		RoomID: rm.ID(),
		Status: status,
		Turn:   cls.Turn,
		Winner: cls.Winner,
		Reason: cls.Reason,
	})
}

func statusOf(cls game.Classification) room.Status {
	switch cls.State {
	case game.StateCheckmate:
		return room.StatusCheckmate
	case game.StateStalemate:
		return room.StatusStalemate
	case game.StateDraw:
		return room.StatusDraw
	case game.StateCheck:
		return room.StatusCheck
	default:
		return room.TurnStatus(cls.Turn)
	}
}

func (c *Coordinator) roomNotFound(conn room.ConnID, roomID string) error {
	c.notify(conn, EventRoomNotFound, PayloadMessage{Message: fmt.Sprintf("room %q not found", roomID)})
	return fmt.Errorf("move in %s: %w", roomID, ErrRoomNotFound)
}

func (c *Coordinator) reject(conn room.ConnID, evtType string, err error) error {
	c.notify(conn, evtType, PayloadMessage{Message: err.Error()})
	return err
}

// fault turns a rules engine failure into an invalid_move for the sender.
func (c *Coordinator) fault(conn room.ConnID, logger zerolog.Logger, err error) error {
	logger.Error().Err(err).Msg("rules engine failed")
	c.notify(conn, EventInvalidMove, PayloadMessage{Message: "move could not be processed"})
	return fmt.Errorf("%w: %w", ErrIllegalMove, err)
}

func (c *Coordinator) classify(pos *game.Position) (cls game.Classification, err error) {
	err = c.consult(func() { cls = c.oracle.Classify(pos) })
	return cls, err
}

func (c *Coordinator) encode(pos *game.Position) (fen string) {
	if err := c.consult(func() { fen = c.oracle.Encode(pos) }); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("encode position")
	}
	return fen
}

// consult runs fn, converting a panic inside the rules engine into an error.
func (c *Coordinator) consult(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRulesEngine, r)
		}
	}()
	fn()
	return nil
}

func (c *Coordinator) broadcast(rm *room.Room, evtType string, payload any) {
	for _, conn := range rm.Conns() {
		c.notify(conn, evtType, payload)
	}
}

func (c *Coordinator) notify(conn room.ConnID, evtType string, payload any) {
	c.notifier.Send(conn, Notification{Type: evtType, Payload: payload})
}

func roomLogger(rm *room.Room, conn room.ConnID) zerolog.Logger {
	return log.With().
		Str("module", "session").
		Str("room", rm.ID()).
		Str("conn", string(conn)).
		Logger()
}
