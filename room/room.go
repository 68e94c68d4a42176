package room

import (
	"sync"
	"time"

	"github.com/judgegodwins/chess-relay/game"
	"github.com/samber/lo"
)

// ConnID is the gateway-issued identity of a single connection.
type ConnID string

type Status string

const (
	StatusAwaitingOpponent Status = "awaiting-opponent"
	StatusSideATurn        Status = "side-A-turn"
	StatusSideBTurn        Status = "side-B-turn"
	StatusCheck            Status = "check"
	StatusCheckmate        Status = "checkmate"
	StatusStalemate        Status = "stalemate"
	StatusDraw             Status = "draw"
	StatusOpponentLeft     Status = "opponent-left"
)

func (s Status) Terminal() bool {
	return s == StatusCheckmate || s == StatusStalemate || s == StatusDraw
}

// TurnStatus names the normal-turn status for the side to move.
func TurnStatus(side game.Side) Status {
	if side == game.SideA {
		return StatusSideATurn
	}
	return StatusSideBTurn
}

type Participant struct {
	Conn     ConnID    `json:"-"`
	Name     string    `json:"name,omitempty"`
	Side     game.Side `json:"side"`
	JoinedAt time.Time `json:"joined_at"`
}

// Room holds one game's authoritative state. All accessors except ID require
// the caller to hold the room's lock.
type Room struct {
	sync.Mutex

	id        string
	seats     [2]*Participant
	position  *game.Position
	status    Status
	closed    bool
	createdAt time.Time
}

func newRoom(id string, pos *game.Position) *Room {
	return &Room{
		id:        id,
		position:  pos,
		status:    StatusAwaitingOpponent,
		createdAt: time.Now(),
	}
}

func (r *Room) ID() string { return r.id }

func (r *Room) Position() *game.Position { return r.position }

func (r *Room) SetPosition(pos *game.Position) {
	if pos != nil {
		r.position = pos
	}
}

func (r *Room) Status() Status { return r.status }

func (r *Room) SetStatus(s Status) { r.status = s }

func (r *Room) CreatedAt() time.Time { return r.createdAt }

// Closed reports whether the room has been destroyed. A closed room must not
// be mutated; callers re-resolve the id through the Registry.
func (r *Room) Closed() bool { return r.closed }

func (r *Room) close() { r.closed = true }

func (r *Room) Participants() []Participant {
	return lo.FilterMap(r.seats[:], func(p *Participant, _ int) (Participant, bool) {
		if p == nil {
			return Participant{}, false
		}
		return *p, true
	})
}

func (r *Room) Conns() []ConnID {
	return lo.Map(r.Participants(), func(p Participant, _ int) ConnID {
		return p.Conn
	})
}

func (r *Room) Count() int {
	return lo.CountBy(r.seats[:], func(p *Participant) bool { return p != nil })
}

func (r *Room) Full() bool {
	return r.Count() == len(r.seats)
}

// Seat returns the participant seated with conn.
func (r *Room) Seat(conn ConnID) (Participant, bool) {
	p, ok := lo.Find(r.seats[:], func(p *Participant) bool {
		return p != nil && p.Conn == conn
	})
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Opponent returns the other participant, if seated.
func (r *Room) Opponent(conn ConnID) (Participant, bool) {
	p, ok := lo.Find(r.seats[:], func(p *Participant) bool {
		return p != nil && p.Conn != conn
	})
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Sit seats conn on the first vacant side, A before B.
func (r *Room) Sit(conn ConnID, name string) (Participant, bool) {
	for i, s := range r.seats {
		if s != nil {
			continue
		}
		p := &Participant{
			Conn:     conn,
			Name:     name,
			Side:     sideAt(i),
			JoinedAt: time.Now(),
		}
		r.seats[i] = p
		return *p, true
	}
	return Participant{}, false
}

// Vacate frees the seat held by conn. The other seat is left as is, so the
// remaining participant keeps its side.
func (r *Room) Vacate(conn ConnID) (Participant, bool) {
	for i, s := range r.seats {
		if s != nil && s.Conn == conn {
			r.seats[i] = nil
			return *s, true
		}
	}
	return Participant{}, false
}

func sideAt(i int) game.Side {
	if i == 0 {
		return game.SideA
	}
	return game.SideB
}
