// Package game adapts a chess rules engine to the small contract the session
// layer relies on: parse a move, apply it, classify the result and encode it.
package game

import "fmt"

// Side identifies one of the two seats in a room. Side A plays white and
// always moves first.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

func (s Side) Color() string {
	if s == SideA {
		return "white"
	}
	return "black"
}

func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// State is the terminal/special classification of a position.
type State string

const (
	StateNormal    State = "normal"
	StateCheck     State = "check"
	StateCheckmate State = "checkmate"
	StateStalemate State = "stalemate"
	StateDraw      State = "draw"
)

// Terminal reports whether no further moves can be played.
func (s State) Terminal() bool {
	return s == StateCheckmate || s == StateStalemate || s == StateDraw
}

// Classification describes a position after the last applied move.
type Classification struct {
	State State
	// Turn is the side to move next.
	Turn Side
	// Winner is set for checkmate only.
	Winner Side
	// Reason names the rule that ended the game, e.g. "insufficient-material".
	Reason string
}

// Move is a parsed, legal move bound to the position it was parsed against.
type Move struct {
	SAN string
	UCI string

	base   *Position
	result *Position
}

func (m Move) String() string {
	return m.SAN
}

// ParseResult is the tagged outcome of Oracle.Parse: either a legal Move or
// an illegal-move reason.
type ParseResult struct {
	Move   Move
	Legal  bool
	Reason string
}

func Legal(m Move) ParseResult {
	return ParseResult{Move: m, Legal: true}
}

func Illegal(format string, args ...any) ParseResult {
	return ParseResult{Reason: fmt.Sprintf(format, args...)}
}

// Oracle is the rules engine contract. Implementations must be pure with
// respect to their Position arguments and must not do I/O.
type Oracle interface {
	NewPosition() *Position
	Parse(pos *Position, text string) ParseResult
	Apply(pos *Position, m Move) (*Position, error)
	Classify(pos *Position) Classification
	Encode(pos *Position) string
}
