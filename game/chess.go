package game

import (
	"errors"
	"regexp"
	"strings"

	"github.com/corentings/chess/v2"
)

var ErrForeignMove = errors.New("move was not parsed against this position")

// uciMove matches coordinate notation. The algebraic decoder is lenient
// enough to read "g1f3" as "f3", so these strings never reach it.
var uciMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbnQRBN]?$`)

// Position is an immutable chess game state. Every transition produces a new
// Position; the wrapped game is never mutated after construction.
type Position struct {
	g *chess.Game
}

// PositionFromFEN builds a position from a FEN string.
func PositionFromFEN(fen string) (*Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return &Position{g: chess.NewGame(opt)}, nil
}

func (p *Position) FEN() string {
	return p.g.FEN()
}

// Chess implements Oracle with standard chess rules.
type Chess struct{}

func NewChess() *Chess {
	return &Chess{}
}

func (*Chess) NewPosition() *Position {
	return &Position{g: chess.NewGame()}
}

// Parse resolves UCI ("g1f3", "e7e8q") and SAN ("Nf3", "exd5", "O-O").
// Text shaped like UCI is only ever read as UCI.
func (*Chess) Parse(pos *Position, text string) ParseResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return Illegal("empty move")
	}
	if pos.g.Outcome() != chess.NoOutcome {
		return Illegal("game is over")
	}

	var notation chess.Notation = chess.AlgebraicNotation{}
	if uciMove.MatchString(text) {
		text = strings.ToLower(text)
		notation = chess.UCINotation{}
	}
	next := pos.g.Clone()
	if err := next.PushNotationMove(text, notation, nil); err != nil {
		return Illegal("illegal move %q", text)
	}

	moves := next.Moves()
	if len(moves) == 0 {
		return Illegal("illegal move %q", text)
	}
	last := moves[len(moves)-1]

	return Legal(Move{
		SAN:    chess.AlgebraicNotation{}.Encode(pos.g.Position(), last),
		UCI:    last.String(),
		base:   pos,
		result: &Position{g: next},
	})
}

// Apply returns the position reached by m. pos is left untouched.
func (*Chess) Apply(pos *Position, m Move) (*Position, error) {
	if m.result != nil && m.base == pos {
		return m.result, nil
	}
	if m.UCI == "" {
		return nil, ErrForeignMove
	}
	next := pos.g.Clone()
	if err := next.PushNotationMove(m.UCI, chess.UCINotation{}, nil); err != nil {
		return nil, ErrForeignMove
	}
	return &Position{g: next}, nil
}

// Classify applies checkmate > stalemate > draw > check > normal.
func (*Chess) Classify(pos *Position) Classification {
	c := Classification{
		State: StateNormal,
		Turn:  sideOf(pos.g.Position().Turn()),
	}

	switch pos.g.Outcome() {
	case chess.WhiteWon, chess.BlackWon:
		c.State = StateCheckmate
		c.Winner = c.Turn.Opponent()
		c.Reason = "checkmate"
		return c
	case chess.Draw:
		if pos.g.Method() == chess.Stalemate {
			c.State = StateStalemate
			c.Reason = "stalemate"
			return c
		}
		c.State = StateDraw
		c.Reason = drawReason(pos.g.Method())
		return c
	}

	moves := pos.g.Moves()
	if len(moves) > 0 && moves[len(moves)-1].HasTag(chess.Check) {
		c.State = StateCheck
	}
	return c
}

func (*Chess) Encode(pos *Position) string {
	return pos.g.FEN()
}

func sideOf(c chess.Color) Side {
	if c == chess.White {
		return SideA
	}
	return SideB
}

func drawReason(m chess.Method) string {
	switch m {
	case chess.InsufficientMaterial:
		return "insufficient-material"
	case chess.FivefoldRepetition:
		return "fivefold-repetition"
	case chess.SeventyFiveMoveRule:
		return "seventy-five-move-rule"
	case chess.ThreefoldRepetition:
		return "threefold-repetition"
	case chess.FiftyMoveRule:
		return "fifty-move-rule"
	default:
		return "draw"
	}
}
