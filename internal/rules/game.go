// Package rules adapts the corentings chess engine to the wire protocol.
// The codec only sees a protocol.BoardView; move legality, turn order and
// game end detection stay here.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chesstp/internal/protocol"
)

var (
	ErrIllegalMove = errors.New("rules: illegal move")
	ErrGameOver    = errors.New("rules: game is over")
)

// Game is one game from the standard starting position.
type Game struct {
	g        *nchess.Game
	startFEN string
	movesUCI []string
	movesSAN []string
}

// NewGame starts a standard game.
func NewGame() *Game {
	return &Game{g: nchess.NewGame()}
}

// NewGameFromFEN starts from an arbitrary position. Used for puzzles and tests.
func NewGameFromFEN(fen string) (*Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	return &Game{g: nchess.NewGame(opt), startFEN: fen}, nil
}

// StartFEN returns the custom starting position, or "" for the standard one.
func (g *Game) StartFEN() string { return g.startFEN }

// FEN returns the standard FEN of the current position.
func (g *Game) FEN() string { return g.g.FEN() }

// Occupant implements protocol.BoardView.
func (g *Game) Occupant(file, rank int) protocol.Slot {
	sq := nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
	return slotFrom(g.g.Position().Board().Piece(sq))
}

// Snapshot copies the current board.
func (g *Game) Snapshot() protocol.Board {
	return protocol.Snapshot(g)
}

// Turn returns the side to move.
func (g *Game) Turn() protocol.Color {
	return colorFrom(g.g.Position().Turn())
}

// Outcome maps the engine result to the wire outcome.
func (g *Game) Outcome() protocol.Outcome {
	switch g.g.Outcome() {
	case nchess.WhiteWon:
		return protocol.WhiteWins
	case nchess.BlackWon:
		return protocol.BlackWins
	case nchess.Draw:
		return protocol.Draw
	default:
		return protocol.Ongoing
	}
}

// Method describes how the game ended, e.g. "Checkmate".
func (g *Game) Method() string {
	return g.g.Method().String()
}

// MovesUCI returns the moves played so far in UCI notation.
func (g *Game) MovesUCI() []string { return append([]string(nil), g.movesUCI...) }

// MovesSAN returns the moves played so far in SAN.
func (g *Game) MovesSAN() []string { return append([]string(nil), g.movesSAN...) }

// Resign ends the game with color losing.
func (g *Game) Resign(color protocol.Color) {
	if g.g.Outcome() != nchess.NoOutcome {
		return
	}
	g.g.Resign(colorTo(color))
}

// Apply plays a move received from the peer.
func (g *Game) Apply(from, to protocol.Position, promo protocol.PieceKind) error {
	if g.g.Outcome() != nchess.NoOutcome {
		return ErrGameOver
	}
	text := strings.ToLower(from.String() + to.String())
	if promo != protocol.NoPieceKind {
		text += strings.ToLower(string(promo.Letter()))
	}
	pos := g.g.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, text)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIllegalMove, text, err)
	}
	return g.push(pos, mv, text)
}

// Play applies a locally entered move, UCI first and SAN as fallback, and
// returns the message announcing it.
func (g *Game) Play(text string) (protocol.Move, error) {
	if g.g.Outcome() != nchess.NoOutcome {
		return protocol.Move{}, ErrGameOver
	}
	raw := strings.TrimSpace(text)
	if raw == "" {
		return protocol.Move{}, fmt.Errorf("%w: empty input", ErrIllegalMove)
	}
	pos := g.g.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(raw))
	if err != nil {
		var sanErr error
		mv, sanErr = nchess.AlgebraicNotation{}.Decode(pos, raw)
		if sanErr != nil {
			return protocol.Move{}, fmt.Errorf("%w: %q", ErrIllegalMove, raw)
		}
	}
	uci := nchess.UCINotation{}.Encode(pos, mv)
	if err := g.push(pos, mv, uci); err != nil {
		return protocol.Move{}, err
	}
	return protocol.Move{
		Board:     g.Snapshot(),
		From:      positionFrom(mv.S1()),
		To:        positionFrom(mv.S2()),
		Promotion: kindFrom(mv.Promo()),
		Outcome:   g.Outcome(),
	}, nil
}

func (g *Game) push(pos *nchess.Position, mv *nchess.Move, uci string) error {
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := g.g.Move(mv, nil); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	g.movesUCI = append(g.movesUCI, uci)
	g.movesSAN = append(g.movesSAN, san)
	return nil
}

func positionFrom(sq nchess.Square) protocol.Position {
	return protocol.Position{File: int(sq.File()), Rank: int(sq.Rank())}
}

func slotFrom(p nchess.Piece) protocol.Slot {
	if p == nchess.NoPiece {
		return protocol.Empty
	}
	return protocol.Occupied(kindFrom(p.Type()), colorFrom(p.Color()))
}

func kindFrom(t nchess.PieceType) protocol.PieceKind {
	switch t {
	case nchess.Pawn:
		return protocol.Pawn
	case nchess.Knight:
		return protocol.Knight
	case nchess.Bishop:
		return protocol.Bishop
	case nchess.Rook:
		return protocol.Rook
	case nchess.Queen:
		return protocol.Queen
	case nchess.King:
		return protocol.King
	default:
		return protocol.NoPieceKind
	}
}

func colorFrom(c nchess.Color) protocol.Color {
	if c == nchess.Black {
		return protocol.Black
	}
	return protocol.White
}

func colorTo(c protocol.Color) nchess.Color {
	if c == protocol.Black {
		return nchess.Black
	}
	return nchess.White
}
