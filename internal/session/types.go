package session

import (
	"context"
	"errors"
	"time"

	"github.com/park285/chesstp/internal/protocol"
	"github.com/park285/chesstp/internal/rules"
)

var (
	// ErrDesync means the peer's move or board disagrees with the local game.
	ErrDesync = errors.New("session: peer out of sync")
	// ErrPeerQuit means the peer ended the session with a Quit message.
	ErrPeerQuit = errors.New("session: peer quit")
	// ErrProtocol means the peer sent a frame that could not be decoded.
	ErrProtocol = errors.New("session: protocol error")
)

// Quit reasons this side sends.
const (
	ReasonResign      = "resign"
	ReasonDesync      = "desync"
	ReasonProtocol    = "protocol error"
	ReasonInterrupted = "interrupted"
	ReasonError       = "internal error"
)

// Direction tells whether a frame was sent or received.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "recv"
)

// Conn is the frame stream a session plays over. *transport.Conn implements it.
type Conn interface {
	ReadMessage() (protocol.Message, error)
	WriteMessage(protocol.Message) error
	Close() error
}

// Recorder stores every frame exchanged in a session.
type Recorder interface {
	Record(ctx context.Context, sessionID string, dir Direction, m protocol.Message) error
}

// Sink receives the final result of a session.
type Sink interface {
	Finish(ctx context.Context, r Result) error
}

// MoveEvent is passed to Config.OnMove after every applied move.
type MoveEvent struct {
	Game  *rules.Game
	Move  protocol.Move
	Local bool
}

// Result summarises a finished session.
type Result struct {
	SessionID  string
	Color      protocol.Color
	Peer       string
	Outcome    protocol.Outcome
	Method     string
	QuitReason string
	MovesUCI   []string
	MovesSAN   []string
	StartedAt  time.Time
	EndedAt    time.Time
}

// Winner returns the winning side, or 0 for a draw or unfinished game.
func (r Result) Winner() protocol.Color {
	switch r.Outcome {
	case protocol.WhiteWins:
		return protocol.White
	case protocol.BlackWins:
		return protocol.Black
	default:
		return 0
	}
}
