package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// FrameLen is the exact size of every frame on the wire.
	FrameLen = 128

	// Separator delimits frame fields.
	Separator = ':'

	// PadByte fills a frame up to FrameLen.
	PadByte = '0'

	TagMove = "ChessMOVE"
	TagQuit = "ChessQUIT"

	moveFieldLen = 5
)

// Outcome is the game state carried by a Move.
type Outcome uint8

const (
	Ongoing Outcome = iota
	WhiteWins
	Draw
	BlackWins
)

var outcomeCodes = [...]string{
	Ongoing:   "0-0",
	WhiteWins: "1-0",
	Draw:      "1-1",
	BlackWins: "0-1",
}

// Code returns the three character wire code.
func (o Outcome) Code() string {
	if int(o) >= len(outcomeCodes) {
		return ""
	}
	return outcomeCodes[o]
}

func (o Outcome) String() string {
	switch o {
	case Ongoing:
		return "ongoing"
	case WhiteWins:
		return "white_wins"
	case Draw:
		return "draw"
	case BlackWins:
		return "black_wins"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Finished reports whether the game is over.
func (o Outcome) Finished() bool { return o != Ongoing }

func parseOutcome(s string) (Outcome, error) {
	for o, code := range outcomeCodes {
		if s == code {
			return Outcome(o), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
}

// Message is either a Move or a Quit.
type Message interface {
	message()
}

// Move announces a played move and the board after it.
type Move struct {
	Board     Board
	From      Position
	To        Position
	Promotion PieceKind // NoPieceKind when the move is not a promotion
	Outcome   Outcome
}

// Quit ends the session. Reason must not contain ':'.
type Quit struct {
	Reason string
}

func (Move) message() {}
func (Quit) message() {}

// Encode renders m as a FrameLen byte frame.
func Encode(m Message) ([]byte, error) {
	switch m := m.(type) {
	case Move:
		return encodeMove(&m)
	case *Move:
		return encodeMove(m)
	case Quit:
		return encodeQuit(m.Reason)
	case *Quit:
		return encodeQuit(m.Reason)
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}
}

func promotionChar(k PieceKind) (byte, error) {
	switch k {
	case NoPieceKind:
		return PadByte, nil
	case Knight, Bishop, Rook, Queen:
		return k.Letter(), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidPromotion, k)
	}
}

func encodeMove(m *Move) ([]byte, error) {
	promo, err := promotionChar(m.Promotion)
	if err != nil {
		return nil, err
	}
	code := m.Outcome.Code()
	if code == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutcome, m.Outcome)
	}

	buf := make([]byte, 0, FrameLen)
	buf = append(buf, TagMove...)
	buf = append(buf, Separator)
	buf = appendPosition(buf, m.From)
	buf = appendPosition(buf, m.To)
	buf = append(buf, promo, Separator)
	buf = append(buf, code...)
	buf = append(buf, Separator)
	buf = append(buf, EncodeBoard(&m.Board)...)
	buf = append(buf, Separator)
	return pad(buf)
}

func encodeQuit(reason string) ([]byte, error) {
	if strings.IndexByte(reason, Separator) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	buf := make([]byte, 0, FrameLen)
	buf = append(buf, TagQuit...)
	buf = append(buf, Separator)
	buf = append(buf, reason...)
	buf = append(buf, Separator)
	return pad(buf)
}

func pad(buf []byte) ([]byte, error) {
	if len(buf) > FrameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(buf))
	}
	for len(buf) < FrameLen {
		buf = append(buf, PadByte)
	}
	return buf, nil
}

// MaxQuitReasonLen is the longest reason that still fits a frame.
const MaxQuitReasonLen = FrameLen - len(TagQuit) - 2

// Decode parses one frame. Frames shorter than FrameLen are accepted as long as
// their fields are complete; the padding field is not inspected.
func Decode(frame []byte) (Message, error) {
	if len(frame) > FrameLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, len(frame))
	}

	fields := bytes.Split(frame, []byte{Separator})
	switch tag := string(fields[0]); tag {
	case TagMove:
		return decodeMove(fields[1:])
	case TagQuit:
		return decodeQuit(fields[1:])
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, truncate(tag, 16))
	}
}

func decodeMove(fields [][]byte) (Message, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: move has %d fields after tag", ErrFieldCount, len(fields))
	}
	mv, state, board := string(fields[0]), string(fields[1]), string(fields[2])

	if len(mv) != moveFieldLen {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMove, mv)
	}
	promo, err := parsePromotion(mv[4])
	if err != nil {
		return nil, err
	}
	from, err := ParsePosition(mv[0:2])
	if err != nil {
		return nil, err
	}
	to, err := ParsePosition(mv[2:4])
	if err != nil {
		return nil, err
	}
	outcome, err := parseOutcome(state)
	if err != nil {
		return nil, err
	}
	b, err := DecodeBoard(board)
	if err != nil {
		return nil, err
	}
	return Move{Board: b, From: from, To: to, Promotion: promo, Outcome: outcome}, nil
}

func parsePromotion(c byte) (PieceKind, error) {
	switch c {
	case PadByte:
		return NoPieceKind, nil
	case 'N', 'n':
		return Knight, nil
	case 'B', 'b':
		return Bishop, nil
	case 'R', 'r':
		return Rook, nil
	case 'Q', 'q':
		return Queen, nil
	}
	return NoPieceKind, fmt.Errorf("%w: promotion %q", ErrInvalidMove, c)
}

func decodeQuit(fields [][]byte) (Message, error) {
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: quit has %d fields after tag", ErrFieldCount, len(fields))
	}
	return Quit{Reason: string(fields[0])}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
