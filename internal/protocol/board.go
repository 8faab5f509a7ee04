package protocol

import (
	"fmt"
	"strings"
)

const (
	// BoardSize is the number of squares a board encoding must cover.
	BoardSize = BoardLen * BoardLen

	// RankSeparator joins rank segments in a board encoding.
	RankSeparator = '/'
)

// PieceKind identifies a chess piece without its color.
type PieceKind uint8

const (
	NoPieceKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceLetters = [...]byte{
	Pawn:   'P',
	Knight: 'N',
	Bishop: 'B',
	Rook:   'R',
	Queen:  'Q',
	King:   'K',
}

// Letter returns the uppercase letter for k, or 0 for NoPieceKind.
func (k PieceKind) Letter() byte {
	if int(k) >= len(pieceLetters) {
		return 0
	}
	return pieceLetters[k]
}

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// kindFromLetter maps an uppercase piece letter to its kind.
func kindFromLetter(c byte) (PieceKind, bool) {
	switch c {
	case 'P':
		return Pawn, true
	case 'N':
		return Knight, true
	case 'B':
		return Bishop, true
	case 'R':
		return Rook, true
	case 'Q':
		return Queen, true
	case 'K':
		return King, true
	}
	return NoPieceKind, false
}

// Color identifies a side.
type Color uint8

const (
	White Color = iota + 1
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Slot is the content of one square. The zero value is an empty square.
type Slot struct {
	Kind  PieceKind
	Color Color
}

// Empty is the empty square.
var Empty = Slot{}

// Occupied returns a slot holding a piece.
func Occupied(kind PieceKind, color Color) Slot {
	return Slot{Kind: kind, Color: color}
}

// IsEmpty reports whether no piece stands on the square.
func (s Slot) IsEmpty() bool { return s.Kind == NoPieceKind }

// letter returns the wire letter: uppercase for White, lowercase for Black.
func (s Slot) letter() byte {
	l := s.Kind.Letter()
	if s.Color == Black {
		l += 'a' - 'A'
	}
	return l
}

// BoardView is the read side of a rules engine board.
type BoardView interface {
	Occupant(file, rank int) Slot
}

// Board is a 64 square snapshot indexed by rank*8+file.
type Board [BoardSize]Slot

// Occupant implements BoardView.
func (b *Board) Occupant(file, rank int) Slot {
	return b[rank*BoardLen+file]
}

// Set places s on (file, rank).
func (b *Board) Set(file, rank int, s Slot) {
	b[rank*BoardLen+file] = s
}

// Snapshot copies any BoardView into a Board.
func Snapshot(v BoardView) Board {
	if b, ok := v.(*Board); ok {
		return *b
	}
	var out Board
	for rank := 0; rank < BoardLen; rank++ {
		for file := 0; file < BoardLen; file++ {
			out.Set(file, rank, v.Occupant(file, rank))
		}
	}
	return out
}

// EncodeBoard renders v as eight run-length rank segments joined by '/'.
// Segments run from rank 0 to rank 7, each from file 0 to file 7.
func EncodeBoard(v BoardView) string {
	var sb strings.Builder
	sb.Grow(BoardSize + BoardLen - 1)
	for rank := 0; rank < BoardLen; rank++ {
		if rank > 0 {
			sb.WriteByte(RankSeparator)
		}
		empty := 0
		for file := 0; file < BoardLen; file++ {
			slot := v.Occupant(file, rank)
			if slot.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(slot.letter())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
	}
	return sb.String()
}

// DecodeBoard parses the output of EncodeBoard.
func DecodeBoard(s string) (Board, error) {
	var board Board
	segments := strings.Split(s, string(RankSeparator))
	if len(segments) > BoardLen {
		return Board{}, fmt.Errorf("%w: %d rank segments", ErrBoardLength, len(segments))
	}

	total := 0
	for rank, seg := range segments {
		file := 0
		for i := 0; i < len(seg); i++ {
			c := seg[i]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				total += int(c - '0')
				if file > BoardLen || total > BoardSize {
					return Board{}, fmt.Errorf("%w: rank %d overflows", ErrBoardLength, rank)
				}
				continue
			}

			color := White
			upper := c
			if c >= 'a' && c <= 'z' {
				color = Black
				upper = c - ('a' - 'A')
			}
			kind, ok := kindFromLetter(upper)
			if !ok {
				return Board{}, fmt.Errorf("%w: %q", ErrBoardChar, c)
			}
			if file >= BoardLen || total >= BoardSize {
				return Board{}, fmt.Errorf("%w: rank %d overflows", ErrBoardLength, rank)
			}
			board.Set(file, rank, Occupied(kind, color))
			file++
			total++
		}
		if file != BoardLen {
			return Board{}, fmt.Errorf("%w: rank %d covers %d squares", ErrBoardLength, rank, file)
		}
	}
	if total != BoardSize {
		return Board{}, fmt.Errorf("%w: %d squares", ErrBoardLength, total)
	}
	return board, nil
}
