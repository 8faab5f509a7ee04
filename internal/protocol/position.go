package protocol

import "fmt"

// BoardLen is the number of files (and ranks) on the board.
const BoardLen = 8

// Position addresses one square. File 0 is the A file, rank 0 is the first rank.
type Position struct {
	File int
	Rank int
}

// NewPosition validates file and rank.
func NewPosition(file, rank int) (Position, error) {
	if file < 0 || file >= BoardLen || rank < 0 || rank >= BoardLen {
		return Position{}, fmt.Errorf("%w: square (%d,%d) off board", ErrInvalidMove, file, rank)
	}
	return Position{File: file, Rank: rank}, nil
}

// String renders the position as an uppercase file letter and a rank digit, e.g. "E2".
func (p Position) String() string {
	return string(appendPosition(nil, p))
}

func appendPosition(dst []byte, p Position) []byte {
	return append(dst, byte('A'+p.File), byte('1'+p.Rank))
}

// ParsePosition reads a two character square. The file letter is case-insensitive.
func ParsePosition(s string) (Position, error) {
	if len(s) != 2 {
		return Position{}, fmt.Errorf("%w: square %q", ErrInvalidMove, s)
	}
	var file int
	switch c := s[0]; {
	case c >= 'A' && c <= 'H':
		file = int(c - 'A')
	case c >= 'a' && c <= 'h':
		file = int(c - 'a')
	default:
		return Position{}, fmt.Errorf("%w: file %q", ErrInvalidMove, c)
	}
	c := s[1]
	if c < '1' || c > '8' {
		return Position{}, fmt.Errorf("%w: rank %q", ErrInvalidMove, c)
	}
	return NewPosition(file, int(c-'1'))
}
