package main

import (
	"strings"

	"github.com/park285/chesstp/internal/protocol"
)

// renderBoard draws v as text with rank 8 on top, or rank 1 on top when
// flipped for the black player.
func renderBoard(v protocol.BoardView, flipped bool) string {
	var b strings.Builder
	files := "  a b c d e f g h\n"
	if flipped {
		files = "  h g f e d c b a\n"
	}
	b.WriteString(files)
	for i := 0; i < protocol.BoardLen; i++ {
		rank := protocol.BoardLen - 1 - i
		if flipped {
			rank = i
		}
		b.WriteByte(byte('1' + rank))
		for j := 0; j < protocol.BoardLen; j++ {
			file := j
			if flipped {
				file = protocol.BoardLen - 1 - j
			}
			b.WriteByte(' ')
			b.WriteByte(squareChar(v.Occupant(file, rank)))
		}
		b.WriteByte(' ')
		b.WriteByte(byte('1' + rank))
		b.WriteByte('\n')
	}
	b.WriteString(files)
	return b.String()
}

func squareChar(s protocol.Slot) byte {
	if s.IsEmpty() {
		return '.'
	}
	c := s.Kind.Letter()
	if s.Color == protocol.Black {
		c += 'a' - 'A'
	}
	return c
}
