package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func allPadding(b []byte) bool {
	for _, c := range b {
		if c != PadByte {
			return false
		}
	}
	return true
}

func mustPos(t *testing.T, file, rank int) Position {
	t.Helper()
	p, err := NewPosition(file, rank)
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	return p
}

func TestEncodeMoveE2E4(t *testing.T) {
	src, dst := mustPos(t, 4, 1), mustPos(t, 4, 3)
	frame, err := Encode(Move{From: src, To: dst})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(frame) != FrameLen {
		t.Fatalf("frame length = %d", len(frame))
	}
	parts := bytes.Split(frame, []byte{Separator})
	if len(parts) != 5 {
		t.Fatalf("expected 5 parts, got %d", len(parts))
	}
	if string(parts[0]) != TagMove || string(parts[1]) != "E2E40" || string(parts[2]) != "0-0" {
		t.Fatalf("unexpected header fields %q %q %q", parts[0], parts[1], parts[2])
	}
	if string(parts[3]) != "8/8/8/8/8/8/8/8" {
		t.Fatalf("board field = %q", parts[3])
	}
	wantPad := FrameLen - len(TagMove) - 1 - 5 - 1 - 3 - 1 - len(parts[3]) - 1
	if len(parts[4]) != wantPad || !allPadding(parts[4]) {
		t.Fatalf("padding = %q (len %d, want %d)", parts[4], len(parts[4]), wantPad)
	}

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	mv, ok := msg.(Move)
	if !ok {
		t.Fatalf("expected Move, got %T", msg)
	}
	if mv.From != src || mv.To != dst || mv.Promotion != NoPieceKind || mv.Outcome != Ongoing {
		t.Fatalf("decoded %+v", mv)
	}
}

func TestEncodePromotionWhiteWins(t *testing.T) {
	frame, err := Encode(Move{From: mustPos(t, 0, 6), To: mustPos(t, 0, 7), Promotion: Queen, Outcome: WhiteWins})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parts := bytes.Split(frame, []byte{Separator})
	if string(parts[1]) != "A7A8Q" || string(parts[2]) != "1-0" {
		t.Fatalf("fields = %q %q", parts[1], parts[2])
	}
	if !allPadding(parts[4]) {
		t.Fatalf("padding not zeros: %q", parts[4])
	}
}

func TestEncodeRejectsKingPromotion(t *testing.T) {
	_, err := Encode(Move{From: mustPos(t, 0, 6), To: mustPos(t, 0, 7), Promotion: King})
	if !errors.Is(err, ErrInvalidPromotion) {
		t.Fatalf("err = %v; want ErrInvalidPromotion", err)
	}
	_, err = Encode(Move{Promotion: Pawn})
	if !errors.Is(err, ErrInvalidPromotion) {
		t.Fatalf("pawn promotion err = %v", err)
	}
}

func TestEncodeQuit(t *testing.T) {
	for _, reason := range []string{"", "I had a panic attack"} {
		frame, err := Encode(Quit{Reason: reason})
		if err != nil {
			t.Fatalf("Encode(%q): %v", reason, err)
		}
		if len(frame) != FrameLen {
			t.Fatalf("frame length = %d", len(frame))
		}
		parts := bytes.Split(frame, []byte{Separator})
		if len(parts) != 3 || string(parts[0]) != TagQuit || string(parts[1]) != reason || !allPadding(parts[2]) {
			t.Fatalf("unexpected parts %q", parts)
		}
		msg, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if q, ok := msg.(Quit); !ok || q.Reason != reason {
			t.Fatalf("decoded %#v", msg)
		}
	}
}

func TestEncodeQuitTooLong(t *testing.T) {
	if _, err := Encode(Quit{Reason: strings.Repeat("X", MaxQuitReasonLen)}); err != nil {
		t.Fatalf("longest reason rejected: %v", err)
	}
	_, err := Encode(Quit{Reason: strings.Repeat("X", MaxQuitReasonLen+1)})
	if !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("err = %v; want ErrMessageTooLong", err)
	}
}

func TestEncodeQuitRejectsSeparator(t *testing.T) {
	if _, err := Encode(Quit{Reason: "a:b"}); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("err = %v; want ErrInvalidReason", err)
	}
}

func TestEncodePointerVariants(t *testing.T) {
	a, err := Encode(&Quit{Reason: "bye"})
	if err != nil {
		t.Fatalf("Encode(*Quit): %v", err)
	}
	b, _ := Encode(Quit{Reason: "bye"})
	if !bytes.Equal(a, b) {
		t.Fatalf("pointer and value encodings differ")
	}
}

func TestMoveRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	promos := []PieceKind{NoPieceKind, Knight, Bishop, Rook, Queen}
	for i := 0; i < 300; i++ {
		m := Move{
			Board:     randomBoard(r),
			From:      Position{File: r.Intn(8), Rank: r.Intn(8)},
			To:        Position{File: r.Intn(8), Rank: r.Intn(8)},
			Promotion: promos[r.Intn(len(promos))],
			Outcome:   Outcome(r.Intn(4)),
		}
		frame, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if len(frame) != FrameLen {
			t.Fatalf("frame length = %d", len(frame))
		}
		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%q): %v", frame, err)
		}
		if got != Message(m) {
			t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, m)
		}
	}
}

func TestDecodeAcceptsLowercaseAndLoosePadding(t *testing.T) {
	msg, err := Decode([]byte("ChessMOVE:a7a8q:1-0:8/8/8/8/8/8/8/8:x"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	mv := msg.(Move)
	if mv.Promotion != Queen || mv.Outcome != WhiteWins || mv.From != (Position{0, 6}) {
		t.Fatalf("decoded %+v", mv)
	}
}

func TestDecodeErrors(t *testing.T) {
	const fen = "8/8/8/8/8/8/8/8"
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"too long", strings.Repeat("A", 200), ErrFrameTooLong},
		{"too long valid prefix", "ChessQUIT::" + strings.Repeat("0", FrameLen), ErrFrameTooLong},
		{"unknown tag", "NotChess:foo:bar:baz:qux", ErrUnknownTag},
		{"tag case", "chessmove:a2a40:0-0:" + fen + ":0", ErrUnknownTag},
		{"empty", "", ErrUnknownTag},
		{"quit missing padding", "ChessQUIT:Bye", ErrFieldCount},
		{"quit extra separator", "ChessQUIT:hello:world:0", ErrFieldCount},
		{"move missing field", "ChessMOVE:a2a40:0-0:" + fen, ErrFieldCount},
		{"move extra field", "ChessMOVE:a2a40:0-0:" + fen + ":0:0", ErrFieldCount},
		{"short move", "ChessMOVE:a2b:0-0:" + fen + ":x", ErrInvalidMove},
		{"bad promo", "ChessMOVE:a7a8K:0-0:" + fen + ":x", ErrInvalidMove},
		{"bad square", "ChessMOVE:i2a40:0-0:" + fen + ":x", ErrInvalidMove},
		{"bad rank", "ChessMOVE:a2a90:0-0:" + fen + ":x", ErrInvalidMove},
		{"bad state", "ChessMOVE:a2a40:weird:" + fen + ":x", ErrInvalidOutcome},
		{"draw spelled pgn", "ChessMOVE:a2a40:1/2:" + fen + ":x", ErrInvalidOutcome},
		{"bad fen char", "ChessMOVE:a2a40:0-0:8/8/8/8/8/8/8/7Z:x", ErrBoardChar},
		{"short fen", "ChessMOVE:a2a40:0-0:8/8/8/8/8/8/8:x", ErrBoardLength},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			msg, err := Decode([]byte(c.in))
			if !errors.Is(err, c.want) {
				t.Fatalf("Decode(%q) err = %v; want %v", c.in, err, c.want)
			}
			if msg != nil {
				t.Fatalf("expected no message on error, got %#v", msg)
			}
			if !IsDecodeError(err) {
				t.Fatalf("IsDecodeError(%v) = false", err)
			}
		})
	}
}

func TestQuitFrameWithColonInReasonFailsDecode(t *testing.T) {
	// Hand-built frame: the reason field holds an extra separator.
	frame := []byte("ChessQUIT:a:b:")
	for len(frame) < FrameLen {
		frame = append(frame, PadByte)
	}
	if _, err := Decode(frame); !errors.Is(err, ErrFieldCount) {
		t.Fatalf("err = %v; want ErrFieldCount", err)
	}
}

func TestIsDecodeErrorIgnoresEncodeErrors(t *testing.T) {
	_, err := Encode(Quit{Reason: "a:b"})
	if IsDecodeError(err) || IsDecodeError(nil) {
		t.Fatalf("encode error classified as decode error: %v", err)
	}
}
