package rules

import (
	"errors"
	"testing"

	"github.com/park285/chesstp/internal/protocol"
)

func TestStartingBoardEncoding(t *testing.T) {
	g := NewGame()
	want := "RNBQKBNR/PPPPPPPP/8/8/8/8/pppppppp/rnbqkbnr"
	if got := protocol.EncodeBoard(g); got != want {
		t.Fatalf("EncodeBoard = %q; want %q", got, want)
	}
	if g.Turn() != protocol.White {
		t.Fatalf("white should move first")
	}
}

func TestPlayUCIAndSAN(t *testing.T) {
	g := NewGame()
	mv, err := g.Play("e2e4")
	if err != nil {
		t.Fatalf("Play UCI: %v", err)
	}
	if mv.From != (protocol.Position{File: 4, Rank: 1}) || mv.To != (protocol.Position{File: 4, Rank: 3}) {
		t.Fatalf("unexpected squares %v -> %v", mv.From, mv.To)
	}
	if mv.Board.Occupant(4, 3) != protocol.Occupied(protocol.Pawn, protocol.White) || !mv.Board.Occupant(4, 1).IsEmpty() {
		t.Fatalf("board not updated: %s", protocol.EncodeBoard(&mv.Board))
	}
	if mv.Outcome != protocol.Ongoing {
		t.Fatalf("outcome = %v", mv.Outcome)
	}

	if _, err := g.Play("Nc6"); err != nil {
		t.Fatalf("Play SAN: %v", err)
	}
	if got := g.MovesUCI(); len(got) != 2 || got[1] != "b8c6" {
		t.Fatalf("MovesUCI = %v", got)
	}
	if got := g.MovesSAN(); len(got) != 2 || got[0] != "e4" || got[1] != "Nc6" {
		t.Fatalf("MovesSAN = %v", got)
	}
}

func TestPlayRejectsIllegal(t *testing.T) {
	g := NewGame()
	for _, in := range []string{"", "invalid", "e2e5", "e7e5"} {
		if _, err := g.Play(in); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("Play(%q) err = %v; want ErrIllegalMove", in, err)
		}
	}
	if len(g.MovesUCI()) != 0 {
		t.Fatalf("illegal input changed the game")
	}
}

func TestApplyMatchesPlay(t *testing.T) {
	local, remote := NewGame(), NewGame()
	for _, text := range []string{"e4", "e5", "Nf3", "Nc6", "Bb5"} {
		mv, err := local.Play(text)
		if err != nil {
			t.Fatalf("Play(%q): %v", text, err)
		}
		if err := remote.Apply(mv.From, mv.To, mv.Promotion); err != nil {
			t.Fatalf("Apply(%q): %v", text, err)
		}
		if remote.Snapshot() != mv.Board {
			t.Fatalf("boards diverged after %q", text)
		}
	}
}

func TestFoolsMateOutcome(t *testing.T) {
	g := NewGame()
	var last protocol.Move
	for _, text := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		var err error
		if last, err = g.Play(text); err != nil {
			t.Fatalf("Play(%q): %v", text, err)
		}
	}
	if last.Outcome != protocol.BlackWins || g.Outcome() != protocol.BlackWins {
		t.Fatalf("outcome = %v / %v; want black wins", last.Outcome, g.Outcome())
	}
	if _, err := g.Play("a2a3"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("move after mate err = %v", err)
	}
}

func TestPromotionRoundTrip(t *testing.T) {
	const fen = "8/P6k/8/8/8/8/8/K7 w - - 0 1"
	local, err := NewGameFromFEN(fen)
	if err != nil {
		t.Fatalf("NewGameFromFEN: %v", err)
	}
	remote, _ := NewGameFromFEN(fen)
	if local.StartFEN() != fen || NewGame().StartFEN() != "" {
		t.Fatalf("StartFEN = %q", local.StartFEN())
	}

	mv, err := local.Play("a7a8q")
	if err != nil {
		t.Fatalf("Play promotion: %v", err)
	}
	if mv.Promotion != protocol.Queen {
		t.Fatalf("promotion = %v", mv.Promotion)
	}
	frame, err := protocol.Encode(mv)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(frame[10:15]) != "A7A8Q" {
		t.Fatalf("move field = %q", frame[10:15])
	}
	if err := remote.Apply(mv.From, mv.To, mv.Promotion); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if remote.Occupant(0, 7) != protocol.Occupied(protocol.Queen, protocol.White) {
		t.Fatalf("queen not on a8")
	}
}

func TestResign(t *testing.T) {
	g := NewGame()
	g.Resign(protocol.White)
	if g.Outcome() != protocol.BlackWins {
		t.Fatalf("outcome = %v", g.Outcome())
	}
}
