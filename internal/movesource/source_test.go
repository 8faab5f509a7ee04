package movesource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/park285/chesstp/internal/rules"
)

func TestTextSkipsBlankLines(t *testing.T) {
	var prompts bytes.Buffer
	src := NewText(strings.NewReader("\n  \ne2e4\nNf3\n"), WithPrompt(&prompts, func(*rules.Game) string { return "> " }))
	g := rules.NewGame()
	ctx := context.Background()

	for _, want := range []string{"e2e4", "Nf3"} {
		got, err := src.Next(ctx, g)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Fatalf("Next = %q; want %q", got, want)
		}
	}
	if prompts.String() != "> > " {
		t.Fatalf("prompts = %q", prompts.String())
	}
	if _, err := src.Next(ctx, g); !errors.Is(err, ErrResign) {
		t.Fatalf("after EOF err = %v; want ErrResign", err)
	}
}

func TestTextResignWords(t *testing.T) {
	for _, word := range []string{"quit", "RESIGN"} {
		src := NewText(strings.NewReader(word + "\n"))
		if _, err := src.Next(context.Background(), rules.NewGame()); !errors.Is(err, ErrResign) {
			t.Fatalf("%q: err = %v; want ErrResign", word, err)
		}
	}
}

func TestTextHonoursContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	src := NewText(r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Next(ctx, rules.NewGame()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want DeadlineExceeded", err)
	}
}

func TestScripted(t *testing.T) {
	src := NewScripted("e2e4", "d2d4")
	g := rules.NewGame()
	for _, want := range []string{"e2e4", "d2d4"} {
		got, err := src.Next(context.Background(), g)
		if err != nil || got != want {
			t.Fatalf("Next = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := src.Next(context.Background(), g); !errors.Is(err, ErrResign) {
		t.Fatalf("err = %v; want ErrResign", err)
	}
}

// fakeEngine answers the UCI handshake and replies to every "go" with the
// next scripted bestmove. Commands it saw are sent on seen.
func fakeEngine(t *testing.T, in io.Reader, out io.WriteCloser, best []string, seen chan<- string) {
	t.Helper()
	go func() {
		defer out.Close()
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			line := sc.Text()
			seen <- line
			switch {
			case line == "uci":
				fmt.Fprintln(out, "id name fake")
				fmt.Fprintln(out, "uciok")
			case line == "isready":
				fmt.Fprintln(out, "readyok")
			case strings.HasPrefix(line, "go"):
				mv := "(none)"
				if len(best) > 0 {
					mv, best = best[0], best[1:]
				}
				fmt.Fprintln(out, "info depth 1 score cp 20 pv "+mv)
				fmt.Fprintln(out, "bestmove "+mv)
			case line == "quit":
				return
			}
		}
	}()
}

func TestEngineHandshakeAndSearch(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	seen := make(chan string, 64)
	fakeEngine(t, inR, outW, []string{"e7e5"}, seen)

	opt := DefaultEngineOptions()
	opt.MoveTime = 50 * time.Millisecond
	e := newEngine(inW, outR, opt, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	g := rules.NewGame()
	if _, err := g.Play("e2e4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	mv, err := e.Next(ctx, g)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if mv != "e7e5" {
		t.Fatalf("bestmove = %q", mv)
	}

	var cmds []string
	for len(seen) > 0 {
		cmds = append(cmds, <-seen)
	}
	joined := strings.Join(cmds, "\n")
	for _, want := range []string{"uci", "setoption name Hash value 16", "isready", "position startpos moves e2e4", "go movetime 50"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("engine never saw %q in:\n%s", want, joined)
		}
	}

	if _, err := e.Next(ctx, g); !errors.Is(err, ErrResign) {
		t.Fatalf("no-move err = %v; want ErrResign", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuildPositionCommand(t *testing.T) {
	cases := []struct {
		fen   string
		moves []string
		want  string
	}{
		{"", nil, "position startpos\n"},
		{"", []string{"e2e4", "e7e5"}, "position startpos moves e2e4 e7e5\n"},
		{"8/8/8/8/8/8/8/K6k w - - 0 1", []string{"a1a2"}, "position fen 8/8/8/8/8/8/8/K6k w - - 0 1 moves a1a2\n"},
	}
	for _, c := range cases {
		if got := buildPositionCommand(c.fen, c.moves); got != c.want {
			t.Fatalf("buildPositionCommand(%q, %v) = %q; want %q", c.fen, c.moves, got, c.want)
		}
	}
}

func TestValidateOptions(t *testing.T) {
	bad := []EngineOptions{
		{HashMB: 16, SkillLevel: 21, MoveTime: time.Second},
		{HashMB: 0, SkillLevel: 5, MoveTime: time.Second},
		{HashMB: 16, SkillLevel: 5},
	}
	for _, opt := range bad {
		if err := validateOptions(opt); err == nil {
			t.Fatalf("validateOptions(%+v) accepted", opt)
		}
	}
	if err := validateOptions(DefaultEngineOptions()); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}
