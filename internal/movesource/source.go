// Package movesource supplies the local player's moves to a session.
package movesource

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/park285/chesstp/internal/rules"
)

// ErrResign is returned when the local player gives up.
var ErrResign = errors.New("movesource: player resigned")

// Source produces the next move for the side to move in g, as UCI or SAN text.
type Source interface {
	Next(ctx context.Context, g *rules.Game) (string, error)
}

type lineResult struct {
	line string
	err  error
}

// Text reads one move per line. Blank lines are skipped; "quit" and
// "resign" end the game.
type Text struct {
	r      io.Reader
	prompt func(g *rules.Game) string
	out    io.Writer

	once  sync.Once
	lines chan lineResult
}

// TextOption configures a Text source.
type TextOption func(*Text)

// WithPrompt writes prompt(g) to w before each read.
func WithPrompt(w io.Writer, prompt func(g *rules.Game) string) TextOption {
	return func(t *Text) {
		t.out = w
		t.prompt = prompt
	}
}

// NewText reads moves from r.
func NewText(r io.Reader, opts ...TextOption) *Text {
	t := &Text{r: r}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Next blocks until a non-empty line arrives or ctx is done.
func (t *Text) Next(ctx context.Context, g *rules.Game) (string, error) {
	t.once.Do(t.start)
	if t.out != nil && t.prompt != nil {
		_, _ = io.WriteString(t.out, t.prompt(g))
	}
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-t.lines:
			if !ok {
				return "", fmt.Errorf("%w: input closed", ErrResign)
			}
			if res.err != nil {
				return "", fmt.Errorf("movesource: read input: %w", res.err)
			}
			line := strings.TrimSpace(res.line)
			switch strings.ToLower(line) {
			case "":
				continue
			case "quit", "resign":
				return "", ErrResign
			}
			return line, nil
		}
	}
}

// start runs the scanner on its own goroutine so Next can honour ctx while
// the reader blocks.
func (t *Text) start() {
	t.lines = make(chan lineResult)
	go func() {
		defer close(t.lines)
		sc := bufio.NewScanner(t.r)
		for sc.Scan() {
			t.lines <- lineResult{line: sc.Text()}
		}
		if err := sc.Err(); err != nil {
			t.lines <- lineResult{err: err}
		}
	}()
}

// Scripted replays a fixed list of moves and then resigns. Useful for demos
// and tests.
type Scripted struct {
	mu    sync.Mutex
	moves []string
}

// NewScripted returns a source that plays moves in order.
func NewScripted(moves ...string) *Scripted {
	return &Scripted{moves: append([]string(nil), moves...)}
}

func (s *Scripted) Next(ctx context.Context, _ *rules.Game) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.moves) == 0 {
		return "", fmt.Errorf("%w: script exhausted", ErrResign)
	}
	mv := s.moves[0]
	s.moves = s.moves[1:]
	return mv, nil
}
