package movesource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/chesstp/internal/rules"
	"go.uber.org/zap"
)

const defaultReadyTimeout = 4 * time.Second

// EngineOptions tune the UCI engine.
type EngineOptions struct {
	Threads    int
	HashMB     int
	SkillLevel int
	MoveTime   time.Duration
}

// DefaultEngineOptions plays quickly at full strength.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{Threads: 1, HashMB: 16, SkillLevel: 20, MoveTime: 500 * time.Millisecond}
}

// Engine asks a UCI engine subprocess (e.g. Stockfish) for each move.
type Engine struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	opt    EngineOptions
	logger *zap.Logger

	mu     sync.Mutex
	search sync.Mutex
}

// NewEngine starts binaryPath and completes the UCI handshake.
func NewEngine(ctx context.Context, binaryPath string, opt EngineOptions, logger *zap.Logger) (*Engine, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	e := newEngine(stdin, stdoutPipe, opt, logger)
	e.cmd = cmd
	if err := e.initialize(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func newEngine(stdin io.WriteCloser, stdout io.Reader, opt EngineOptions, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{stdin: stdin, stdout: bufio.NewReader(stdout), opt: opt, logger: logger}
}

// Next searches the current position and returns the engine's best move in UCI.
func (e *Engine) Next(ctx context.Context, g *rules.Game) (string, error) {
	e.search.Lock()
	defer e.search.Unlock()

	positionCmd := buildPositionCommand(g.StartFEN(), g.MovesUCI())
	if err := e.send(positionCmd); err != nil {
		return "", fmt.Errorf("send position: %w", err)
	}
	goCmd := "go movetime " + strconv.FormatInt(e.opt.MoveTime.Milliseconds(), 10)
	if err := e.send(goCmd + "\n"); err != nil {
		return "", fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(e.opt.MoveTime))
	defer cancel()

	for {
		line, err := e.readLine(searchCtx)
		if err != nil {
			e.logger.Warn("engine_read_failed",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Error(err),
			)
			return "", fmt.Errorf("read line: %w", err)
		}
		if !strings.HasPrefix(line, "bestmove") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 || parts[1] == "(none)" {
			return "", fmt.Errorf("%w: engine has no move", ErrResign)
		}
		e.logger.Debug("engine_bestmove", zap.String("move", parts[1]))
		return parts[1], nil
	}
}

// Close asks the engine to quit and reaps the process.
func (e *Engine) Close() error {
	_ = e.send("quit\n")

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stdin != nil {
		e.stdin.Close()
	}
	if e.cmd == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- e.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		return <-done
	}
}

func (e *Engine) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := e.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := e.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := e.applyOptions(); err != nil {
		return err
	}
	if err := e.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	if err := e.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := e.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (e *Engine) applyOptions() error {
	threads := e.opt.Threads
	if threads <= 0 {
		threads = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threads),
		fmt.Sprintf("setoption name Hash value %d\n", e.opt.HashMB),
		fmt.Sprintf("setoption name Skill Level value %d\n", e.opt.SkillLevel),
	}
	for _, cmd := range cmds {
		if err := e.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (e *Engine) send(msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := io.WriteString(e.stdin, msg)
	return err
}

func (e *Engine) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := e.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

// readLine returns on ctx expiry while the pending read keeps running; the
// next Close unblocks it.
func (e *Engine) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := e.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func validateOptions(opt EngineOptions) error {
	if opt.SkillLevel < 0 || opt.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", opt.SkillLevel)
	}
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	if opt.MoveTime < time.Millisecond {
		return fmt.Errorf("move time must be >= 1ms: %s", opt.MoveTime)
	}
	return nil
}

func computeSearchTimeout(moveTime time.Duration) time.Duration {
	return (moveTime + 2*time.Second) * 3
}
