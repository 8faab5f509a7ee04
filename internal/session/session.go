// Package session plays one game against a remote peer: it alternates between
// asking the local move source for a move and waiting for the peer's frame,
// and checks that both sides agree on the board after every move.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/chesstp/internal/movesource"
	"github.com/park285/chesstp/internal/obslog"
	"github.com/park285/chesstp/internal/protocol"
	"github.com/park285/chesstp/internal/rules"
	"github.com/park285/chesstp/internal/transport"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	sinkTimeout         = 5 * time.Second
)

// Config describes the local side of a session.
type Config struct {
	// Color is the side played locally. The hosting peer plays White.
	Color protocol.Color
	// Peer is a display name or address for logs and results.
	Peer string
	// PollInterval is the pause between reads that returned no full frame.
	PollInterval time.Duration
	// Game overrides the starting game; both peers must agree on it.
	Game *rules.Game

	Logger   *zap.Logger
	Recorder Recorder
	Sinks    []Sink

	OnMove    func(MoveEvent)
	OnIllegal func(input string, err error)
}

// Session is a single game over one connection.
type Session struct {
	id     string
	conn   Conn
	src    movesource.Source
	cfg    Config
	game   *rules.Game
	logger *zap.Logger

	writeMu    sync.Mutex
	quitSent   bool
	quitReason string
	started    time.Time
}

// New prepares a session; nothing is sent until Run.
func New(conn Conn, src movesource.Source, cfg Config) *Session {
	if cfg.Color != protocol.Black {
		cfg.Color = protocol.White
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = obslog.L()
	}
	game := cfg.Game
	if game == nil {
		game = rules.NewGame()
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		src:    src,
		cfg:    cfg,
		game:   game,
		logger: logger.With(zap.String("session_id", id), zap.String("color", cfg.Color.String())),
	}
}

// ID returns the session identifier used in logs and records.
func (s *Session) ID() string { return s.id }

// Game returns the local game state.
func (s *Session) Game() *rules.Game { return s.game }

// Run plays until the game ends, either side quits, or ctx is cancelled.
// A finished game returns a nil error; the Result is filled in every case.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.started = time.Now()
	s.logger.Info("session_start", zap.String("peer", s.cfg.Peer))

	stop := context.AfterFunc(ctx, func() {
		s.sendQuit(context.WithoutCancel(ctx), ReasonInterrupted)
		_ = s.conn.Close()
	})
	err := s.loop(ctx)
	stop()

	res := s.result()
	fields := []zap.Field{
		zap.String("outcome", res.Outcome.String()),
		zap.String("method", res.Method),
		zap.Int("plies", len(res.MovesUCI)),
	}
	if res.QuitReason != "" {
		fields = append(fields, zap.String("quit_reason", res.QuitReason))
	}
	if err != nil {
		s.logger.Warn("session_end", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("session_end", fields...)
	}
	s.finish(ctx, res)
	return res, err
}

func (s *Session) loop(ctx context.Context) error {
	for {
		if s.game.Outcome().Finished() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if s.game.Turn() == s.cfg.Color {
			err = s.localTurn(ctx)
		} else {
			err = s.peerTurn(ctx)
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) localTurn(ctx context.Context) error {
	for {
		text, err := s.src.Next(ctx, s.game)
		if err != nil {
			switch {
			case errors.Is(err, movesource.ErrResign):
				s.game.Resign(s.cfg.Color)
				s.quitReason = ReasonResign
				s.logger.Info("local_resign")
				s.sendQuit(ctx, ReasonResign)
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				s.sendQuit(ctx, ReasonError)
				return fmt.Errorf("session: next move: %w", err)
			}
		}

		mv, err := s.game.Play(text)
		if errors.Is(err, rules.ErrIllegalMove) {
			s.logger.Debug("local_move_rejected", zap.String("input", text), zap.Error(err))
			if s.cfg.OnIllegal != nil {
				s.cfg.OnIllegal(text, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("session: play %q: %w", text, err)
		}
		if err := s.send(ctx, mv); err != nil {
			return err
		}
		s.emit(mv, true)
		return nil
	}
}

func (s *Session) peerTurn(ctx context.Context) error {
	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			if transport.IsTransient(err) {
				if err := s.wait(ctx); err != nil {
					return err
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			switch {
			case errors.Is(err, transport.ErrClosed):
				return fmt.Errorf("session: peer connection: %w", err)
			case protocol.IsDecodeError(err):
				s.sendQuit(ctx, ReasonProtocol)
				return fmt.Errorf("%w: %w", ErrProtocol, err)
			default:
				s.sendQuit(ctx, ReasonError)
				return fmt.Errorf("session: receive: %w", err)
			}
		}
		s.record(ctx, Received, msg)

		switch m := msg.(type) {
		case protocol.Move:
			return s.applyPeer(ctx, m)
		case protocol.Quit:
			s.quitReason = m.Reason
			s.logger.Info("peer_quit", zap.String("reason", m.Reason))
			if m.Reason == ReasonResign {
				s.game.Resign(s.cfg.Color.Opponent())
				return nil
			}
			return fmt.Errorf("%w: %q", ErrPeerQuit, m.Reason)
		}
	}
}

func (s *Session) applyPeer(ctx context.Context, m protocol.Move) error {
	if err := s.game.Apply(m.From, m.To, m.Promotion); err != nil {
		s.sendQuit(ctx, ReasonDesync)
		return fmt.Errorf("%w: peer move %s%s: %v", ErrDesync, m.From, m.To, err)
	}
	if local := s.game.Snapshot(); local != m.Board {
		s.sendQuit(ctx, ReasonDesync)
		return fmt.Errorf("%w: board %s, peer sent %s",
			ErrDesync, protocol.EncodeBoard(&local), protocol.EncodeBoard(&m.Board))
	}
	if local := s.game.Outcome(); local != m.Outcome {
		s.sendQuit(ctx, ReasonDesync)
		return fmt.Errorf("%w: outcome %s, peer sent %s", ErrDesync, local, m.Outcome)
	}
	s.emit(m, false)
	return nil
}

func (s *Session) send(ctx context.Context, m protocol.Message) error {
	s.writeMu.Lock()
	err := s.conn.WriteMessage(m)
	if _, ok := m.(protocol.Quit); ok {
		s.quitSent = true
	}
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("session: send: %w", err)
	}
	s.record(ctx, Sent, m)
	return nil
}

// sendQuit tells the peer why the session ends. Only the first Quit is sent
// and failures are logged, since the connection may already be gone.
func (s *Session) sendQuit(ctx context.Context, reason string) {
	s.writeMu.Lock()
	if s.quitSent {
		s.writeMu.Unlock()
		return
	}
	s.quitSent = true
	q := protocol.Quit{Reason: reason}
	err := s.conn.WriteMessage(q)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Debug("quit_send_failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	s.record(ctx, Sent, q)
}

func (s *Session) wait(ctx context.Context) error {
	t := time.NewTimer(s.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Session) emit(m protocol.Move, local bool) {
	s.logger.Debug("move_applied",
		zap.Bool("local", local),
		zap.String("from", m.From.String()),
		zap.String("to", m.To.String()),
		zap.String("outcome", m.Outcome.String()),
	)
	if s.cfg.OnMove != nil {
		s.cfg.OnMove(MoveEvent{Game: s.game, Move: m, Local: local})
	}
}

func (s *Session) record(ctx context.Context, dir Direction, m protocol.Message) {
	if s.cfg.Recorder == nil {
		return
	}
	if err := s.cfg.Recorder.Record(context.WithoutCancel(ctx), s.id, dir, m); err != nil {
		s.logger.Warn("frame_record_failed", zap.String("dir", string(dir)), zap.Error(err))
	}
}

func (s *Session) result() Result {
	res := Result{
		SessionID:  s.id,
		Color:      s.cfg.Color,
		Peer:       s.cfg.Peer,
		Outcome:    s.game.Outcome(),
		QuitReason: s.quitReason,
		MovesUCI:   s.game.MovesUCI(),
		MovesSAN:   s.game.MovesSAN(),
		StartedAt:  s.started,
		EndedAt:    time.Now(),
	}
	if res.Outcome.Finished() {
		res.Method = s.game.Method()
	}
	return res
}

func (s *Session) finish(ctx context.Context, res Result) {
	for _, sink := range s.cfg.Sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := sink.Finish(sctx, res); err != nil {
			s.logger.Error("result_sink_failed", zap.String("sink", fmt.Sprintf("%T", sink)), zap.Error(err))
		}
		cancel()
	}
}
