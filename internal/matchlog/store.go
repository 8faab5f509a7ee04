// Package matchlog keeps the raw frames of each session in Redis so a game
// can be replayed or inspected after the fact.
package matchlog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/chesstp/internal/protocol"
	"github.com/park285/chesstp/internal/session"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour
	entrySep   = "|"
)

// ErrCorruptEntry means a stored frame could not be parsed back.
var ErrCorruptEntry = errors.New("matchlog: corrupt entry")

// Entry is one recorded frame.
type Entry struct {
	Dir     session.Direction
	Message protocol.Message
}

// Store implements session.Recorder and session.Sink on top of Redis.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore wraps rdb. A ttl of zero uses DefaultTTL.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Open connects to a redis:// or rediss:// URL and checks the connection.
func Open(ctx context.Context, rawURL string, ttl time.Duration) (*Store, error) {
	opts, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("matchlog: redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("matchlog: ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

// Close releases the Redis client.
func (s *Store) Close() error { return s.rdb.Close() }

func keyFrames(id string) string { return "chesstp:match:" + strings.TrimSpace(id) + ":frames" }
func keyMeta(id string) string   { return "chesstp:match:" + strings.TrimSpace(id) + ":meta" }

// Record appends the encoded frame of m.
func (s *Store) Record(ctx context.Context, sessionID string, dir session.Direction, m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("matchlog: encode: %w", err)
	}
	key := keyFrames(sessionID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, string(dir)+entrySep+string(frame))
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("matchlog: record %s: %w", sessionID, err)
	}
	return nil
}

// Finish stores the session summary next to its frames.
func (s *Store) Finish(ctx context.Context, r session.Result) error {
	key := keyMeta(r.SessionID)
	fields := map[string]any{
		"color":      r.Color.String(),
		"peer":       r.Peer,
		"outcome":    r.Outcome.Code(),
		"method":     r.Method,
		"quit":       r.QuitReason,
		"moves":      strings.Join(r.MovesUCI, " "),
		"started_at": r.StartedAt.UTC().Format(time.RFC3339),
		"ended_at":   r.EndedAt.UTC().Format(time.RFC3339),
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields)
		p.Expire(ctx, key, s.ttl)
		p.Expire(ctx, keyFrames(r.SessionID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("matchlog: finish %s: %w", r.SessionID, err)
	}
	return nil
}

// Frames returns the recorded frames of a session in order.
func (s *Store) Frames(ctx context.Context, sessionID string) ([]Entry, error) {
	raw, err := s.rdb.LRange(ctx, keyFrames(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("matchlog: frames %s: %w", sessionID, err)
	}
	out := make([]Entry, 0, len(raw))
	for i, item := range raw {
		dir, frame, ok := strings.Cut(item, entrySep)
		if !ok {
			return nil, fmt.Errorf("%w: #%d has no direction", ErrCorruptEntry, i)
		}
		msg, err := protocol.Decode([]byte(frame))
		if err != nil {
			return nil, fmt.Errorf("%w: #%d: %w", ErrCorruptEntry, i, err)
		}
		out = append(out, Entry{Dir: session.Direction(dir), Message: msg})
	}
	return out, nil
}

// Meta returns the summary written by Finish, or nil if none exists.
func (s *Store) Meta(ctx context.Context, sessionID string) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, keyMeta(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("matchlog: meta %s: %w", sessionID, err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
