// Package history persists finished games to Postgres.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/chesstp/internal/protocol"
	"github.com/park285/chesstp/internal/session"
	"github.com/park285/chesstp/pkg/chessdto"
)

const schema = `CREATE TABLE IF NOT EXISTS chesstp_games (
    session_id    TEXT PRIMARY KEY,
    local_color   TEXT NOT NULL,
    white_name    TEXT NOT NULL,
    black_name    TEXT NOT NULL,
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL DEFAULT '',
    quit_reason   TEXT NOT NULL DEFAULT '',
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    pgn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

const upsert = `INSERT INTO chesstp_games (
    session_id, local_color, white_name, black_name,
    result, result_method, quit_reason, moves_uci, moves_san, pgn,
    started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
  ) ON CONFLICT (session_id) DO UPDATE SET
    local_color=EXCLUDED.local_color,
    white_name=EXCLUDED.white_name,
    black_name=EXCLUDED.black_name,
    result=EXCLUDED.result,
    result_method=EXCLUDED.result_method,
    quit_reason=EXCLUDED.quit_reason,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    pgn=EXCLUDED.pgn,
    started_at=EXCLUDED.started_at,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

// Repository implements session.Sink.
type Repository struct {
	db        *sql.DB
	localName string
}

// Open connects to databaseURL and verifies the connection. localName is the
// player name written for the local side.
func Open(ctx context.Context, databaseURL, localName string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("history: database url is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	return &Repository{db: db, localName: localName}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the games table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: create schema: %w", err)
	}
	return nil
}

// Finish upserts the final result of a session.
func (r *Repository) Finish(ctx context.Context, res session.Result) error {
	if r == nil || r.db == nil {
		return nil
	}
	g := Summary(res, r.localName)
	movesUCIRaw, _ := json.Marshal(g.MovesUCI)
	movesSANRaw, _ := json.Marshal(g.MovesSAN)

	_, err := r.db.ExecContext(ctx, upsert,
		g.SessionID, g.LocalColor, g.White, g.Black,
		g.Result, g.Method, g.QuitReason,
		string(movesUCIRaw), string(movesSANRaw), g.PGN,
		g.StartedAt, g.EndedAt, g.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("history: save %s: %w", res.SessionID, err)
	}
	return nil
}

// Summary converts a session result into the stored and published form.
func Summary(res session.Result, localName string) chessdto.GameResult {
	white, black := Players(res, localName)
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return chessdto.GameResult{
		SessionID:  res.SessionID,
		LocalColor: res.Color.String(),
		White:      white,
		Black:      black,
		Result:     ResultToPGN(res.Outcome),
		Method:     strings.TrimSpace(res.Method),
		QuitReason: res.QuitReason,
		MovesUCI:   nonNil(res.MovesUCI),
		MovesSAN:   nonNil(res.MovesSAN),
		PGN:        BuildPGN(res, localName),
		StartedAt:  res.StartedAt,
		EndedAt:    res.EndedAt,
		DurationMS: duration,
	}
}

// Players returns the white and black names for a result.
func Players(res session.Result, localName string) (white, black string) {
	local := strings.TrimSpace(localName)
	if local == "" {
		local = "local"
	}
	peer := strings.TrimSpace(res.Peer)
	if peer == "" {
		peer = "peer"
	}
	if res.Color == protocol.Black {
		return peer, local
	}
	return local, peer
}

// ResultToPGN maps an outcome to the PGN result token.
func ResultToPGN(o protocol.Outcome) string {
	switch o {
	case protocol.WhiteWins:
		return "1-0"
	case protocol.BlackWins:
		return "0-1"
	case protocol.Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the game as PGN with the seven tag roster headers.
func BuildPGN(res session.Result, localName string) string {
	var b strings.Builder
	date := res.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	white, black := Players(res, localName)
	result := ResultToPGN(res.Outcome)

	b.WriteString("[Event \"chesstp\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(res.Peer)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[Round \"-\"]\n")
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(white)))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(black)))
	if method := strings.TrimSpace(res.Method); method != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(method))))
	} else if res.QuitReason != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(res.QuitReason)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(res.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(res.MovesSAN[i])))
		if i+1 < len(res.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(res.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
