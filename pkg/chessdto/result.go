package chessdto

import "time"

// GameResult is the summary of a finished peer game, as stored and as posted
// to result webhooks.
type GameResult struct {
	SessionID  string    `json:"session_id"`
	LocalColor string    `json:"local_color"`
	White      string    `json:"white"`
	Black      string    `json:"black"`
	Result     string    `json:"result"`
	Method     string    `json:"method,omitempty"`
	QuitReason string    `json:"quit_reason,omitempty"`
	MovesUCI   []string  `json:"moves_uci"`
	MovesSAN   []string  `json:"moves_san"`
	PGN        string    `json:"pgn"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMS int64     `json:"duration_ms"`
}
