package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// LogConfig drives obslog.Init.
type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // legacy, json or console
	Console bool   `yaml:"console"`
	ToFile  bool   `yaml:"to_file"`
	File    string `yaml:"file"`
	Caller  bool   `yaml:"caller"`
}

type AppConfig struct {
	// Addr is the default address to host on or join.
	Addr       string `yaml:"addr"`
	PlayerName string `yaml:"player_name"`

	// ReadPoll bounds each frame read on TCP streams; PollInterval is the
	// pause between reads that returned nothing.
	ReadPoll     time.Duration `yaml:"read_poll"`
	PollInterval time.Duration `yaml:"poll_interval"`

	StockfishPath  string        `yaml:"stockfish_path"`
	EngineMoveTime time.Duration `yaml:"engine_move_time"`
	EngineSkill    int           `yaml:"engine_skill"`
	EngineHashMB   int           `yaml:"engine_hash_mb"`

	RedisURL    string        `yaml:"redis_url"`
	MatchTTL    time.Duration `yaml:"match_ttl"`
	DatabaseURL string        `yaml:"database_url"`

	WebhookURL   string `yaml:"webhook_url"`
	WebhookToken string `yaml:"webhook_token"`

	MessagesDir string `yaml:"messages_dir"`

	Log LogConfig `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *AppConfig {
	return &AppConfig{
		Addr:           "127.0.0.1:7878",
		PlayerName:     "local",
		ReadPoll:       100 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		EngineMoveTime: 500 * time.Millisecond,
		EngineSkill:    20,
		EngineHashMB:   16,
		MatchTTL:       24 * time.Hour,
		Log: LogConfig{
			Level:   "info",
			Format:  "legacy",
			Console: false,
			ToFile:  true,
			File:    "logs/chesstp.log",
		},
	}
}

// Load applies, in order: defaults, the YAML file named by CHESSTP_CONFIG,
// then CHESSTP_* environment variables.
func Load() (*AppConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CHESSTP_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Addr, "CHESSTP_ADDR")
	setString(&cfg.PlayerName, "CHESSTP_PLAYER_NAME")
	setString(&cfg.StockfishPath, "STOCKFISH_PATH")
	setString(&cfg.StockfishPath, "CHESSTP_STOCKFISH_PATH")
	setString(&cfg.RedisURL, "CHESSTP_REDIS_URL")
	setString(&cfg.DatabaseURL, "CHESSTP_DATABASE_URL")
	setString(&cfg.WebhookURL, "CHESSTP_WEBHOOK_URL")
	setString(&cfg.WebhookToken, "CHESSTP_WEBHOOK_TOKEN")
	setString(&cfg.MessagesDir, "CHESSTP_MESSAGES_DIR")

	setString(&cfg.Log.Level, "CHESSTP_LOG_LEVEL")
	setString(&cfg.Log.Format, "CHESSTP_LOG_FORMAT")
	setString(&cfg.Log.File, "CHESSTP_LOG_FILE")

	var errs []error
	errs = append(errs,
		setDuration(&cfg.ReadPoll, "CHESSTP_READ_POLL"),
		setDuration(&cfg.PollInterval, "CHESSTP_POLL_INTERVAL"),
		setDuration(&cfg.EngineMoveTime, "CHESSTP_ENGINE_MOVETIME"),
		setDuration(&cfg.MatchTTL, "CHESSTP_MATCH_TTL"),
		setInt(&cfg.EngineSkill, "CHESSTP_ENGINE_SKILL"),
		setInt(&cfg.EngineHashMB, "CHESSTP_ENGINE_HASH_MB"),
		setBool(&cfg.Log.Console, "CHESSTP_LOG_TO_CONSOLE"),
		setBool(&cfg.Log.ToFile, "CHESSTP_LOG_TO_FILE"),
		setBool(&cfg.Log.Caller, "CHESSTP_LOG_CALLER"),
	)
	return errors.Join(errs...)
}

// Validate checks ranges and URL schemes.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("CHESSTP_ADDR must not be empty")
	}
	if c.ReadPoll < 0 {
		return fmt.Errorf("read poll must be >= 0: %s", c.ReadPoll)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be > 0: %s", c.PollInterval)
	}
	if c.EngineMoveTime < time.Millisecond {
		return fmt.Errorf("engine move time must be >= 1ms: %s", c.EngineMoveTime)
	}
	if c.EngineSkill < 0 || c.EngineSkill > 20 {
		return fmt.Errorf("engine skill %d out of range 0-20", c.EngineSkill)
	}
	if c.EngineHashMB <= 0 {
		return fmt.Errorf("engine hash must be > 0: %d", c.EngineHashMB)
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		return fmt.Errorf("CHESSTP_REDIS_URL must use redis:// or rediss://")
	}
	if c.WebhookURL != "" && !strings.HasPrefix(c.WebhookURL, "http://") && !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("CHESSTP_WEBHOOK_URL must use http:// or https://")
	}
	switch strings.ToLower(c.Log.Format) {
	case "legacy", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
