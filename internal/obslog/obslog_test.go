package obslog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/chesstp/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chesstp.log")
	logger, err := New(config.LogConfig{Level: "debug", Format: "json", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("frame_sent", zap.String("tag", "ChessMOVE"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", raw)
	}
	if entry["msg"] != "frame_sent" || entry["tag"] != "ChessMOVE" || entry["level"] != "debug" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	logger, err := New(config.LogConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected a no-op logger")
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := L()
	t.Cleanup(func() { globalLogger = prev })

	path := filepath.Join(t.TempDir(), "x.log")
	if err := Init(config.LogConfig{Level: "warn", ToFile: true, File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if L() == prev {
		t.Fatalf("global logger unchanged")
	}
	if L().Core().Enabled(zapcore.InfoLevel) || !L().Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("level not applied")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{"DEBUG": zapcore.DebugLevel, "warning": zapcore.WarnLevel, "": zapcore.InfoLevel, "bogus": zapcore.InfoLevel}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %s; want %s", in, got, want)
		}
	}
}
