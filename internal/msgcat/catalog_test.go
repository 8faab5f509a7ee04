package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMessagesRender(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("game.over", map[string]any{"Result": "0-1", "Method": "checkmate"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Game over: 0-1 by checkmate." {
		t.Fatalf("got %q", got)
	}
	got, err = c.Render("game.illegal", map[string]any{"Input": "e2e5"})
	if err != nil || !strings.HasPrefix(got, `Illegal move "e2e5".`) {
		t.Fatalf("illegal = %q, %v", got, err)
	}
}

func TestRenderMissing(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("missing template rendered")
	}
	if _, err := c.Render("game.peer_quit", map[string]any{}); err == nil {
		t.Fatalf("missing data key rendered")
	}
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("Text fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  desync: \"out of sync\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("game.desync", nil); got != "out of sync" {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Text("game.interrupted", nil); got != "Interrupted." {
		t.Fatalf("default lost: %q", got)
	}
}

func TestOverrideDirRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("game:\n  desync: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("err = %v; want duplicate key error", err)
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("int leaf accepted")
	}
}
