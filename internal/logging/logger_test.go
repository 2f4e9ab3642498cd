package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		logger.Info("hello")
		if _, err := os.Stat(filepath.Join(dir, LogFileName)); err != nil {
			t.Errorf("log file was not created: %v", err)
		}
	})

	t.Run("writes to stderr when dir is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() on stderr logger = %v, want nil", err)
		}
	})
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := decodeLines(t, buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines at WARN, got %d", len(lines))
	}
	if lines[0]["msg"] != "warn message" {
		t.Errorf("first line msg = %v, want %q", lines[0]["msg"], "warn message")
	}
}

func TestSetLevelAffectsChildren(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, LevelError)
	child := root.WithSession("s1")

	child.Info("dropped")
	root.SetLevel(LevelDebug)
	child.Info("kept")

	lines := decodeLines(t, buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["msg"] != "kept" {
		t.Errorf("msg = %v, want kept", lines[0]["msg"])
	}
	if child.Level() != LevelDebug {
		t.Errorf("Level() = %q, want %q", child.Level(), LevelDebug)
	}
}

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelDebug).
		WithSession("sess-1").
		WithUser("alice").
		WithComponent("filelock").
		With("file", "main.rs", 42, "ignored")

	logger.Info("locked", "version", 3)

	lines := decodeLines(t, buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	got := lines[0]
	want := map[string]any{
		"session_id": "sess-1",
		"user_id":    "alice",
		"component":  "filelock",
		"file":       "main.rs",
		"version":    float64(3),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"Error", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("nothing happens")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
