package logging

import (
	"strings"
	"testing"
	"time"
)

const sampleLog = `{"time":"2026-01-02T10:00:02Z","level":"WARN","msg":"lock conflict","session_id":"s1","user_id":"bob","component":"session","file":"main.rs"}
not json
{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"user joined","session_id":"s1","user_id":"bob"}
{"time":"2026-01-02T10:00:03Z","level":"DEBUG","msg":"cursor","session_id":"s2","user_id":"alice"}
`

func TestRead(t *testing.T) {
	entries, err := Read(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Message != "user joined" {
		t.Errorf("entries not sorted by time: first = %q", entries[0].Message)
	}
	if entries[1].Attrs["file"] != "main.rs" {
		t.Errorf("attrs[file] = %v, want main.rs", entries[1].Attrs["file"])
	}
	if entries[1].Component != "session" {
		t.Errorf("Component = %q, want session", entries[1].Component)
	}
}

func TestFilterApply(t *testing.T) {
	entries, err := Read(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"empty filter", Filter{}, 3},
		{"level", Filter{Level: "info"}, 2},
		{"session", Filter{SessionID: "s2"}, 1},
		{"user", Filter{UserID: "bob"}, 2},
		{"component", Filter{Component: "session"}, 1},
		{"since", Filter{Since: time.Date(2026, 1, 2, 10, 0, 2, 0, time.UTC)}, 2},
		{"contains", Filter{Contains: "lock"}, 1},
		{"combined", Filter{UserID: "bob", Level: "warn"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.filter.Apply(entries)); got != tt.want {
				t.Errorf("Apply() returned %d entries, want %d", got, tt.want)
			}
		})
	}
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.WithSession("s9").Info("created")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != "s9" {
		t.Errorf("ReadDir() = %+v, want one entry for s9", entries)
	}
}
