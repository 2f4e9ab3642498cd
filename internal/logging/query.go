package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed JSON log line.
type Entry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Component string         `json:"component,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// Filter selects entries. Zero-valued fields do not filter.
type Filter struct {
	Level     string // minimum level
	SessionID string
	UserID    string
	Component string
	Since     time.Time
	Contains  string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

var standardFields = map[string]bool{
	"time":       true,
	"level":      true,
	"msg":        true,
	"session_id": true,
	"user_id":    true,
	"component":  true,
}

// ReadDir parses {logDir}/cowork.log. Entries are sorted by time.
func ReadDir(logDir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(logDir, LogFileName))
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Read parses JSON log lines from r, skipping lines that do not parse.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

func parseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, err
	}

	e := Entry{Attrs: make(map[string]any)}
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			e.Time = t
		}
	}
	e.Level, _ = raw["level"].(string)
	e.Message, _ = raw["msg"].(string)
	e.SessionID, _ = raw["session_id"].(string)
	e.UserID, _ = raw["user_id"].(string)
	e.Component, _ = raw["component"].(string)

	for k, v := range raw {
		if !standardFields[k] {
			e.Attrs[k] = v
		}
	}
	return e, nil
}

// Apply returns the entries matching every set field of f.
func (f Filter) Apply(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f Filter) matches(e Entry) bool {
	if f.Level != "" {
		floor, ok := levelOrder[strings.ToUpper(f.Level)]
		got, known := levelOrder[e.Level]
		if ok && known && got < floor {
			return false
		}
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Component != "" && e.Component != f.Component {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if f.Contains != "" && !strings.Contains(e.Message, f.Contains) {
		return false
	}
	return true
}
