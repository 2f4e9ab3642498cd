// Package activity keeps the bounded, ordered history of what happened in a session.
package activity

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of events a feed retains unless configured otherwise.
const DefaultCapacity = 100

// Kind identifies what an activity event describes.
type Kind string

const (
	UserJoined         Kind = "user_joined"
	UserLeft           Kind = "user_left"
	FileOpened         Kind = "file_opened"
	FileEdited         Kind = "file_edited"
	FileSaved          Kind = "file_saved"
	FileLocked         Kind = "file_locked"
	FileUnlocked       Kind = "file_unlocked"
	CommentAdded       Kind = "comment_added"
	ReviewSubmitted    Kind = "review_submitted"
	CursorMoved        Kind = "cursor_moved"
	SelectionChanged   Kind = "selection_changed"
	ChatMessage        Kind = "chat_message"
	VoiceStarted       Kind = "voice_started"
	VoiceStopped       Kind = "voice_stopped"
	VideoStarted       Kind = "video_started"
	VideoStopped       Kind = "video_stopped"
	ScreenShareStarted Kind = "screen_share_started"
	ScreenShareStopped Kind = "screen_share_stopped"
)

var kinds = []Kind{
	UserJoined, UserLeft,
	FileOpened, FileEdited, FileSaved, FileLocked, FileUnlocked,
	CommentAdded, ReviewSubmitted,
	CursorMoved, SelectionChanged,
	ChatMessage,
	VoiceStarted, VoiceStopped, VideoStarted, VideoStopped,
	ScreenShareStarted, ScreenShareStopped,
}

// IsValid returns true if the kind belongs to the closed set.
func (k Kind) IsValid() bool {
	return slices.Contains(kinds, k)
}

// Event is one entry in the feed.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	UserID    string         `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Option configures a Feed.
type Option func(*Feed)

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

// Feed is a fixed-capacity ring. Appending to a full feed evicts the oldest event.
type Feed struct {
	mu    sync.RWMutex
	buf   []Event
	start int
	size  int
	now   func() time.Time
}

// NewFeed creates a feed holding at most capacity events.
// A non-positive capacity falls back to DefaultCapacity.
func NewFeed(capacity int, opts ...Option) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	f := &Feed{
		buf: make([]Event, capacity),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Append records an event of the given kind and returns it. The feed keeps
// its own copy of payload.
func (f *Feed) Append(kind Kind, userID string, payload map[string]any) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		Timestamp: f.now(),
		Payload:   maps.Clone(payload),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.size < len(f.buf) {
		f.buf[(f.start+f.size)%len(f.buf)] = ev
		f.size++
	} else {
		f.buf[f.start] = ev
		f.start = (f.start + 1) % len(f.buf)
	}
	return ev.clone()
}

// Events returns the retained events, oldest first.
func (f *Feed) Events() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.lastLocked(f.size)
}

// Recent returns up to n of the newest events, oldest first.
func (f *Feed) Recent(n int) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n > f.size {
		n = f.size
	}
	if n <= 0 {
		return nil
	}
	return f.lastLocked(n)
}

func (f *Feed) lastLocked(n int) []Event {
	out := make([]Event, 0, n)
	for i := f.size - n; i < f.size; i++ {
		out = append(out, f.buf[(f.start+i)%len(f.buf)].clone())
	}
	return out
}

func (e Event) clone() Event {
	e.Payload = maps.Clone(e.Payload)
	return e
}

// Len returns the number of retained events.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.size
}

// Cap returns the feed capacity.
func (f *Feed) Cap() int {
	return len(f.buf)
}
