// Package testutil provides testing utilities for cowork tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/cowork/internal/event"
)

// Epoch is the default start time of a Clock.
var Epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source, safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock starting at Epoch.
func NewClock() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the current fake time. Pass c.Now wherever a func() time.Time
// is accepted.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RecordingBroadcaster captures every envelope it is asked to broadcast.
type RecordingBroadcaster struct {
	mu        sync.Mutex
	envelopes []event.Envelope
	err       error
}

// Broadcast records env and returns the configured failure, if any.
func (r *RecordingBroadcaster) Broadcast(_ context.Context, env event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
	return r.err
}

// FailWith makes subsequent broadcasts return err after recording.
func (r *RecordingBroadcaster) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Envelopes returns a copy of everything recorded so far.
func (r *RecordingBroadcaster) Envelopes() []event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Envelope(nil), r.envelopes...)
}

// Kinds returns the kinds of the recorded envelopes in order.
func (r *RecordingBroadcaster) Kinds() []event.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]event.Kind, len(r.envelopes))
	for i, env := range r.envelopes {
		kinds[i] = env.Kind
	}
	return kinds
}

// Last returns the most recent envelope of kind and true, or false if none.
func (r *RecordingBroadcaster) Last(kind event.Kind) (event.Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.envelopes) - 1; i >= 0; i-- {
		if r.envelopes[i].Kind == kind {
			return r.envelopes[i], true
		}
	}
	return event.Envelope{}, false
}

// Reset forgets everything recorded.
func (r *RecordingBroadcaster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = nil
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// WaitFor polls cond until it returns true or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
