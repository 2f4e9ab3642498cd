package session

import (
	"time"

	"github.com/Iron-Ham/cowork/internal/broadcast"
	"github.com/Iron-Ham/cowork/internal/logging"
)

// Option configures a Manager.
type Option func(*Manager)

// WithBroadcaster sets where session envelopes are delivered.
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(m *Manager) {
		if b != nil {
			m.broadcaster = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source for the manager and every session it creates.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator overrides how session IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		m.newID = gen
	}
}
