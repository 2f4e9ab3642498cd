package chat

import "time"

// Option configures a History.
type Option func(*History)

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(h *History) {
		h.now = now
	}
}

// WithIDGenerator overrides how message IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(h *History) {
		h.newID = gen
	}
}
