package coordination

import (
	"time"

	"github.com/Iron-Ham/cowork/internal/broadcast"
	"github.com/Iron-Ham/cowork/internal/event"
)

// hubConfig holds optional configuration for a Hub.
type hubConfig struct {
	bus         *event.Bus
	extraSinks  []broadcast.Broadcaster
	now         func() time.Time
	newID       func() string
	noHeartbeat bool
}

// Option configures a Hub.
type Option func(*hubConfig)

// WithBus uses bus instead of creating a new one.
func WithBus(bus *event.Bus) Option {
	return func(c *hubConfig) { c.bus = bus }
}

// WithSink adds a broadcaster next to the configured sinks.
func WithSink(b broadcast.Broadcaster) Option {
	return func(c *hubConfig) {
		if b != nil {
			c.extraSinks = append(c.extraSinks, b)
		}
	}
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(c *hubConfig) { c.now = now }
}

// WithIDGenerator overrides how session IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(c *hubConfig) { c.newID = gen }
}

// WithoutHeartbeat disables the heartbeat monitor regardless of configuration.
func WithoutHeartbeat() Option {
	return func(c *hubConfig) { c.noHeartbeat = true }
}
