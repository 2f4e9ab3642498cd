// Package broadcast delivers session envelopes to the outside world.
//
// The session manager depends only on the [Broadcaster] interface. Delivery is
// best effort: the manager logs a failed broadcast and keeps the mutation.
// Implementations range from in-process ([Bus], [Log]) to Redis pub/sub
// ([Redis]), and [Fanout] delivers to several of them in parallel.
package broadcast

import (
	"context"

	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/logging"
)

// Broadcaster announces an envelope to every interested party of its session.
type Broadcaster interface {
	Broadcast(ctx context.Context, env event.Envelope) error
}

// Nop discards every envelope.
type Nop struct{}

// Broadcast implements Broadcaster.
func (Nop) Broadcast(context.Context, event.Envelope) error { return nil }

// Func adapts a function to a Broadcaster.
type Func func(ctx context.Context, env event.Envelope) error

// Broadcast implements Broadcaster.
func (f Func) Broadcast(ctx context.Context, env event.Envelope) error {
	return f(ctx, env)
}

// Log writes every envelope to a logger at debug level.
type Log struct {
	logger *logging.Logger
}

// NewLog creates a Log broadcaster.
func NewLog(logger *logging.Logger) *Log {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Log{logger: logger.WithComponent("broadcast")}
}

// Broadcast implements Broadcaster.
func (l *Log) Broadcast(_ context.Context, env event.Envelope) error {
	l.logger.Debug("broadcast",
		"session_id", env.SessionID,
		"kind", string(env.Kind),
		"seq", env.Seq,
		"origin", env.Origin,
	)
	return nil
}

// Bus republishes every envelope on an in-process event bus.
type Bus struct {
	bus *event.Bus
}

// NewBus creates a Bus broadcaster.
func NewBus(bus *event.Bus) *Bus {
	return &Bus{bus: bus}
}

// Broadcast implements Broadcaster.
func (b *Bus) Broadcast(ctx context.Context, env event.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.bus.Publish(env)
	return nil
}
