package broadcast

import (
	"context"
	"fmt"
	"io"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
)

// Fanout delivers each envelope to several sinks in parallel. A failing sink
// does not stop delivery to the others; their errors are joined.
type Fanout struct {
	sinks          []Broadcaster
	maxConcurrency int
}

// NewFanout creates a Fanout running at most maxConcurrency deliveries at
// once. A non-positive limit means one goroutine per sink.
func NewFanout(maxConcurrency int, sinks ...Broadcaster) *Fanout {
	if maxConcurrency <= 0 {
		maxConcurrency = max(len(sinks), 1)
	}
	return &Fanout{sinks: sinks, maxConcurrency: maxConcurrency}
}

// Broadcast implements Broadcaster.
func (f *Fanout) Broadcast(ctx context.Context, env event.Envelope) error {
	switch len(f.sinks) {
	case 0:
		return nil
	case 1:
		return f.sinks[0].Broadcast(ctx, env)
	}

	p := pool.New().WithMaxGoroutines(f.maxConcurrency).WithErrors().WithContext(ctx)
	for i, sink := range f.sinks {
		p.Go(func(ctx context.Context) error {
			if err := sink.Broadcast(ctx, env); err != nil {
				return fmt.Errorf("sink %d (%T): %w", i, sink, err)
			}
			return nil
		})
	}
	return p.Wait()
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Close closes every sink that holds resources.
func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
