package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
)

type closingSink struct {
	Nop
	closed bool
	err    error
}

func (c *closingSink) Close() error {
	c.closed = true
	return c.err
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]uint64{}
	sink := func(id int) Broadcaster {
		return Func(func(_ context.Context, env event.Envelope) error {
			mu.Lock()
			defer mu.Unlock()
			seen[id] = env.Seq
			return nil
		})
	}

	f := NewFanout(2, sink(1), sink(2), sink(3))
	if err := f.Broadcast(context.Background(), testEnvelope()); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("delivered to %d sinks, want 3", len(seen))
	}
	if f.Len() != 3 {
		t.Errorf("Len() = %d", f.Len())
	}
}

func TestFanout_JoinsErrors(t *testing.T) {
	errA := errors.New("sink a down")
	errB := errors.New("sink b down")
	var delivered atomic.Int32

	f := NewFanout(0,
		Func(func(context.Context, event.Envelope) error { return errA }),
		Func(func(context.Context, event.Envelope) error {
			delivered.Add(1)
			return nil
		}),
		Func(func(context.Context, event.Envelope) error { return errB }),
	)

	err := f.Broadcast(context.Background(), testEnvelope())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Broadcast() error = %v, want both sink errors", err)
	}
	if delivered.Load() != 1 {
		t.Error("a failing sink must not stop delivery to the others")
	}
}

func TestFanout_EmptyAndSingle(t *testing.T) {
	if err := NewFanout(4).Broadcast(context.Background(), testEnvelope()); err != nil {
		t.Errorf("empty fanout error = %v", err)
	}

	boom := errors.New("boom")
	single := NewFanout(4, Func(func(context.Context, event.Envelope) error { return boom }))
	if err := single.Broadcast(context.Background(), testEnvelope()); !errors.Is(err, boom) {
		t.Errorf("single sink error = %v", err)
	}
}

func TestFanout_Close(t *testing.T) {
	boom := errors.New("close failed")
	a := &closingSink{}
	b := &closingSink{err: boom}

	err := NewFanout(1, a, Nop{}, b).Close()
	if !a.closed || !b.closed {
		t.Error("every closable sink should be closed")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Close() error = %v", err)
	}
}
