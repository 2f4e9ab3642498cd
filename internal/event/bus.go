package event

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/cowork/internal/logging"
)

// Handler is a function that handles an envelope.
type Handler func(Envelope)

// subscription represents a registered envelope handler.
type subscription struct {
	id      string
	kind    Kind
	handler Handler
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report panicking handlers.
func WithLogger(l *logging.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// Bus is a simple synchronous pub-sub bus.
// It allows components to observe session changes without direct dependencies.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[Kind][]subscription
	nextID        atomic.Uint64
	logger        *logging.Logger
}

// NewBus creates a new bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[Kind][]subscription),
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for one kind, or for every kind with All.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(kind Kind, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subscriptions[kind] = append(b.subscriptions[kind], subscription{
		id:      id,
		kind:    kind,
		handler: handler,
	})
	return id
}

// SubscribeAll registers a handler for every kind.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(All, handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[kind] = slices.Delete(slices.Clone(subs), i, i+1)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an envelope to all registered handlers.
// Specific handlers are called first, followed by wildcard handlers.
// Handlers run outside the bus lock and may subscribe or publish.
func (b *Bus) Publish(env Envelope) {
	b.mu.RLock()
	specific := slices.Clone(b.subscriptions[env.Kind])
	var wildcard []subscription
	if env.Kind != All {
		wildcard = slices.Clone(b.subscriptions[All])
	}
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub.handler, env)
	}
	for _, sub := range wildcard {
		b.safeCall(sub.handler, env)
	}
}

// safeCall invokes a handler and recovers from any panic so one misbehaving
// handler cannot block delivery to the others.
func (b *Bus) safeCall(handler Handler, env Envelope) {
	var pc panics.Catcher
	pc.Try(func() { handler(env) })
	if r := pc.Recovered(); r != nil {
		b.logger.Error("event handler panicked",
			"kind", string(env.Kind),
			"session_id", env.SessionID,
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack),
		)
	}
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[Kind][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
