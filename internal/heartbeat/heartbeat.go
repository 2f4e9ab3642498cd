// Package heartbeat removes participants who stop sending heartbeats.
//
// A [Monitor] remembers the last heartbeat of every (session, user) pair.
// A sweep loop periodically finds pairs that have been silent for longer than
// the timeout and drives them through the session's normal leave path, so
// their file locks are released exactly as if they had left themselves.
//
// The monitor learns about participants from the in-process event bus:
// joins start tracking and leaves stop it.
package heartbeat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/logging"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultInterval = 5 * time.Second
)

// Leaver removes a participant from a session.
type Leaver interface {
	LeaveSession(ctx context.Context, sessionID, userID string) error
}

// Expired identifies a participant removed by a sweep.
type Expired struct {
	SessionID string
	UserID    string
	LastBeat  time.Time
}

type key struct {
	sessionID string
	userID    string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTimeout sets how long a participant may stay silent.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.timeout = d }
}

// WithInterval sets how often the sweep loop runs. A non-positive interval
// disables the loop; Sweep can still be called directly.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// Monitor tracks heartbeats and evicts silent participants.
type Monitor struct {
	mu              sync.Mutex
	leaver          Leaver
	bus             *event.Bus
	last            map[key]time.Time
	subscriptionIDs []string
	stopFunc        context.CancelFunc
	stopped         chan struct{}

	// Configuration
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

// NewMonitor creates a Monitor that evicts through leaver. bus may be nil,
// in which case participants are only tracked through Beat.
func NewMonitor(leaver Leaver, bus *event.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		leaver:   leaver,
		bus:      bus,
		last:     make(map[key]time.Time),
		timeout:  defaultTimeout,
		interval: defaultInterval,
		now:      time.Now,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("heartbeat")
	return m
}

// Beat records a heartbeat from userID in sessionID.
func (m *Monitor) Beat(sessionID, userID string) {
	m.mu.Lock()
	m.last[key{sessionID, userID}] = m.now()
	m.mu.Unlock()
}

// Forget stops tracking userID in sessionID.
func (m *Monitor) Forget(sessionID, userID string) {
	m.mu.Lock()
	delete(m.last, key{sessionID, userID})
	m.mu.Unlock()
}

// ForgetSession stops tracking every participant of sessionID.
func (m *Monitor) ForgetSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.last {
		if k.sessionID == sessionID {
			delete(m.last, k)
		}
	}
}

// LastBeat returns the last heartbeat recorded for userID in sessionID.
func (m *Monitor) LastBeat(sessionID, userID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[key{sessionID, userID}]
	return t, ok
}

// Tracked returns the number of tracked participants.
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.last)
}

// Sweep evicts every participant silent for longer than the timeout and
// returns them ordered by session then user. Participants who already left
// are dropped silently.
func (m *Monitor) Sweep(ctx context.Context) []Expired {
	cutoff := m.now().Add(-m.timeout)

	m.mu.Lock()
	var expired []Expired
	for k, t := range m.last {
		if t.Before(cutoff) {
			expired = append(expired, Expired{SessionID: k.sessionID, UserID: k.userID, LastBeat: t})
			delete(m.last, k)
		}
	}
	m.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool {
		if expired[i].SessionID != expired[j].SessionID {
			return expired[i].SessionID < expired[j].SessionID
		}
		return expired[i].UserID < expired[j].UserID
	})

	evicted := expired[:0]
	for _, e := range expired {
		err := m.leaver.LeaveSession(ctx, e.SessionID, e.UserID)
		switch {
		case err == nil:
			m.logger.WithSession(e.SessionID).WithUser(e.UserID).Info("evicted silent participant",
				"last_beat", e.LastBeat,
				"timeout", m.timeout.String(),
			)
			evicted = append(evicted, e)
		case errors.Is(err, errors.ErrUserNotInSession), errors.Is(err, errors.ErrSessionNotFound):
			m.logger.WithSession(e.SessionID).WithUser(e.UserID).Debug("participant already gone")
		default:
			m.logger.WithSession(e.SessionID).WithUser(e.UserID).Warn("failed to evict participant",
				"error", err.Error(),
			)
		}
	}
	return evicted
}

// Start subscribes to the bus and runs the sweep loop until ctx is done or
// Stop is called. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopFunc != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.stopFunc = cancel
	m.stopped = make(chan struct{})

	if m.bus != nil {
		m.subscriptionIDs = append(m.subscriptionIDs,
			m.bus.Subscribe(event.SessionCreated, m.handleJoined),
			m.bus.Subscribe(event.UserJoined, m.handleJoined),
			m.bus.Subscribe(event.UserLeft, m.handleLeft),
			m.bus.Subscribe(event.SessionEnded, m.handleEnded),
		)
	}

	go m.sweepLoop(ctx, m.stopped)
}

// Stop unsubscribes from the bus and waits for the sweep loop to exit.
// It is safe to call Stop more than once, or without Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	ids := m.subscriptionIDs
	m.subscriptionIDs = nil
	cancel, stopped := m.stopFunc, m.stopped
	m.stopFunc = nil
	m.mu.Unlock()

	for _, id := range ids {
		m.bus.Unsubscribe(id)
	}
	if cancel != nil {
		cancel()
		<-stopped
	}
}

func (m *Monitor) handleJoined(env event.Envelope) {
	if env.Origin != "" {
		m.Beat(env.SessionID, env.Origin)
	}
}

func (m *Monitor) handleLeft(env event.Envelope) {
	m.Forget(env.SessionID, env.Origin)
}

func (m *Monitor) handleEnded(env event.Envelope) {
	m.ForgetSession(env.SessionID)
}

func (m *Monitor) sweepLoop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	if m.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
