package coordination

import (
	"context"
	"slices"
	"sync"

	"github.com/Iron-Ham/cowork/internal/broadcast"
	"github.com/Iron-Ham/cowork/internal/config"
	"github.com/Iron-Ham/cowork/internal/errors"
	"github.com/Iron-Ham/cowork/internal/event"
	"github.com/Iron-Ham/cowork/internal/heartbeat"
	"github.com/Iron-Ham/cowork/internal/logging"
	"github.com/Iron-Ham/cowork/internal/presence"
	"github.com/Iron-Ham/cowork/internal/session"
)

// Config holds required dependencies for creating a Hub.
type Config struct {
	Settings *config.Config
	Logger   *logging.Logger
}

// Hub wires the collaboration components together.
// It owns the lifecycle of the heartbeat monitor and the broadcast sinks.
type Hub struct {
	mu      sync.RWMutex
	started bool
	closed  bool

	// Components
	bus         *event.Bus
	sinks       *broadcast.Fanout
	broadcaster broadcast.Broadcaster
	registry    *presence.Registry
	manager     *session.Manager
	monitor     *heartbeat.Monitor
	logger      *logging.Logger
}

// NewHub creates a Hub from cfg. Sinks that need connections, such as
// redis, are dialed here using ctx.
func NewHub(ctx context.Context, cfg Config, opts ...Option) (*Hub, error) {
	if cfg.Settings == nil {
		return nil, errors.New("coordination: Settings is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	hc := &hubConfig{}
	for _, opt := range opts {
		opt(hc)
	}

	bus := hc.bus
	if bus == nil {
		bus = event.NewBus(event.WithLogger(logger))
	}

	bcfg := cfg.Settings.Broadcast
	if !slices.Contains(bcfg.Sinks, "bus") {
		bcfg.Sinks = append(slices.Clone(bcfg.Sinks), "bus")
	}
	sinks, err := broadcast.FromConfig(ctx, bcfg, logger, bus)
	if err != nil {
		return nil, errors.Wrap(err, "coordination: build broadcasters")
	}
	var b broadcast.Broadcaster = sinks
	if len(hc.extraSinks) > 0 {
		b = broadcast.NewFanout(bcfg.MaxConcurrency, append([]broadcast.Broadcaster{sinks}, hc.extraSinks...)...)
	}

	var regOpts []presence.Option
	mgrOpts := []session.Option{session.WithBroadcaster(b), session.WithLogger(logger)}
	var hbOpts []heartbeat.Option
	if hc.now != nil {
		regOpts = append(regOpts, presence.WithClock(hc.now))
		mgrOpts = append(mgrOpts, session.WithClock(hc.now))
		hbOpts = append(hbOpts, heartbeat.WithClock(hc.now))
	}
	if hc.newID != nil {
		mgrOpts = append(mgrOpts, session.WithIDGenerator(hc.newID))
	}

	registry := presence.NewRegistry(regOpts...)
	manager := session.NewManager(registry, cfg.Settings.Session, mgrOpts...)

	var monitor *heartbeat.Monitor
	if cfg.Settings.Presence.HeartbeatEnabled && !hc.noHeartbeat {
		hbOpts = append(hbOpts,
			heartbeat.WithTimeout(cfg.Settings.Presence.HeartbeatTimeout()),
			heartbeat.WithInterval(cfg.Settings.Presence.SweepInterval()),
			heartbeat.WithLogger(logger),
		)
		monitor = heartbeat.NewMonitor(manager, bus, hbOpts...)
	}

	return &Hub{
		bus:         bus,
		sinks:       sinks,
		broadcaster: b,
		registry:    registry,
		manager:     manager,
		monitor:     monitor,
		logger:      logger.WithComponent("hub"),
	}, nil
}

// Manager returns the session manager.
func (h *Hub) Manager() *session.Manager { return h.manager }

// Presence returns the presence registry.
func (h *Hub) Presence() *presence.Registry { return h.registry }

// Bus returns the in-process event bus every envelope is published on.
func (h *Hub) Bus() *event.Bus { return h.bus }

// Broadcaster returns the broadcaster the manager delivers envelopes to.
func (h *Hub) Broadcaster() broadcast.Broadcaster { return h.broadcaster }

// Monitor returns the heartbeat monitor, or nil when heartbeats are disabled.
func (h *Hub) Monitor() *heartbeat.Monitor { return h.monitor }

// Heartbeat records a heartbeat from userID in sessionID.
func (h *Hub) Heartbeat(sessionID, userID string) error {
	if err := h.manager.Heartbeat(sessionID, userID); err != nil {
		return err
	}
	if h.monitor != nil {
		h.monitor.Beat(sessionID, userID)
	}
	return nil
}

// Start begins the heartbeat monitor. Starting a running hub is a no-op.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.New("coordination: hub is closed")
	}
	if h.started {
		return nil
	}
	if h.monitor != nil {
		h.monitor.Start(ctx)
	}
	h.started = true
	h.logger.Info("hub started", "heartbeat", h.monitor != nil, "sinks", h.sinks.Len())
	return nil
}

// Stop stops the heartbeat monitor. It is idempotent.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}
	if h.monitor != nil {
		h.monitor.Stop()
	}
	h.started = false
	h.logger.Info("hub stopped")
	return nil
}

// Close stops the hub and releases the broadcast sinks' connections.
// A closed hub cannot be restarted.
func (h *Hub) Close() error {
	if err := h.Stop(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.sinks.Close()
}

// Running returns whether the hub is currently started.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}
