// Package coordination provides a Hub that wires the collaboration core
// together for one process.
//
// The Hub creates and owns:
//
//   - the presence registry shared by every session
//   - the session manager
//   - the in-process event bus and the broadcaster fan-out (log, bus, redis)
//   - the heartbeat monitor that evicts silent participants
//
// The bus is always one of the broadcast sinks so in-process observers such
// as the heartbeat monitor see every envelope.
//
// Usage:
//
//	hub, err := coordination.NewHub(ctx, coordination.Config{
//	    Settings: cfg,
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := hub.Start(ctx); err != nil {
//	    return err
//	}
//	defer hub.Close()
//
//	snap, err := hub.Manager().CreateSession(ctx, owner, session.ModeLiveShare, "", session.Overrides{})
package coordination
