// Package event defines the envelopes that describe session changes and an
// in-process bus to deliver them.
//
// Every mutation the session manager performs is announced as an [Envelope]:
// the session it concerns, what happened, who caused it, and a per-session
// sequence number. Envelopes leave the process through broadcasters; inside
// the process, components such as the heartbeat monitor observe them through
// the [Bus].
//
// # Delivery
//
// The bus is synchronous. Handlers for the envelope's kind run first, then
// wildcard handlers, each group in registration order. A panicking handler is
// recovered and logged and does not stop delivery to the remaining handlers.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	id := bus.Subscribe(event.UserLeft, func(env event.Envelope) {
//	    fmt.Println(env.Origin, "left", env.SessionID)
//	})
//	defer bus.Unsubscribe(id)
//
//	bus.Publish(event.Envelope{SessionID: "s1", Kind: event.UserLeft, Origin: "bob"})
package event
