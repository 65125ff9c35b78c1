// Package streaming observes a remote operation through a push-based message
// channel. A Transport provides the wire mechanics (handshake, subscribe,
// disconnect); the Channel wrapper drives the lifecycle and surfaces each
// delivered message to a caller-supplied handler. A scripted MockTransport
// replays a configured message sequence for tests and simulation.
package streaming

// Message is one opaque structured value delivered to a subscriber.
type Message map[string]any

// Transport is the contract the channel consumes from the network layer.
// Handshake must invoke its callback asynchronously and must not block the
// caller. Subscribe returns synchronously with a live Subscription handle;
// message delivery happens later via the handler. Disconnect is idempotent.
//
// AddExtension, Disable and SetHeader are configuration calls a transport
// must accept; no behavior beyond no-op success is required.
type Transport interface {
	Handshake(fn func())
	Subscribe(channel string, onMessage func(Message)) *Subscription
	Disconnect() error
	AddExtension(ext any)
	Disable(feature string)
	SetHeader(name, value string)
}
