package streaming

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/prath-devops/sfdx-core/internal/duration"
)

// Options configures a Channel. Immutable once bound.
type Options struct {
	// Transport provides the wire mechanics. Required.
	Transport Transport
	// URL is the channel endpoint, recorded for logging. Required.
	URL string
	// SubscriberID identifies this subscriber. Required.
	SubscriberID string
	// HandshakeTimeout bounds Handshake. Optional; defaults to 10 seconds.
	HandshakeTimeout duration.Duration
	// Logger receives lifecycle records. Optional.
	Logger *slog.Logger
}

const defaultHandshakeTimeoutMS = 10_000

// Channel drives one push-channel observation session through the four-phase
// lifecycle: handshake, subscribe, deliver (or fail), disconnect.
type Channel struct {
	transport        Transport
	url              string
	subscriberID     string
	handshakeTimeout duration.Duration
	logger           *slog.Logger

	disconnectOnce sync.Once
	disconnectErr  error
}

// NewChannel validates opts and returns a ready channel.
func NewChannel(opts Options) (*Channel, error) {
	if opts.Transport == nil {
		return nil, &ConfigError{Field: "transport", Reason: "is required"}
	}
	if opts.URL == "" {
		return nil, &ConfigError{Field: "url", Reason: "is required"}
	}
	if opts.SubscriberID == "" {
		return nil, &ConfigError{Field: "subscriber id", Reason: "is required"}
	}

	handshakeTimeout := opts.HandshakeTimeout
	if !handshakeTimeout.IsPositive() {
		handshakeTimeout = duration.Milliseconds(defaultHandshakeTimeoutMS)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Channel{
		transport:        opts.Transport,
		url:              opts.URL,
		subscriberID:     opts.SubscriberID,
		handshakeTimeout: handshakeTimeout,
		logger:           logger,
	}, nil
}

// Handshake negotiates the transport connection and blocks until the
// transport confirms, the handshake timeout elapses, or ctx is cancelled.
func (c *Channel) Handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout.Std())
	defer cancel()

	done := make(chan struct{})
	c.transport.Handshake(func() { close(done) })

	select {
	case <-done:
		c.logger.Debug("handshake complete", "url", c.url, "subscriber", c.subscriberID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers onMessage for the named channel and returns the live
// handle synchronously. Delivery happens later via the handler.
func (c *Channel) Subscribe(channel string, onMessage func(Message)) *Subscription {
	sub := c.transport.Subscribe(channel, onMessage)
	sub.OnComplete(func() {
		c.logger.Debug("subscription complete", "channel", channel, "subscriber", c.subscriberID)
	})
	sub.OnError(func(err error) {
		c.logger.Debug("subscription failed", "channel", channel, "error", err)
	})
	return sub
}

// Listen is the blocking composition of the lifecycle: handshake, subscribe,
// then wait for the terminal subscription event. It returns nil once the
// subscription is established (delivery continues via onMessage), the
// subscription error on the failure path, or ctx.Err().
func (c *Channel) Listen(ctx context.Context, channel string, onMessage func(Message)) error {
	if err := c.Handshake(ctx); err != nil {
		return err
	}
	return c.Subscribe(channel, onMessage).Wait(ctx)
}

// Disconnect tears the transport down. It resolves immediately and is
// idempotent: repeated calls return the first result.
func (c *Channel) Disconnect() error {
	c.disconnectOnce.Do(func() {
		c.disconnectErr = c.transport.Disconnect()
		c.logger.Debug("disconnected", "url", c.url)
	})
	return c.disconnectErr
}
