package streaming

import (
	"errors"
	"fmt"
)

// ErrDisconnected is returned when subscribing through a transport that has
// already been disconnected.
var ErrDisconnected = errors.New("streaming: transport is disconnected")

// ConfigError reports an invalid or missing option at construction time.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("streaming: invalid configuration: %s %s", e.Field, e.Reason)
}

// SubscriptionError is the default error delivered on a subscription's
// failure path when no explicit error is configured.
type SubscriptionError struct {
	Channel string
	Reason  string
}

// Error implements the error interface.
func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("streaming: subscription to %q failed: %s", e.Channel, e.Reason)
}

// IsSubscriptionFailure reports whether err is a subscription failure.
func IsSubscriptionFailure(err error) bool {
	var se *SubscriptionError
	return errors.As(err, &se)
}
