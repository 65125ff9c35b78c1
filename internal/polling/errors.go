package polling

import (
	"errors"
	"fmt"
	"time"
)

// ErrObserveReused is returned when Observe is called more than once on the
// same client. Each observation requires a fresh client.
var ErrObserveReused = errors.New("polling: observe already called on this client")

// ConfigError reports an invalid or missing option at construction time.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("polling: invalid configuration: %s %s", e.Field, e.Reason)
}

// TimeoutError reports that the configured timeout elapsed before the probe
// observed a completed result.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling: timed out after %s (%d attempts)", e.Timeout, e.Attempts)
}

// IsTimeout reports whether err is a polling timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
