package streaming

import (
	"context"
	"sync"
)

// Lifecycle is the terminal outcome of a Subscription. Exactly one of
// Delivered or Failed fires per subscription, never both.
type Lifecycle int

const (
	// LifecyclePending means no terminal event has fired yet.
	LifecyclePending Lifecycle = iota
	// LifecycleDelivered means the subscription was established.
	LifecycleDelivered
	// LifecycleFailed means the subscription was rejected.
	LifecycleFailed
)

// Subscription is a live handle for one push-channel observation session.
// Callbacks registered before the terminal event fire when it does, in
// registration order; callbacks registered after fire immediately.
type Subscription struct {
	channel string

	mu          sync.Mutex
	state       Lifecycle
	err         error
	completeFns []func()
	errorFns    []func(error)
	done        chan struct{}
}

// NewSubscription creates a pending handle for the named channel. Transport
// implementations resolve it with Complete or Fail.
func NewSubscription(channel string) *Subscription {
	return &Subscription{
		channel: channel,
		done:    make(chan struct{}),
	}
}

// Channel returns the channel name this subscription observes.
func (s *Subscription) Channel() string { return s.channel }

// State returns the current lifecycle state.
func (s *Subscription) State() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure error, or nil before the terminal event or after
// successful delivery.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnComplete registers fn to run when the subscription is established.
func (s *Subscription) OnComplete(fn func()) {
	s.mu.Lock()
	if s.state == LifecyclePending {
		s.completeFns = append(s.completeFns, fn)
		s.mu.Unlock()
		return
	}
	state := s.state
	s.mu.Unlock()

	if state == LifecycleDelivered {
		fn()
	}
}

// OnError registers fn to run if the subscription fails.
func (s *Subscription) OnError(fn func(error)) {
	s.mu.Lock()
	if s.state == LifecyclePending {
		s.errorFns = append(s.errorFns, fn)
		s.mu.Unlock()
		return
	}
	state, err := s.state, s.err
	s.mu.Unlock()

	if state == LifecycleFailed {
		fn(err)
	}
}

// Wait blocks until the terminal lifecycle event or context cancellation.
// It returns nil when the subscription was delivered, the subscription error
// when it failed, or ctx.Err().
func (s *Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete fires the "subscription complete" lifecycle event. Calls after
// the terminal event are ignored.
func (s *Subscription) Complete() {
	s.mu.Lock()
	if s.state != LifecyclePending {
		s.mu.Unlock()
		return
	}
	s.state = LifecycleDelivered
	fns := s.completeFns
	s.completeFns, s.errorFns = nil, nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	close(s.done)
}

// Fail fires the "subscription failed" lifecycle event with err. Calls after
// the terminal event are ignored.
func (s *Subscription) Fail(err error) {
	s.mu.Lock()
	if s.state != LifecyclePending {
		s.mu.Unlock()
		return
	}
	s.state = LifecycleFailed
	s.err = err
	fns := s.errorFns
	s.completeFns, s.errorFns = nil, nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
	close(s.done)
}
