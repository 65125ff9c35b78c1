package streaming

import (
	"sync"

	"github.com/prath-devops/sfdx-core/internal/scheduler"
)

// Outcome selects which terminal lifecycle path a mock subscription takes.
type Outcome int

const (
	// OutcomeDeliver establishes the subscription and replays the playlist.
	OutcomeDeliver Outcome = iota
	// OutcomeFail rejects the subscription through the error path.
	OutcomeFail
)

// MockOptions scripts a MockTransport. Immutable once bound.
type MockOptions struct {
	// URL is the target channel endpoint the mock pretends to talk to.
	URL string
	// SubscriberID correlates the default message when no playlist is set.
	SubscriberID string
	// Outcome selects the success or failure path.
	Outcome Outcome
	// Error is delivered on the failure path; nil falls back to a default
	// SubscriptionError.
	Error error
	// Playlist is the ordered message sequence replayed on the success path.
	// Empty means a single default message correlated to SubscriberID.
	Playlist []Message
}

// MockTransport simulates a push transport: the handshake callback and every
// message delivery are independently scheduled units of work on a cooperative
// run queue, so delivery is asynchronous but strictly ordered.
type MockTransport struct {
	opts  MockOptions
	sched *scheduler.Scheduler

	mu           sync.Mutex
	headers      map[string]string
	disabled     []string
	extensions   []any
	disconnected bool

	stopOnce sync.Once
}

// Compile-time interface satisfaction check.
var _ Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock transport replaying the scripted options.
func NewMockTransport(opts MockOptions) *MockTransport {
	return &MockTransport{
		opts:    opts,
		sched:   scheduler.New(),
		headers: make(map[string]string),
	}
}

// Handshake schedules fn for asynchronous invocation and returns without
// blocking.
func (m *MockTransport) Handshake(fn func()) {
	m.sched.Schedule(fn)
}

// Subscribe returns a live handle immediately. The scripted outcome fires
// asynchronously: the success path emits the complete event and then delivers
// each playlist message as its own scheduled unit, in playlist order; the
// failure path fires the error path exactly once.
func (m *MockTransport) Subscribe(channel string, onMessage func(Message)) *Subscription {
	sub := NewSubscription(channel)

	m.mu.Lock()
	disconnected := m.disconnected
	m.mu.Unlock()
	if disconnected {
		// The run queue may already be draining; resolve the handle directly.
		sub.Fail(ErrDisconnected)
		return sub
	}

	m.sched.Schedule(func() {
		if m.opts.Outcome == OutcomeFail {
			err := m.opts.Error
			if err == nil {
				err = &SubscriptionError{Channel: channel, Reason: "rejected by server"}
			}
			sub.Fail(err)
			return
		}

		sub.Complete()

		playlist := m.opts.Playlist
		if len(playlist) == 0 {
			playlist = []Message{defaultMessage(m.opts.SubscriberID, channel)}
		}
		// Each delivery is its own unit of work; the run queue's FIFO order
		// preserves playlist order.
		for _, msg := range playlist {
			msg := msg
			m.sched.Schedule(func() { onMessage(msg) })
		}
	})

	return sub
}

// Disconnect resolves immediately and is idempotent. Work already scheduled
// is still drained.
func (m *MockTransport) Disconnect() error {
	m.mu.Lock()
	m.disconnected = true
	m.mu.Unlock()

	// Drain on a separate goroutine: Disconnect may be called from inside a
	// scheduled handler, and Stop blocks until the worker exits.
	m.stopOnce.Do(func() {
		go m.sched.Stop()
	})
	return nil
}

// AddExtension accepts an extension registration. No-op.
func (m *MockTransport) AddExtension(ext any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extensions = append(m.extensions, ext)
}

// Disable accepts a feature toggle. No-op.
func (m *MockTransport) Disable(feature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled = append(m.disabled, feature)
}

// SetHeader accepts an outgoing header. No-op.
func (m *MockTransport) SetHeader(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[name] = value
}

// defaultMessage is delivered when no playlist is configured.
func defaultMessage(subscriberID, channel string) Message {
	return Message{
		"channel":  channel,
		"clientId": subscriberID,
		"data":     map[string]any{"event": "completed"},
	}
}
