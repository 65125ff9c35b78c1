// Package monitor drives watches to their terminal outcome. A submitted
// watch is persisted as pending and then observed in a goroutine: poll-mode
// watches run a polling client against the watch target, subscribe-mode
// watches listen on a push channel and record every delivered message.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prath-devops/sfdx-core/internal/duration"
	"github.com/prath-devops/sfdx-core/internal/model"
	"github.com/prath-devops/sfdx-core/internal/polling"
	"github.com/prath-devops/sfdx-core/internal/store"
	"github.com/prath-devops/sfdx-core/internal/streaming"
)

// Defaults applied when a watch omits frequency or timeout.
const (
	DefaultFrequencyMS = 1000
	DefaultTimeoutMS   = 30_000
)

// TransportFactory builds the push transport for a subscribe-mode watch.
type TransportFactory func(w *model.Watch) streaming.Transport

// Monitor orchestrates asynchronous watch observation.
type Monitor struct {
	store      store.Store
	probes     ProbeFactory
	transports TransportFactory
	logger     *slog.Logger
	broker     *MessageBroker
	wg         sync.WaitGroup

	defaultFrequencyMS int64
	defaultTimeoutMS   int64

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewMonitor creates a new watch monitor.
func NewMonitor(s store.Store, probes ProbeFactory, transports TransportFactory, logger *slog.Logger) *Monitor {
	return &Monitor{
		store:              s,
		probes:             probes,
		transports:         transports,
		logger:             logger,
		broker:             NewMessageBroker(),
		cancels:            make(map[string]context.CancelFunc),
		defaultFrequencyMS: DefaultFrequencyMS,
		defaultTimeoutMS:   DefaultTimeoutMS,
	}
}

// SetDefaults overrides the frequency and timeout applied to watches that
// omit their own values. Non-positive arguments leave the current value
// unchanged.
func (m *Monitor) SetDefaults(frequencyMS, timeoutMS int64) {
	if frequencyMS > 0 {
		m.defaultFrequencyMS = frequencyMS
	}
	if timeoutMS > 0 {
		m.defaultTimeoutMS = timeoutMS
	}
}

// Broker returns the monitor's message broker for SSE subscription.
func (m *Monitor) Broker() *MessageBroker {
	return m.broker
}

// Submit fills in defaults, creates the watch record and launches
// asynchronous observation in a goroutine. The watch is stored with status
// "pending" before returning. The goroutine operates on a copy of the watch
// to avoid data races with the caller.
func (m *Monitor) Submit(ctx context.Context, w *model.Watch) error {
	if w.FrequencyMS == nil || *w.FrequencyMS <= 0 {
		freq := m.defaultFrequencyMS
		w.FrequencyMS = &freq
	}
	if w.TimeoutMS == nil || *w.TimeoutMS <= 0 {
		timeout := m.defaultTimeoutMS
		w.TimeoutMS = &timeout
	}

	if err := m.store.CreateWatch(ctx, w); err != nil {
		return fmt.Errorf("create watch: %w", err)
	}

	wCopy := *w
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(&wCopy)
	}()

	return nil
}

// Cancel stops a running watch. It reports whether a running observation was
// found; the watch settles to "canceled" asynchronously.
func (m *Monitor) Cancel(id string) bool {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until all in-flight watch goroutines complete.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// execute runs the watch lifecycle in a goroutine: pending -> running ->
// completed/failed/timed_out/canceled.
func (m *Monitor) execute(w *model.Watch) {
	// Close the message stream when observation finishes, regardless of outcome.
	defer m.broker.Close(w.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.mu.Lock()
	m.cancels[w.ID] = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.cancels, w.ID)
		m.mu.Unlock()
	}()

	if err := m.store.UpdateWatchStatus(ctx, w.ID, model.StatusRunning); err != nil {
		m.logger.Error("failed to transition to running", "watch_id", w.ID, "error", err)
		m.finish(w, model.StatusFailed, nil, nil, fmt.Sprintf("failed to start: %v", err), nil)
		return
	}

	start := time.Now()

	switch w.Mode {
	case model.ModeSubscribe:
		m.executeSubscribe(ctx, w, start)
	default:
		m.executePoll(ctx, w, start)
	}
}

// executePoll drives a polling client against the watch target.
func (m *Monitor) executePoll(ctx context.Context, w *model.Watch, start time.Time) {
	probe := m.probes(w.Target)
	var attempts atomic.Int32
	counted := func(ctx context.Context) (polling.StatusResult, error) {
		attempts.Add(1)
		probeAttemptsTotal.Inc()
		return probe(ctx)
	}

	client, err := polling.New(polling.Options{
		Probe:     counted,
		Frequency: duration.Milliseconds(*w.FrequencyMS),
		Timeout:   duration.Milliseconds(*w.TimeoutMS),
		Logger:    m.logger,
	})
	if err != nil {
		m.finish(w, model.StatusFailed, &start, nil, err.Error(), nil)
		return
	}

	payload, err := client.Observe(ctx)
	n := int(attempts.Load())

	switch {
	case err == nil:
		m.finish(w, model.StatusCompleted, &start, marshalPayload(payload), "", &n)
	case polling.IsTimeout(err):
		m.finish(w, model.StatusTimedOut, &start, nil, err.Error(), &n)
	case errors.Is(err, context.Canceled):
		m.finish(w, model.StatusCanceled, &start, nil, "observation canceled", &n)
	default:
		// Probe failure, forwarded by the client unchanged.
		m.finish(w, model.StatusFailed, &start, nil, err.Error(), &n)
	}
}

// executeSubscribe listens on the watch channel and records every delivered
// message. The watch completes when a message carries the "completed" event;
// the overall timeout otherwise settles it as timed out.
func (m *Monitor) executeSubscribe(ctx context.Context, w *model.Watch, start time.Time) {
	transport := m.transports(w)
	channel, err := streaming.NewChannel(streaming.Options{
		Transport:    transport,
		URL:          w.Target,
		SubscriberID: w.ID,
		Logger:       m.logger,
	})
	if err != nil {
		m.finish(w, model.StatusFailed, &start, nil, err.Error(), nil)
		return
	}
	defer channel.Disconnect()

	ctx, cancel := context.WithTimeout(ctx, duration.Milliseconds(*w.TimeoutMS).Std())
	defer cancel()

	terminal := make(chan streaming.Message, 1)
	var seq atomic.Int32
	onMessage := func(msg streaming.Message) {
		body, err := json.Marshal(msg)
		if err != nil {
			m.logger.Error("failed to encode message", "watch_id", w.ID, "error", err)
			return
		}
		currentSeq := int(seq.Add(1) - 1)
		if err := m.store.InsertMessage(ctx, w.ID, currentSeq, string(body)); err != nil {
			m.logger.Error("failed to persist message", "watch_id", w.ID, "seq", currentSeq, "error", err)
		}
		m.broker.Publish(w.ID, string(body))
		messagesDeliveredTotal.Inc()

		if terminalMessage(msg) {
			select {
			case terminal <- msg:
			default:
			}
		}
	}

	if err := channel.Listen(ctx, w.Channel, onMessage); err != nil {
		if ctx.Err() != nil {
			m.finishFromContext(ctx, w, start, int(seq.Load()))
			return
		}
		n := int(seq.Load())
		m.finish(w, model.StatusFailed, &start, nil, err.Error(), &n)
		return
	}

	select {
	case msg := <-terminal:
		body, _ := json.Marshal(msg)
		n := int(seq.Load())
		m.finish(w, model.StatusCompleted, &start, body, "", &n)
	case <-ctx.Done():
		m.finishFromContext(ctx, w, start, int(seq.Load()))
	}
}

// finishFromContext maps context termination to canceled or timed out.
func (m *Monitor) finishFromContext(ctx context.Context, w *model.Watch, start time.Time, messages int) {
	if ctx.Err() == context.DeadlineExceeded {
		msg := fmt.Sprintf("no completion event within %dms", *w.TimeoutMS)
		m.finish(w, model.StatusTimedOut, &start, nil, msg, &messages)
		return
	}
	m.finish(w, model.StatusCanceled, &start, nil, "observation canceled", &messages)
}

// finish records the terminal outcome of a watch. startedAt may be nil if
// observation never started.
func (m *Monitor) finish(w *model.Watch, status string, startedAt *time.Time, payload json.RawMessage, errMsg string, attempts *int) {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(time.Since(*startedAt).Milliseconds())
		watchDuration.WithLabelValues(w.Mode).Observe(time.Since(*startedAt).Seconds())
	}
	watchesFinishedTotal.WithLabelValues(w.Mode, status).Inc()

	update := &model.Watch{
		ID:         w.ID,
		Status:     status,
		Attempts:   attempts,
		Payload:    payload,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	if err := m.store.UpdateWatch(context.Background(), update); err != nil {
		m.logger.Error("failed to record watch outcome", "watch_id", w.ID, "status", status, "error", err)
	}
}

// terminalMessage reports whether a delivered message signals completion of
// the monitored operation, either at the top level or under "data".
func terminalMessage(msg streaming.Message) bool {
	if ev, ok := msg["event"].(string); ok && ev == "completed" {
		return true
	}
	if data, ok := msg["data"].(map[string]any); ok {
		if ev, ok := data["event"].(string); ok && ev == "completed" {
			return true
		}
	}
	return false
}

// marshalPayload renders an opaque probe payload as JSON for persistence.
func marshalPayload(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(fmt.Sprintf("%q", fmt.Sprint(payload)))
	}
	return body
}
