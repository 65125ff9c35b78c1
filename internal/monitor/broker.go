package monitor

import "sync"

// subscriberBuffer is the channel buffer for each message subscriber.
// Messages are dropped if a subscriber falls this far behind.
const subscriberBuffer = 64

// MessageBroker fans delivered watch messages out to SSE subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after a watch finishes) receive a closed channel instead of
// blocking forever. Each marker is a few bytes, which is acceptable for the
// expected watch volume.
type MessageBroker struct {
	mu     sync.Mutex
	topics map[string]*watchTopic
}

type watchTopic struct {
	subs   map[int]chan string
	nextID int
	closed bool
}

// NewMessageBroker creates a new message broker.
func NewMessageBroker() *MessageBroker {
	return &MessageBroker{
		topics: make(map[string]*watchTopic),
	}
}

// Subscribe returns a channel that receives JSON-encoded messages for the
// given watch and an unsubscribe function. If the watch has already finished
// (Close was called), the returned channel is immediately closed.
func (b *MessageBroker) Subscribe(watchID string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[watchID]
	if !ok {
		t = &watchTopic{subs: make(map[int]chan string)}
		b.topics[watchID] = t
	}

	ch := make(chan string, subscriberBuffer)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a message body to all subscribers of the given watch.
// Messages are dropped for subscribers whose buffers are full.
func (b *MessageBroker) Publish(watchID string, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[watchID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- body:
		default:
			// Drop for slow subscribers to avoid blocking delivery.
		}
	}
}

// Close signals that no more messages will be published for the given watch.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *MessageBroker) Close(watchID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[watchID]
	if !ok {
		// Create a closed marker so late subscribers get a closed channel.
		b.topics[watchID] = &watchTopic{subs: make(map[int]chan string), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
