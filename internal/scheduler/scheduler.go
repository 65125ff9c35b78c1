// Package scheduler provides a cooperative run queue: units of work are
// enqueued with zero minimum delay and executed one at a time, in enqueue
// order, after the scheduling call stack has returned. It backs the
// asynchronous delivery semantics of the streaming package.
package scheduler

import "sync"

// Scheduler executes scheduled functions in FIFO order on a single worker
// goroutine. It is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
}

// New creates and starts a Scheduler.
func New() *Scheduler {
	s := &Scheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Schedule enqueues fn for execution after all previously scheduled work.
// It never blocks. Scheduling onto a stopped Scheduler is a no-op.
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop drains pending work and shuts the worker down. It blocks until every
// function scheduled before Stop has run. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	<-s.done
}

// run is the worker loop. It drains the queue in order and exits once the
// scheduler is stopped and the queue is empty.
func (s *Scheduler) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.wake
			continue
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}
