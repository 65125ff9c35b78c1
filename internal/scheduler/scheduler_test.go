package scheduler_test

import (
	"sync"
	"testing"
	"time"

	"github.com/prath-devops/sfdx-core/internal/scheduler"
)

func TestExecutesInScheduleOrder(t *testing.T) {
	s := scheduler.New()
	defer s.Stop()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup

	const n = 100
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		s.Schedule(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range got {
		if v != i {
			t.Fatalf("execution order broken at index %d: got %d", i, v)
		}
	}
}

func TestScheduleIsNotSynchronous(t *testing.T) {
	s := scheduler.New()
	defer s.Stop()

	// The scheduled function blocks until the scheduling call has returned.
	// A synchronous implementation would deadlock here.
	release := make(chan struct{})
	ran := make(chan struct{})
	s.Schedule(func() {
		<-release
		close(ran)
	})
	close(release)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("scheduled work never ran")
	}
}

func TestStopDrainsPendingWork(t *testing.T) {
	s := scheduler.New()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		s.Schedule(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Errorf("drained %d of 10 scheduled functions", count)
	}
}

func TestScheduleAfterStopIsNoOp(t *testing.T) {
	s := scheduler.New()
	s.Stop()

	s.Schedule(func() {
		t.Error("function scheduled after Stop should not run")
	})
	time.Sleep(10 * time.Millisecond)

	// Stop again to confirm idempotence.
	s.Stop()
}
