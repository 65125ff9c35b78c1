package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prath-devops/sfdx-core/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestWatch() *model.Watch {
	freq := int64(90)
	timeout := int64(300)
	return &model.Watch{
		ID:          model.NewID(),
		Mode:        model.ModePoll,
		Status:      model.StatusPending,
		Target:      "https://ops.example.test/status/42",
		FrequencyMS: &freq,
		TimeoutMS:   &timeout,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateAndGetWatch(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWatch()

	if err := s.CreateWatch(context.Background(), w); err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}

	got, err := s.GetWatch(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("GetWatch: %v", err)
	}
	if got.ID != w.ID {
		t.Errorf("ID = %q, want %q", got.ID, w.ID)
	}
	if got.Mode != model.ModePoll {
		t.Errorf("Mode = %q, want poll", got.Mode)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Target != w.Target {
		t.Errorf("Target = %q, want %q", got.Target, w.Target)
	}
	if got.FrequencyMS == nil || *got.FrequencyMS != 90 {
		t.Errorf("FrequencyMS = %v, want 90", got.FrequencyMS)
	}
	if got.Payload != nil {
		t.Errorf("Payload = %q, want nil", got.Payload)
	}
}

func TestGetWatchNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetWatch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetWatch error = %v, want ErrNotFound", err)
	}
}

func TestListWatchesPagination(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		w := makeTestWatch()
		w.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.CreateWatch(context.Background(), w); err != nil {
			t.Fatalf("CreateWatch #%d: %v", i, err)
		}
	}

	watches, total, err := s.ListWatches(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("ListWatches: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(watches) != 2 {
		t.Errorf("len = %d, want 2", len(watches))
	}

	watches, _, err = s.ListWatches(context.Background(), 10, 4)
	if err != nil {
		t.Fatalf("ListWatches offset: %v", err)
	}
	if len(watches) != 1 {
		t.Errorf("len at offset 4 = %d, want 1", len(watches))
	}
}

func TestListWatchesOrdering(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC()
	var ids []string
	for i := 0; i < 3; i++ {
		w := makeTestWatch()
		w.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		ids = append(ids, w.ID)
		if err := s.CreateWatch(context.Background(), w); err != nil {
			t.Fatalf("CreateWatch: %v", err)
		}
	}

	watches, _, err := s.ListWatches(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListWatches: %v", err)
	}
	if len(watches) != 3 {
		t.Fatalf("len = %d, want 3", len(watches))
	}
	// Newest first.
	if watches[0].ID != ids[2] || watches[2].ID != ids[0] {
		t.Errorf("list not ordered by created_at DESC")
	}
}

func TestUpdateWatchStatusLifecycle(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWatch()
	if err := s.CreateWatch(context.Background(), w); err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}

	if err := s.UpdateWatchStatus(context.Background(), w.ID, model.StatusRunning); err != nil {
		t.Fatalf("to running: %v", err)
	}
	if err := s.UpdateWatchStatus(context.Background(), w.ID, model.StatusCompleted); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	got, _ := s.GetWatch(context.Background(), w.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("terminal status should set finished_at")
	}
}

func TestUpdateWatchStatusInvalidTransition(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWatch()
	if err := s.CreateWatch(context.Background(), w); err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}

	// pending -> completed skips running.
	err := s.UpdateWatchStatus(context.Background(), w.ID, model.StatusCompleted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateWatchStatusTerminalCannotTransition(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWatch()
	if err := s.CreateWatch(context.Background(), w); err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}
	if err := s.UpdateWatchStatus(context.Background(), w.ID, model.StatusCanceled); err != nil {
		t.Fatalf("to canceled: %v", err)
	}

	err := s.UpdateWatchStatus(context.Background(), w.ID, model.StatusRunning)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestUpdateWatchStatusNotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateWatchStatus(context.Background(), "missing", model.StatusRunning)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateWatchOutcome(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWatch()
	if err := s.CreateWatch(context.Background(), w); err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}
	if err := s.UpdateWatchStatus(context.Background(), w.ID, model.StatusRunning); err != nil {
		t.Fatalf("to running: %v", err)
	}

	attempts := 4
	dur := 310
	started := time.Now().UTC().Add(-310 * time.Millisecond)
	finished := time.Now().UTC()
	update := &model.Watch{
		ID:         w.ID,
		Status:     model.StatusCompleted,
		Attempts:   &attempts,
		Payload:    json.RawMessage(`{"deployed":true}`),
		DurationMS: &dur,
		StartedAt:  &started,
		FinishedAt: &finished,
	}
	if err := s.UpdateWatch(context.Background(), update); err != nil {
		t.Fatalf("UpdateWatch: %v", err)
	}

	got, err := s.GetWatch(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("GetWatch: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if string(got.Payload) != `{"deployed":true}` {
		t.Errorf("Payload = %s", got.Payload)
	}
	if got.Attempts == nil || *got.Attempts != 4 {
		t.Errorf("Attempts = %v, want 4", got.Attempts)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("StartedAt/FinishedAt should be set")
	}
}

func TestUpdateWatchInvalidTransition(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWatch()
	if err := s.CreateWatch(context.Background(), w); err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}

	update := &model.Watch{ID: w.ID, Status: model.StatusTimedOut}
	err := s.UpdateWatch(context.Background(), update)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestGetWatchStats(t *testing.T) {
	s := newTestStore(t)

	setups := []struct {
		mode   string
		status string
		durMS  *int
	}{
		{model.ModePoll, model.StatusCompleted, intPtr(120)},
		{model.ModePoll, model.StatusTimedOut, intPtr(300)},
		{model.ModeSubscribe, model.StatusCompleted, intPtr(60)},
		{model.ModeSubscribe, model.StatusPending, nil},
	}

	for _, setup := range setups {
		w := makeTestWatch()
		w.Mode = setup.mode
		if err := s.CreateWatch(context.Background(), w); err != nil {
			t.Fatalf("CreateWatch: %v", err)
		}
		if setup.status == model.StatusPending {
			continue
		}
		if err := s.UpdateWatchStatus(context.Background(), w.ID, model.StatusRunning); err != nil {
			t.Fatalf("to running: %v", err)
		}
		update := &model.Watch{ID: w.ID, Status: setup.status, DurationMS: setup.durMS}
		if err := s.UpdateWatch(context.Background(), update); err != nil {
			t.Fatalf("UpdateWatch: %v", err)
		}
	}

	stats, err := s.GetWatchStats(context.Background())
	if err != nil {
		t.Fatalf("GetWatchStats: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 2 {
		t.Errorf("completed count = %d, want 2", stats.CountByStatus[model.StatusCompleted])
	}
	if stats.CountByMode[model.ModePoll] != 2 {
		t.Errorf("poll count = %d, want 2", stats.CountByMode[model.ModePoll])
	}
	if want := (120.0 + 300.0 + 60.0) / 3.0; stats.AvgDurationMS != want {
		t.Errorf("AvgDurationMS = %v, want %v", stats.AvgDurationMS, want)
	}
}

func TestGetWatchStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetWatchStats(context.Background())
	if err != nil {
		t.Fatalf("GetWatchStats: %v", err)
	}
	if stats.Total != 0 || stats.AvgDurationMS != 0 {
		t.Errorf("stats = %+v, want zeroes", stats)
	}
}

func TestInsertAndGetMessages(t *testing.T) {
	s := newTestStore(t)
	w := makeTestWatch()
	if err := s.CreateWatch(context.Background(), w); err != nil {
		t.Fatalf("CreateWatch: %v", err)
	}

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"seq":%d}`, i)
		if err := s.InsertMessage(context.Background(), w.ID, i, body); err != nil {
			t.Fatalf("InsertMessage #%d: %v", i, err)
		}
	}

	msgs, err := s.GetMessages(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	for i, m := range msgs {
		if m.Seq != i {
			t.Errorf("msgs[%d].Seq = %d, want %d", i, m.Seq, i)
		}
		if m.WatchID != w.ID {
			t.Errorf("msgs[%d].WatchID = %q", i, m.WatchID)
		}
	}
}

func TestGetMessagesIsolation(t *testing.T) {
	s := newTestStore(t)
	w1, w2 := makeTestWatch(), makeTestWatch()
	for _, w := range []*model.Watch{w1, w2} {
		if err := s.CreateWatch(context.Background(), w); err != nil {
			t.Fatalf("CreateWatch: %v", err)
		}
	}

	if err := s.InsertMessage(context.Background(), w1.ID, 0, `{"for":"w1"}`); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	msgs, err := s.GetMessages(context.Background(), w2.ID)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("w2 has %d messages, want 0", len(msgs))
	}
}

func TestMigrationIdempotency(t *testing.T) {
	s := newTestStore(t)

	// Re-running the migrations on the same connection must not error.
	if _, err := s.db.Exec(createWatchesTable); err != nil {
		t.Fatalf("re-run watches migration: %v", err)
	}
	if _, err := s.db.Exec(createMessagesTable); err != nil {
		t.Fatalf("re-run messages migration: %v", err)
	}
}

func intPtr(v int) *int { return &v }
