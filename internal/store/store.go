// Package store defines persistence for watches and their delivered
// messages, with a SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/prath-devops/sfdx-core/internal/model"
)

// ErrInvalidTransition is returned when a watch status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// WatchStats holds aggregate observation statistics.
type WatchStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByMode   map[string]int `json:"count_by_mode"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for watches.
type Store interface {
	CreateWatch(ctx context.Context, w *model.Watch) error
	GetWatch(ctx context.Context, id string) (*model.Watch, error)
	ListWatches(ctx context.Context, limit, offset int) ([]*model.Watch, int, error)
	UpdateWatchStatus(ctx context.Context, id, status string) error
	UpdateWatch(ctx context.Context, w *model.Watch) error
	GetWatchStats(ctx context.Context) (*WatchStats, error)
	InsertMessage(ctx context.Context, watchID string, seq int, body string) error
	GetMessages(ctx context.Context, watchID string) ([]model.WatchMessage, error)
	Close() error
}
