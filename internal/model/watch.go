package model

import (
	"encoding/json"
	"time"
)

// Watch status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimedOut  = "timed_out"
	StatusCanceled  = "canceled"
)

// Watch mode constants.
const (
	ModePoll      = "poll"
	ModeSubscribe = "subscribe"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:  true,
		StatusFailed:   true,
		StatusCanceled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusTimedOut:  true,
		StatusCanceled:  true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TerminalStatus reports whether a watch in the given status is finished.
func TerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCanceled:
		return true
	}
	return false
}

// WatchMessage is a single persisted message delivered to a subscription watch.
type WatchMessage struct {
	ID        int64     `json:"id"`
	WatchID   string    `json:"watch_id"`
	Seq       int       `json:"seq"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Watch represents one observation of a remote operation: either a polled
// status probe or a push-channel subscription, driven to a single terminal
// outcome.
type Watch struct {
	ID          string          `json:"id"`
	Mode        string          `json:"mode"`
	Status      string          `json:"status"`
	Target      string          `json:"target,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	FrequencyMS *int64          `json:"frequency_ms,omitempty"`
	TimeoutMS   *int64          `json:"timeout_ms,omitempty"`
	Attempts    *int            `json:"attempts,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMS  *int            `json:"duration_ms,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}
