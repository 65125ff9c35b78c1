package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prath-devops/sfdx-core/internal/model"

	_ "modernc.org/sqlite"
)

const createWatchesTable = `
CREATE TABLE IF NOT EXISTS watches (
    id           TEXT PRIMARY KEY,
    mode         TEXT NOT NULL,
    status       TEXT NOT NULL,
    target       TEXT,
    channel      TEXT,
    frequency_ms INTEGER,
    timeout_ms   INTEGER,
    attempts     INTEGER,
    payload      TEXT,
    error        TEXT,
    duration_ms  INTEGER,
    created_at   DATETIME NOT NULL,
    started_at   DATETIME,
    finished_at  DATETIME
)`

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS watch_messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    watch_id   TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    body       TEXT NOT NULL,
    created_at DATETIME NOT NULL
)`

// ErrNotFound is returned when a watch is not found.
var ErrNotFound = errors.New("watch not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createWatchesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create watches table: %w", err)
	}

	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create watch_messages table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateWatch inserts a new watch record.
func (s *SQLiteStore) CreateWatch(ctx context.Context, w *model.Watch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watches (
			id, mode, status, target, channel, frequency_ms, timeout_ms,
			attempts, payload, error, duration_ms, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Mode, w.Status, w.Target, w.Channel, w.FrequencyMS, w.TimeoutMS,
		w.Attempts, nullableJSON(w.Payload), w.Error, w.DurationMS, w.CreatedAt, w.StartedAt, w.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert watch: %w", err)
	}
	return nil
}

// GetWatch retrieves a watch by ID.
func (s *SQLiteStore) GetWatch(ctx context.Context, id string) (*model.Watch, error) {
	w, err := scanWatch(s.db.QueryRowContext(ctx,
		`SELECT id, mode, status, target, channel, frequency_ms, timeout_ms,
			attempts, payload, error, duration_ms, created_at, started_at, finished_at
		FROM watches WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watch: %w", err)
	}
	return w, nil
}

// ListWatches returns a paginated list of watches ordered by created_at DESC,
// along with the total count of all watches.
func (s *SQLiteStore) ListWatches(ctx context.Context, limit, offset int) ([]*model.Watch, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM watches").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count watches: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, mode, status, target, channel, frequency_ms, timeout_ms,
			attempts, payload, error, duration_ms, created_at, started_at, finished_at
		FROM watches ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list watches: %w", err)
	}
	defer rows.Close()

	var watches []*model.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan watch: %w", err)
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate watches: %w", err)
	}

	return watches, total, nil
}

// UpdateWatchStatus transitions a watch to the given status, enforcing the
// lifecycle. Terminal statuses also set finished_at.
func (s *SQLiteStore) UpdateWatchStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM watches WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read watch status: %w", err)
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if model.TerminalStatus(status) {
		_, err = tx.ExecContext(ctx,
			"UPDATE watches SET status = ?, finished_at = ? WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE watches SET status = ? WHERE id = ?",
			status, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update watch status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateWatch applies a terminal outcome to a watch: status plus result
// fields. The transition is validated against the current status.
func (s *SQLiteStore) UpdateWatch(ctx context.Context, w *model.Watch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM watches WHERE id = ?", w.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read watch status: %w", err)
	}
	if !model.ValidTransition(current, w.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, w.Status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE watches SET
			status = ?, attempts = ?, payload = ?, error = ?, duration_ms = ?,
			started_at = ?, finished_at = ?
		WHERE id = ?`,
		w.Status, w.Attempts, nullableJSON(w.Payload), w.Error, w.DurationMS,
		w.StartedAt, w.FinishedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update watch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetWatchStats returns aggregate counts and the average duration of
// finished watches.
func (s *SQLiteStore) GetWatchStats(ctx context.Context) (*WatchStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &WatchStats{
		CountByStatus: make(map[string]int),
		CountByMode:   make(map[string]int),
	}

	rows, err := tx.QueryContext(ctx, "SELECT status, COUNT(*) FROM watches GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	rows, err = tx.QueryContext(ctx, "SELECT mode, COUNT(*) FROM watches GROUP BY mode")
	if err != nil {
		return nil, fmt.Errorf("count by mode: %w", err)
	}
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan mode count: %w", err)
		}
		stats.CountByMode[mode] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mode counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM watches WHERE duration_ms IS NOT NULL",
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}

// InsertMessage persists one delivered message for a watch.
func (s *SQLiteStore) InsertMessage(ctx context.Context, watchID string, seq int, body string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO watch_messages (watch_id, seq, body, created_at) VALUES (?, ?, ?, ?)",
		watchID, seq, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessages returns all messages delivered to a watch, in delivery order.
func (s *SQLiteStore) GetMessages(ctx context.Context, watchID string) ([]model.WatchMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, watch_id, seq, body, created_at
		FROM watch_messages WHERE watch_id = ? ORDER BY seq ASC`, watchID,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.WatchMessage
	for rows.Next() {
		var m model.WatchMessage
		if err := rows.Scan(&m.ID, &m.WatchID, &m.Seq, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanWatch.
type scanner interface {
	Scan(dest ...any) error
}

func scanWatch(sc scanner) (*model.Watch, error) {
	w := &model.Watch{}
	var payload sql.NullString
	err := sc.Scan(
		&w.ID, &w.Mode, &w.Status, &w.Target, &w.Channel, &w.FrequencyMS, &w.TimeoutMS,
		&w.Attempts, &payload, &w.Error, &w.DurationMS, &w.CreatedAt, &w.StartedAt, &w.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		w.Payload = []byte(payload.String)
	}
	return w, nil
}

// nullableJSON stores an absent payload as NULL rather than an empty string.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
