package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"semantic-memory/internal/memerr"
)

// JournalStore defines the interface for archival journal operations.
type JournalStore interface {
	// StartCycle records a running cycle.
	StartCycle(ctx context.Context, id string, startedAt time.Time) error
	// FinishCycle stores the final status and counts of a cycle started with StartCycle.
	FinishCycle(ctx context.Context, cycle Cycle) error
	// RecordDay stores the outcome of one candidate day.
	RecordDay(ctx context.Context, rec DayRecord) error
	// RecentCycles returns up to limit cycles, newest first.
	RecentCycles(ctx context.Context, limit int) ([]Cycle, error)
	// CycleDays returns the day outcomes of a cycle in the order they were recorded.
	CycleDays(ctx context.Context, cycleID string) ([]DayRecord, error)
	// GetCounter returns a named counter, 0 if it was never set.
	GetCounter(ctx context.Context, name string) (int64, error)
	// SetCounter overwrites a named counter.
	SetCounter(ctx context.Context, name string, value int64) error
	// AddCounter adds delta to a named counter and returns the new value.
	AddCounter(ctx context.Context, name string, delta int64) (int64, error)
}

// JournalRepo implements JournalStore on SQLite.
type JournalRepo struct {
	db *sql.DB
}

var _ JournalStore = (*JournalRepo)(nil)

// NewJournalRepo creates a new JournalRepo.
func NewJournalRepo(db *sql.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// StartCycle records a running cycle.
func (r *JournalRepo) StartCycle(ctx context.Context, id string, startedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO archival_cycles (id, started_at, status) VALUES (?, ?, ?)",
		id, formatTime(startedAt), CycleRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to start cycle: %w", err)
	}
	return nil
}

// FinishCycle stores the final status and counts of a cycle.
// Returns memerr.ErrNotFound if the cycle was never started.
func (r *JournalRepo) FinishCycle(ctx context.Context, cycle Cycle) error {
	finished := time.Now()
	if cycle.FinishedAt != nil {
		finished = *cycle.FinishedAt
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE archival_cycles
		 SET finished_at = ?, status = ?, committed = ?, skipped = ?, failed = ?, error = ?
		 WHERE id = ?`,
		formatTime(finished), cycle.Status, cycle.Committed, cycle.Skipped, cycle.Failed, cycle.Error, cycle.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish cycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish cycle: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("cycle %s: %w", cycle.ID, memerr.ErrNotFound)
	}
	return nil
}

// RecordDay stores the outcome of one candidate day.
func (r *JournalRepo) RecordDay(ctx context.Context, rec DayRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO archival_days (cycle_id, day, outcome, entries, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.CycleID, rec.Day, rec.Outcome, rec.Entries, rec.Detail, formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("failed to record day: %w", err)
	}
	return nil
}

// RecentCycles returns up to limit cycles, newest first.
func (r *JournalRepo) RecentCycles(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, committed, skipped, failed, error
		 FROM archival_cycles ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var (
			c          Cycle
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&c.ID, &startedAt, &finishedAt, &c.Status, &c.Committed, &c.Skipped, &c.Failed, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		if c.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		if finishedAt.Valid {
			ft, err := parseTime(finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse finished_at: %w", err)
			}
			c.FinishedAt = &ft
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// CycleDays returns the day outcomes of a cycle in the order they were recorded.
func (r *JournalRepo) CycleDays(ctx context.Context, cycleID string) ([]DayRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT cycle_id, day, outcome, entries, detail, created_at FROM archival_days WHERE cycle_id = ? ORDER BY id",
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle days: %w", err)
	}
	defer rows.Close()

	var days []DayRecord
	for rows.Next() {
		var (
			d       DayRecord
			created string
		)
		if err := rows.Scan(&d.CycleID, &d.Day, &d.Outcome, &d.Entries, &d.Detail, &created); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		if d.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// GetCounter returns a named counter, 0 if it was never set.
func (r *JournalRepo) GetCounter(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, "SELECT value FROM counters WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	return value, nil
}

// SetCounter overwrites a named counter.
func (r *JournalRepo) SetCounter(ctx context.Context, name string, value int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO counters (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		name, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set counter %s: %w", name, err)
	}
	return nil
}

// AddCounter adds delta to a named counter and returns the new value.
func (r *JournalRepo) AddCounter(ctx context.Context, name string, delta int64) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = value + excluded.value
		 RETURNING value`,
		name, delta,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to add to counter %s: %w", name, err)
	}
	return value, nil
}
