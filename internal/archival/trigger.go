package archival

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/storage"
)

// counterName is the journal counter holding interactions since the last successful cycle.
const counterName = "interactions_since_archival"

// Runner runs one archival cycle.
type Runner interface {
	RunOnce(ctx context.Context) (CycleReport, error)
}

// Trigger decides when to run a cycle: when the interaction count since the last successful
// cycle reaches the threshold, on a cron schedule, or on demand.
type Trigger struct {
	runner    Runner
	journal   storage.JournalStore
	threshold int64
	logger    *slog.Logger

	mu      sync.Mutex
	pending int64
	cron    *cron.Cron
}

// NewTrigger creates a Trigger. With a journal the interaction count survives restarts.
// A threshold <= 0 disables count-based triggering.
func NewTrigger(ctx context.Context, runner Runner, journal storage.JournalStore, threshold int, logger *slog.Logger) (*Trigger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Trigger{runner: runner, journal: journal, threshold: int64(threshold), logger: logger}
	if journal != nil {
		n, err := journal.GetCounter(ctx, counterName)
		if err != nil {
			return nil, fmt.Errorf("failed to load interaction counter: %w", err)
		}
		t.pending = n
	}
	return t, nil
}

// Pending returns interactions counted since the last successful cycle.
func (t *Trigger) Pending() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Due reports whether the threshold has been reached.
func (t *Trigger) Due() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dueLocked()
}

func (t *Trigger) dueLocked() bool {
	return t.threshold > 0 && t.pending >= t.threshold
}

// RecordInteraction counts one interaction and reports whether a cycle is now due.
// The caller decides whether to call RunNow synchronously or in the background.
func (t *Trigger) RecordInteraction(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending++
	if t.journal != nil {
		if err := t.journal.SetCounter(ctx, counterName, t.pending); err != nil {
			return t.dueLocked(), fmt.Errorf("failed to persist interaction counter: %w", err)
		}
	}
	return t.dueLocked(), nil
}

// RunNow runs a cycle and, when no day failed to commit, discounts the interactions counted
// before the cycle started. Interactions recorded while it ran stay pending.
// Skipped days do not block the reset; they are retried by the next cycle.
func (t *Trigger) RunNow(ctx context.Context) (CycleReport, error) {
	seen := t.Pending()
	report, err := t.runner.RunOnce(ctx)
	if err != nil {
		return report, err
	}
	if report.Failed == 0 {
		t.consume(ctx, seen)
	}
	return report, nil
}

// MaybeRun runs a cycle if the threshold has been reached.
func (t *Trigger) MaybeRun(ctx context.Context) (CycleReport, bool, error) {
	if !t.Due() {
		return CycleReport{}, false, nil
	}
	report, err := t.RunNow(ctx)
	if errors.Is(err, ErrCycleInProgress) {
		return report, false, nil
	}
	return report, true, err
}

func (t *Trigger) consume(ctx context.Context, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = max(t.pending-n, 0)
	if t.journal != nil {
		if err := t.journal.SetCounter(ctx, counterName, t.pending); err != nil {
			contextutil.LoggerFromContext(ctx, t.logger).WarnContext(ctx, "failed to reset interaction counter", "error", err)
		}
	}
}

// Schedule runs cycles on a cron spec with a seconds field, e.g. "0 0 3 * * *".
// Call Stop to end the schedule.
func (t *Trigger) Schedule(spec string) error {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		if _, err := t.RunNow(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
			t.logger.Warn("scheduled archival cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid archival schedule %q: %w", spec, err)
	}

	t.mu.Lock()
	if t.cron != nil {
		t.cron.Stop()
	}
	t.cron = c
	t.mu.Unlock()

	c.Start()
	t.logger.Info("archival schedule started", "spec", spec)
	return nil
}

// Stop ends the cron schedule and waits for a running scheduled cycle to finish.
func (t *Trigger) Stop() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
