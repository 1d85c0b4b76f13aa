// Package archival compresses past days of conversation into embedded daily summaries.
package archival

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/convlog"
	"semantic-memory/internal/llm"
	"semantic-memory/internal/memerr"
	"semantic-memory/internal/storage"
	"semantic-memory/internal/vectorstore"
)

// ErrCycleInProgress is returned when RunOnce is called while another cycle runs.
var ErrCycleInProgress = errors.New("archival cycle already in progress")

// State is the pipeline's position in a cycle.
type State int32

const (
	Idle State = iota
	Collecting
	Summarizing
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Summarizing:
		return "summarizing"
	case Committing:
		return "committing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ConversationLog is the part of the conversation log the pipeline reads and prunes.
type ConversationLog interface {
	PastDayCandidates(minCount int) map[convlog.Date][]convlog.Entry
	PruneDates(ctx context.Context, dates []convlog.Date) (int, error)
	Generation() uint64
}

// Settings control summarization.
type Settings struct {
	MinDayEntries int
	UserName      string
	BotName       string
	Model         string
	Temperature   float32
	MaxTokens     int
}

// DayResult is the outcome of one candidate day.
type DayResult struct {
	Date    string             `json:"date"`
	Entries int                `json:"entries"`
	Outcome storage.DayOutcome `json:"outcome"`
	Pruned  int                `json:"pruned,omitempty"`
	Detail  string             `json:"detail,omitempty"`
}

// CycleReport summarizes one archival cycle.
type CycleReport struct {
	ID         string              `json:"id"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Status     storage.CycleStatus `json:"status"`
	Days       []DayResult         `json:"days"`
	Committed  int                 `json:"committed"`
	Skipped    int                 `json:"skipped"`
	Failed     int                 `json:"failed"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithJournal records every cycle and day outcome.
func WithJournal(j storage.JournalStore) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithCommitLock shares the lock that serializes commits with other whole-memory writers.
func WithCommitLock(l sync.Locker) Option {
	return func(p *Pipeline) { p.commitMu = l }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the time source used for report and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs archival cycles. At most one cycle runs at a time.
type Pipeline struct {
	log       ConversationLog
	store     vectorstore.VectorStore
	embedder  llm.Embedder
	generator llm.Generator
	journal   storage.JournalStore
	commitMu  sync.Locker
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time

	state   atomic.Int32
	running atomic.Bool
}

// NewPipeline creates a Pipeline.
func NewPipeline(
	log ConversationLog,
	store vectorstore.VectorStore,
	embedder llm.Embedder,
	generator llm.Generator,
	settings Settings,
	opts ...Option,
) *Pipeline {
	if settings.MinDayEntries <= 0 {
		settings.MinDayEntries = 4
	}
	if settings.UserName == "" {
		settings.UserName = "User"
	}
	if settings.BotName == "" {
		settings.BotName = "Assistant"
	}
	p := &Pipeline{
		log:       log,
		store:     store,
		embedder:  embedder,
		generator: generator,
		commitMu:  &sync.Mutex{},
		settings:  settings,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
}

// RunOnce runs one cycle over every eligible past day. Days are independent: a day whose
// summary cannot be generated or embedded is skipped and stays a candidate for the next cycle.
// The returned error is ErrCycleInProgress or the context error when the cycle was interrupted
// between days; the report is valid in the latter case.
func (p *Pipeline) RunOnce(ctx context.Context) (CycleReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer p.running.Store(false)
	defer p.setState(Idle)

	report := CycleReport{ID: uuid.NewString(), StartedAt: p.now()}
	logger := contextutil.LoggerFromContext(ctx, p.logger).With("cycle_id", report.ID)
	ctx = contextutil.WithLogger(ctx, logger)

	if p.journal != nil {
		if err := p.journal.StartCycle(ctx, report.ID, report.StartedAt); err != nil {
			logger.WarnContext(ctx, "failed to journal cycle start", "error", err)
		}
	}

	p.setState(Collecting)
	gen := p.log.Generation()
	candidates := p.log.PastDayCandidates(p.settings.MinDayEntries)
	dates := convlog.SortedDates(candidates)
	logger.InfoContext(ctx, "archival cycle started", "candidate_days", len(dates))

	var interrupted error
	for _, day := range dates {
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}
		res := p.archiveDay(ctx, gen, day, candidates[day])
		report.Days = append(report.Days, res)
		switch res.Outcome {
		case storage.DayCommitted:
			report.Committed++
		case storage.DaySkipped:
			report.Skipped++
		case storage.DayFailed:
			report.Failed++
		}
		p.journalDay(ctx, report.ID, res)
	}

	report.FinishedAt = p.now()
	report.Status = cycleStatus(report, interrupted)
	p.finishJournal(ctx, report)

	logger.InfoContext(ctx, "archival cycle finished",
		"status", report.Status,
		"committed", report.Committed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.FinishedAt.Sub(report.StartedAt))
	return report, interrupted
}

func cycleStatus(r CycleReport, interrupted error) storage.CycleStatus {
	switch {
	case interrupted != nil:
		return storage.CycleCancelled
	case r.Skipped == 0 && r.Failed == 0:
		return storage.CycleSucceeded
	case r.Committed > 0:
		return storage.CyclePartial
	default:
		return storage.CycleFailed
	}
}

// archiveDay summarizes, embeds and commits one day. The generation and embedding calls run
// without the commit lock. gen is the log generation the entries were collected from.
func (p *Pipeline) archiveDay(ctx context.Context, gen uint64, day convlog.Date, entries []convlog.Entry) DayResult {
	logger := contextutil.LoggerFromContext(ctx, p.logger).With("day", day.String())
	res := DayResult{Date: day.String(), Entries: len(entries)}

	p.setState(Summarizing)
	transcript := Transcript(entries, p.settings.UserName, p.settings.BotName)
	prompt := SummaryPrompt(day, transcript, p.settings.UserName, p.settings.BotName)
	raw, err := p.generator.Generate(ctx, prompt, llm.GenerateParams{
		Model:       p.settings.Model,
		MaxTokens:   p.settings.MaxTokens,
		Temperature: p.settings.Temperature,
	})
	if err != nil {
		logger.WarnContext(ctx, "summary generation failed, day left for next cycle", "error", err)
		return skipped(res, "generate: %v", err)
	}
	summary := CleanSummary(raw)
	if summary == "" {
		logger.WarnContext(ctx, "empty summary, day left for next cycle")
		return skipped(res, "empty summary")
	}

	vec, err := p.embedder.Embed(ctx, summary)
	if err != nil {
		logger.WarnContext(ctx, "summary embedding failed, day left for next cycle", "error", err)
		return skipped(res, "embed: %v", err)
	}

	return p.commit(ctx, logger, gen, day, summary, vec, res)
}

// commit inserts the summary and only then prunes the day's entries. A day whose log was
// replaced or cleared since collection is skipped.
func (p *Pipeline) commit(ctx context.Context, logger *slog.Logger, gen uint64, day convlog.Date, summary string, vec []float32, res DayResult) DayResult {
	p.setState(Committing)
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	if current := p.log.Generation(); current != gen {
		logger.WarnContext(ctx, "conversation log replaced during summarization, summary discarded",
			"collected_generation", gen, "current_generation", current)
		return skipped(res, "conversation log replaced during summarization")
	}

	rec := vectorstore.Record{
		Text:      summary,
		Embedding: vec,
		Metadata: vectorstore.Metadata{
			Provenance:       vectorstore.ProvenanceSummary,
			ConversationDate: day.String(),
		},
		Timestamp: p.now().UTC().Format(time.RFC3339),
	}
	if err := p.store.Insert(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "failed to insert summary, entries kept", "error", err)
		return failed(res, "insert: %v", err)
	}

	if !p.store.HasSummaryFor(day.String()) {
		err := &memerr.InvariantViolation{Op: "archival commit", Detail: fmt.Sprintf("summary for %s not visible after insert", day)}
		logger.ErrorContext(ctx, "refusing to prune", "error", err)
		return failed(res, "%v", err)
	}

	pruned, err := p.log.PruneDates(ctx, []convlog.Date{day})
	if err != nil {
		// The summary is committed but raw entries remain. The next cycle summarizes the day
		// again, producing a duplicate summary rather than a loss.
		logger.ErrorContext(ctx, "failed to prune archived day", "error", err)
		return failed(res, "prune: %v", err)
	}

	res.Outcome = storage.DayCommitted
	res.Pruned = pruned
	logger.InfoContext(ctx, "day archived", "entries", res.Entries, "pruned", pruned)
	return res
}

func skipped(res DayResult, format string, args ...any) DayResult {
	res.Outcome = storage.DaySkipped
	res.Detail = fmt.Sprintf(format, args...)
	return res
}

func failed(res DayResult, format string, args ...any) DayResult {
	res.Outcome = storage.DayFailed
	res.Detail = fmt.Sprintf(format, args...)
	return res
}

func (p *Pipeline) journalDay(ctx context.Context, cycleID string, res DayResult) {
	if p.journal == nil {
		return
	}
	err := p.journal.RecordDay(ctx, storage.DayRecord{
		CycleID:   cycleID,
		Day:       res.Date,
		Outcome:   res.Outcome,
		Entries:   res.Entries,
		Detail:    res.Detail,
		CreatedAt: p.now(),
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx, p.logger).WarnContext(ctx, "failed to journal day outcome", "day", res.Date, "error", err)
	}
}

func (p *Pipeline) finishJournal(ctx context.Context, r CycleReport) {
	if p.journal == nil {
		return
	}
	// The cycle may have been cancelled; the journal write still has to land.
	ctx = context.WithoutCancel(ctx)
	finished := r.FinishedAt
	err := p.journal.FinishCycle(ctx, storage.Cycle{
		ID:         r.ID,
		FinishedAt: &finished,
		Status:     r.Status,
		Committed:  r.Committed,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
	})
	if err != nil {
		contextutil.LoggerFromContext(ctx, p.logger).WarnContext(ctx, "failed to journal cycle end", "error", err)
	}
}
