// Package service exposes the memory store's administrative operations.
package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_memory_service.go -package=mocks semantic-memory/internal/service MemoryService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"semantic-memory/internal/archival"
	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/convlog"
	"semantic-memory/internal/indexer"
	"semantic-memory/internal/memerr"
	"semantic-memory/internal/rag"
	"semantic-memory/internal/storage"
	"semantic-memory/internal/vectorstore"
)

// MemoryService is the administrative surface of the memory store.
type MemoryService interface {
	// RecordInteraction appends a user turn and the assistant's reply, and starts an archival
	// cycle in the background once enough interactions have accumulated.
	RecordInteraction(ctx context.Context, user, assistant string) (InteractionResult, error)
	// RunArchivalNow runs one archival cycle immediately.
	RunArchivalNow(ctx context.Context) (archival.CycleReport, error)
	// QueryLongTerm ranks summaries and knowledge against text. A nil minScore uses the
	// configured threshold.
	QueryLongTerm(ctx context.Context, text string, k int, minScore *float64) ([]vectorstore.SearchResult, error)
	// QueryShortTermOnly returns today's conversation.
	QueryShortTermOnly(ctx context.Context) []convlog.Entry
	// BuildContext renders retrieved memory as prompt context.
	BuildContext(ctx context.Context, text string, opts rag.Options) (string, error)
	// Stats reports counts per memory partition.
	Stats(ctx context.Context) (Stats, error)
	// ClearPersonalMemory empties the conversation log and the summaries. Knowledge is kept.
	ClearPersonalMemory(ctx context.Context) error
	// ExportSnapshot captures the conversation log and the summaries.
	ExportSnapshot(ctx context.Context) (*Snapshot, error)
	// ImportSnapshot replaces the conversation log and the summaries with a snapshot.
	ImportSnapshot(ctx context.Context, data []byte) (ImportResult, error)
	// DebugSearch returns a per-result scoring breakdown.
	DebugSearch(ctx context.Context, text string, k int) (rag.DebugInfo, error)
	// ReloadKnowledge re-ingests the knowledge source directory.
	ReloadKnowledge(ctx context.Context) (*indexer.Report, error)
}

// InteractionResult tells the caller where the archival trigger stands.
type InteractionResult struct {
	Pending         int64 `json:"pending_interactions"`
	ArchivalStarted bool  `json:"archival_started"`
}

// Stats are the counts per memory partition.
type Stats struct {
	CurrentDayEntries           int            `json:"current_day_entries"`
	PastDayEntries              int            `json:"past_day_entries"`
	PastDayCandidates           int            `json:"past_day_candidates"`
	TotalMemoryEntries          int            `json:"total_memory_entries"`
	DailySummaryEmbeddingsCount int            `json:"daily_summary_embeddings_count"`
	BaseEmbeddingsCount         int            `json:"base_embeddings_count"`
	KnowledgeSources            map[string]int `json:"knowledge_sources"`
	EmbeddingDimension          int            `json:"embedding_dimension"`
	PendingInteractions         int64          `json:"pending_interactions"`
	ArchivalState               string         `json:"archival_state"`
	LastCycle                   *storage.Cycle `json:"last_cycle,omitempty"`
}

// SummaryStore is the embedding index as seen by the service.
type SummaryStore interface {
	vectorstore.VectorStore
	Dimension() int
	Summaries() []vectorstore.Record
	ReplaceSummaries(ctx context.Context, recs []vectorstore.Record) error
	ClearSummaries(ctx context.Context) error
	SummaryCount() int
	KnowledgeCount() int
	Sources() map[string]int
}

// Deps are the collaborators of the memory service. Journal and Ingest are optional.
type Deps struct {
	Log       *convlog.Log
	Store     SummaryStore
	Retriever *rag.Retriever
	Archiver  *archival.Pipeline
	Trigger   *archival.Trigger
	Journal   storage.JournalStore
	Ingest    *indexer.Pipeline

	// CommitLock must be the lock given to the archival pipeline with archival.WithCommitLock.
	CommitLock sync.Locker

	MinDayEntries      int
	KnowledgeSourceDir string
	Logger             *slog.Logger
	Now                func() time.Time
}

// Service implements MemoryService.
type Service struct {
	Deps

	wg sync.WaitGroup
}

// NewMemoryService creates a MemoryService.
func NewMemoryService(d Deps) *Service {
	if d.CommitLock == nil {
		d.CommitLock = &sync.Mutex{}
	}
	if d.MinDayEntries <= 0 {
		d.MinDayEntries = 4
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{Deps: d}
}

var _ MemoryService = (*Service)(nil)

func (s *Service) logger(ctx context.Context) *slog.Logger {
	return contextutil.LoggerFromContext(ctx, s.Logger)
}

// Wait blocks until background archival cycles have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) RecordInteraction(ctx context.Context, user, assistant string) (InteractionResult, error) {
	logger := s.logger(ctx)

	if err := s.Log.AppendInteraction(ctx, user, assistant); err != nil {
		var validationErr *memerr.ValidationError
		if errors.As(err, &validationErr) {
			return InteractionResult{}, err
		}
		logger.ErrorContext(ctx, "failed to record interaction", "error", err)
		return InteractionResult{}, memerr.WrapError(err, "failed to record interaction")
	}

	due, err := s.Trigger.RecordInteraction(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to persist interaction counter", "error", err)
	}
	res := InteractionResult{Pending: s.Trigger.Pending()}
	if !due {
		return res, nil
	}

	res.ArchivalStarted = true
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report, ran, err := s.Trigger.MaybeRun(bg)
		switch {
		case err != nil:
			logger.WarnContext(bg, "background archival cycle failed", "error", err)
		case ran:
			logger.InfoContext(bg, "background archival cycle finished",
				"cycle_id", report.ID, "committed", report.Committed, "status", report.Status)
		}
	}()
	return res, nil
}

func (s *Service) RunArchivalNow(ctx context.Context) (archival.CycleReport, error) {
	report, err := s.Trigger.RunNow(ctx)
	if err != nil && !errors.Is(err, archival.ErrCycleInProgress) {
		s.logger(ctx).ErrorContext(ctx, "archival cycle interrupted", "error", err)
	}
	return report, err
}

func (s *Service) QueryLongTerm(ctx context.Context, text string, k int, minScore *float64) ([]vectorstore.SearchResult, error) {
	if k < 0 {
		return nil, memerr.Validation("k", "must not be negative")
	}
	if minScore != nil && *minScore < 0 {
		return nil, memerr.Validation("min_score", "must not be negative")
	}
	opts := rag.Options{K: k, MinScore: minScore, UseLongTerm: true, UseBaseKnowledge: true, ForceLongTerm: true}
	return s.Retriever.Search(ctx, text, opts)
}

func (s *Service) QueryShortTermOnly(ctx context.Context) []convlog.Entry {
	return s.Log.CurrentDayEntries()
}

func (s *Service) BuildContext(ctx context.Context, text string, opts rag.Options) (string, error) {
	if opts.K < 0 {
		return "", memerr.Validation("k", "must not be negative")
	}
	return s.Retriever.BuildContext(ctx, text, opts)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		CurrentDayEntries:           len(s.Log.CurrentDayEntries()),
		TotalMemoryEntries:          s.Log.Len(),
		DailySummaryEmbeddingsCount: s.Store.SummaryCount(),
		BaseEmbeddingsCount:         s.Store.KnowledgeCount(),
		KnowledgeSources:            s.Store.Sources(),
		EmbeddingDimension:          s.Store.Dimension(),
		PendingInteractions:         s.Trigger.Pending(),
		ArchivalState:               s.Archiver.State().String(),
	}
	for _, n := range s.Log.PastDayCounts() {
		st.PastDayEntries += n
	}
	st.PastDayCandidates = len(s.Log.PastDayCandidates(s.MinDayEntries))

	if s.Journal != nil {
		cycles, err := s.Journal.RecentCycles(ctx, 1)
		if err != nil {
			return st, memerr.WrapError(err, "failed to read archival journal")
		}
		if len(cycles) > 0 {
			st.LastCycle = &cycles[0]
		}
	}
	return st, nil
}

func (s *Service) ClearPersonalMemory(ctx context.Context) error {
	s.CommitLock.Lock()
	defer s.CommitLock.Unlock()

	if err := s.Log.Clear(ctx); err != nil {
		return memerr.WrapError(err, "failed to clear conversation log")
	}
	if err := s.Store.ClearSummaries(ctx); err != nil {
		return memerr.WrapError(err, "failed to clear summaries")
	}
	s.logger(ctx).InfoContext(ctx, "personal memory cleared", "knowledge_records", s.Store.KnowledgeCount())
	return nil
}

func (s *Service) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	s.CommitLock.Lock()
	entries := s.Log.Entries()
	summaries := s.Store.Summaries()
	pastCounts := s.Log.PastDayCounts()
	current := len(s.Log.CurrentDayEntries())
	s.CommitLock.Unlock()

	snap := &Snapshot{
		Version:                SnapshotVersion,
		ExportTimestamp:        convlog.FormatTimestamp(s.Now().In(s.Log.Location())),
		Timezone:               s.Log.Location().String(),
		ChatEntries:            make([]convlog.Record, len(entries)),
		DailySummaryEmbeddings: summaries,
		BaseEmbeddingsCount:    s.Store.KnowledgeCount(),
		CurrentDayEntries:      current,
	}
	if snap.DailySummaryEmbeddings == nil {
		snap.DailySummaryEmbeddings = []vectorstore.Record{}
	}
	for i, e := range entries {
		snap.ChatEntries[i] = e.ToRecord()
	}
	for _, n := range pastCounts {
		snap.PastDayEntries += n
	}

	s.logger(ctx).InfoContext(ctx, "memory exported", "entries", len(entries), "summaries", len(summaries))
	return snap, nil
}

func (s *Service) ImportSnapshot(ctx context.Context, data []byte) (ImportResult, error) {
	logger := s.logger(ctx)

	entries, summaries, err := decodeSnapshot(data, s.Log.Location())
	if err != nil {
		logger.WarnContext(ctx, "rejected memory snapshot", "error", err)
		return ImportResult{}, err
	}

	s.CommitLock.Lock()
	defer s.CommitLock.Unlock()

	prevSummaries := s.Store.Summaries()
	if err := s.Store.ReplaceSummaries(ctx, summaries); err != nil {
		return ImportResult{}, fmt.Errorf("failed to import summaries: %w", err)
	}
	if err := s.Log.ReplaceAll(ctx, entries); err != nil {
		if rbErr := s.Store.ReplaceSummaries(ctx, prevSummaries); rbErr != nil {
			logger.ErrorContext(ctx, "failed to restore summaries after import error", "error", rbErr)
		}
		return ImportResult{}, fmt.Errorf("failed to import conversation log: %w", err)
	}

	if overlap := summarizedDatesWithEntries(entries, summaries, s.Log.Location()); len(overlap) > 0 {
		logger.WarnContext(ctx, "imported summaries overlap raw conversation days", "dates", strings.Join(overlap, ","))
	}
	logger.InfoContext(ctx, "memory imported", "entries", len(entries), "summaries", len(summaries))
	return ImportResult{Entries: len(entries), Summaries: len(summaries)}, nil
}

// summarizedDatesWithEntries lists dates that have both a summary and raw entries.
func summarizedDatesWithEntries(entries []convlog.Entry, summaries []vectorstore.Record, loc *time.Location) []string {
	raw := make(map[string]bool)
	for _, e := range entries {
		raw[convlog.DateOf(e.Timestamp, loc).String()] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, rec := range summaries {
		d := rec.Metadata.ConversationDate
		if raw[d] && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func (s *Service) DebugSearch(ctx context.Context, text string, k int) (rag.DebugInfo, error) {
	if k < 0 {
		return rag.DebugInfo{}, memerr.Validation("k", "must not be negative")
	}
	return s.Retriever.Debug(ctx, text, k)
}

func (s *Service) ReloadKnowledge(ctx context.Context) (*indexer.Report, error) {
	if s.Ingest == nil || s.KnowledgeSourceDir == "" {
		return nil, memerr.Validation("knowledge_source_dir", "knowledge ingestion is not configured")
	}
	report, err := s.Ingest.IngestDir(ctx, s.KnowledgeSourceDir)
	if err != nil {
		return nil, memerr.WrapError(err, "failed to reload knowledge")
	}
	return report, nil
}
