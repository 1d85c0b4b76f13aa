package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"sync"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/fsutil"
	"semantic-memory/internal/memerr"
)

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemoryStore) { s.logger = logger }
}

// MemoryStore is an in-memory index backed by a summary file and one file per knowledge source.
// Writes are serialized and persisted before they become visible; searches share a read lock.
// Empty paths keep the corresponding partition memory-only.
type MemoryStore struct {
	mu           sync.RWMutex
	dim          int
	summaryPath  string
	knowledgeDir string
	logger       *slog.Logger

	summaries   []Record
	knowledge   map[string][]Record
	sourceFiles map[string][]string // every file holding records of a source
}

var _ VectorStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty memory-only store. A dim of 0 lets the first accepted vector
// fix the dimensionality.
func NewMemoryStore(dim int, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		dim:         dim,
		logger:      slog.Default(),
		knowledge:   make(map[string][]Record),
		sourceFiles: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads summaries from summaryPath and every knowledge source under knowledgeDir.
// Malformed or wrong-dimension records are dropped and logged.
func Open(ctx context.Context, summaryPath, knowledgeDir string, dim int, opts ...Option) (*MemoryStore, error) {
	s := NewMemoryStore(dim, opts...)
	s.summaryPath = summaryPath
	s.knowledgeDir = knowledgeDir
	logger := contextutil.LoggerFromContext(ctx, s.logger)

	if summaryPath != "" {
		recs, err := loadFile(ctx, logger, summaryPath, s.prepareSummary)
		if err != nil {
			return nil, err
		}
		s.summaries = recs
	}

	if knowledgeDir != "" {
		files, err := knowledgeFiles(knowledgeDir)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			fallback := sourceIDFromFile(file)
			recs, err := loadFile(ctx, logger, file, func(rec Record) (Record, error) {
				return s.prepareKnowledge(rec, fallback)
			})
			if err != nil {
				logger.WarnContext(ctx, "skipping unreadable knowledge file", "file", file, "error", err)
				continue
			}
			for _, rec := range recs {
				src := rec.Metadata.SourceID
				s.knowledge[src] = append(s.knowledge[src], rec)
				if !slices.Contains(s.sourceFiles[src], file) {
					s.sourceFiles[src] = append(s.sourceFiles[src], file)
				}
			}
		}
	}

	logger.InfoContext(ctx, "embedding index loaded",
		"summaries", len(s.summaries),
		"knowledge_sources", len(s.knowledge),
		"knowledge_records", s.KnowledgeCount(),
		"dimension", s.dim)
	return s, nil
}

func (s *MemoryStore) prepareSummary(rec Record) (Record, error) {
	if rec.Metadata.Provenance == "" {
		rec.Metadata.Provenance = ProvenanceSummary
	}
	if err := s.checkLocked(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *MemoryStore) prepareKnowledge(rec Record, fallbackSource string) (Record, error) {
	rec.Metadata.Provenance = ProvenanceKnowledge
	if rec.Metadata.SourceID == "" {
		rec.Metadata.SourceID = fallbackSource
	}
	if rec.Metadata.CharCount == 0 {
		rec.Metadata.CharCount = len([]rune(rec.Text))
	}
	if err := s.checkLocked(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// checkLocked validates rec against the store's invariants, fixing the dimension on first use.
// Callers hold s.mu for writing (or own s exclusively, as during Open).
func (s *MemoryStore) checkLocked(rec Record) error {
	if err := validateRecord(rec, s.dim); err != nil {
		return err
	}
	if s.dim == 0 {
		s.dim = len(rec.Embedding)
	}
	return nil
}

func validateRecord(rec Record, dim int) error {
	if rec.Text == "" {
		return memerr.Validation("text", "cannot be empty")
	}
	if len(rec.Embedding) == 0 {
		return memerr.Validation("embedding", "cannot be empty")
	}
	if dim > 0 && len(rec.Embedding) != dim {
		return memerr.Validation("embedding", "dimension %d, want %d", len(rec.Embedding), dim)
	}
	switch rec.Metadata.Provenance {
	case ProvenanceSummary:
		if rec.Metadata.ConversationDate == "" {
			return memerr.Validation("metadata.conversation_date", "required for %s records", ProvenanceSummary)
		}
	case ProvenanceKnowledge:
		if !sourceIDPattern.MatchString(rec.Metadata.SourceID) {
			return memerr.Validation("metadata.source_id", "invalid source id %q", rec.Metadata.SourceID)
		}
	default:
		return memerr.Validation("metadata.provenance", "unknown provenance %q", rec.Metadata.Provenance)
	}
	return nil
}

// Dimension returns the fixed embedding dimensionality, or 0 if not yet known.
func (s *MemoryStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Insert validates rec and appends it. The record is persisted before it becomes visible;
// a persistence failure leaves the store unchanged.
func (s *MemoryStore) Insert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	if err := s.checkLocked(rec); err != nil {
		return err
	}

	switch rec.Metadata.Provenance {
	case ProvenanceSummary:
		next := append(slices.Clone(s.summaries), rec)
		if err := s.saveSummaries(next); err != nil {
			s.dim = dim
			return err
		}
		s.summaries = next
	case ProvenanceKnowledge:
		src := rec.Metadata.SourceID
		next := append(slices.Clone(s.knowledge[src]), rec)
		if err := s.saveSource(src, next); err != nil {
			s.dim = dim
			return err
		}
		s.knowledge[src] = next
	}

	contextutil.LoggerFromContext(ctx, s.logger).DebugContext(ctx, "record inserted",
		"provenance", rec.Metadata.Provenance,
		"conversation_date", rec.Metadata.ConversationDate,
		"source_id", rec.Metadata.SourceID)
	return nil
}

// ReplaceSource atomically replaces all knowledge records of sourceID with recs.
// Every record is validated before anything is written.
func (s *MemoryStore) ReplaceSource(ctx context.Context, sourceID string, recs []Record) error {
	if !sourceIDPattern.MatchString(sourceID) {
		return memerr.Validation("source_id", "invalid source id %q", sourceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	next := make([]Record, len(recs))
	for i, rec := range recs {
		rec.Metadata.Provenance = ProvenanceKnowledge
		rec.Metadata.SourceID = sourceID
		if err := s.checkLocked(rec); err != nil {
			s.dim = dim
			return fmt.Errorf("record %d: %w", i, err)
		}
		next[i] = rec
	}

	if err := s.saveSource(sourceID, next); err != nil {
		s.dim = dim
		return err
	}
	s.knowledge[sourceID] = next

	contextutil.LoggerFromContext(ctx, s.logger).InfoContext(ctx, "knowledge source replaced",
		"source_id", sourceID, "records", len(next))
	return nil
}

// DeleteSource removes a knowledge source and every file holding its records. Unknown sources
// are a no-op.
func (s *MemoryStore) DeleteSource(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.releaseFiles(sourceID, ""); err != nil {
		return err
	}
	delete(s.knowledge, sourceID)
	return nil
}

// ClearSummaries removes every daily summary. Knowledge sources are untouched.
func (s *MemoryStore) ClearSummaries(ctx context.Context) error {
	return s.ReplaceSummaries(ctx, nil)
}

// ReplaceSummaries swaps the summary partition for recs, all or nothing.
func (s *MemoryStore) ReplaceSummaries(ctx context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	next := make([]Record, len(recs))
	for i, rec := range recs {
		if rec.Metadata.Provenance == "" {
			rec.Metadata.Provenance = ProvenanceSummary
		}
		if rec.Metadata.Provenance != ProvenanceSummary {
			s.dim = dim
			return memerr.Validation(fmt.Sprintf("summaries[%d].metadata.provenance", i), "want %s", ProvenanceSummary)
		}
		if err := s.checkLocked(rec); err != nil {
			s.dim = dim
			return fmt.Errorf("summary %d: %w", i, err)
		}
		next[i] = rec
	}
	if err := s.saveSummaries(next); err != nil {
		s.dim = dim
		return err
	}
	s.summaries = next
	return nil
}

// HasSummaryFor reports whether a daily summary exists for date (YYYY-MM-DD).
func (s *MemoryStore) HasSummaryFor(date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.summaries {
		if rec.Metadata.ConversationDate == date {
			return true
		}
	}
	return false
}

// Summaries returns a copy of the summary partition in insertion order.
func (s *MemoryStore) Summaries() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.summaries)
}

// Knowledge returns a copy of all knowledge records, ordered by source then chunk order.
func (s *MemoryStore) Knowledge() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, src := range s.sourcesLocked() {
		out = append(out, s.knowledge[src]...)
	}
	return out
}

// Sources returns the loaded knowledge source ids with their record counts.
func (s *MemoryStore) Sources() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.knowledge))
	for src, recs := range s.knowledge {
		out[src] = len(recs)
	}
	return out
}

// SummaryCount returns the number of daily summaries.
func (s *MemoryStore) SummaryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries)
}

// KnowledgeCount returns the number of knowledge records across sources.
func (s *MemoryStore) KnowledgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, recs := range s.knowledge {
		n += len(recs)
	}
	return n
}

func (s *MemoryStore) sourcesLocked() []string {
	srcs := make([]string, 0, len(s.knowledge))
	for src := range s.knowledge {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	return srcs
}

// Search scores every candidate matching params.Filter, drops those below params.MinScore and
// returns at most params.K results by descending score. Ties keep candidate order: summaries in
// insertion order, then knowledge by source id and chunk order.
func (s *MemoryStore) Search(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	if params.K <= 0 {
		return nil, memerr.Validation("k", "must be greater than 0")
	}
	if len(params.Vector) == 0 {
		return nil, memerr.Validation("vector", "cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dim > 0 && len(params.Vector) != s.dim {
		return nil, memerr.Validation("vector", "dimension %d, want %d", len(params.Vector), s.dim)
	}

	want := func(p Provenance) bool {
		return len(params.Filter) == 0 || slices.Contains(params.Filter, p)
	}

	var candidates []Record
	if want(ProvenanceSummary) {
		candidates = append(candidates, s.summaries...)
	}
	if want(ProvenanceKnowledge) {
		for _, src := range s.sourcesLocked() {
			candidates = append(candidates, s.knowledge[src]...)
		}
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, rec := range candidates {
		sim := Cosine(params.Vector, rec.Embedding)
		score := sim
		if params.Rescore != nil {
			score = params.Rescore(rec, sim)
		}
		if score < params.MinScore {
			continue
		}
		results = append(results, SearchResult{Record: rec, Similarity: sim, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > params.K {
		results = results[:params.K]
	}

	contextutil.LoggerFromContext(ctx, s.logger).DebugContext(ctx, "index search",
		"candidates", len(candidates), "returned", len(results), "k", params.K, "min_score", params.MinScore)
	return results, nil
}

func (s *MemoryStore) saveSummaries(recs []Record) error {
	if s.summaryPath == "" {
		return nil
	}
	if recs == nil {
		recs = []Record{}
	}
	if err := fsutil.WriteJSONAtomic(s.summaryPath, recs); err != nil {
		return fmt.Errorf("failed to persist summaries: %w", err)
	}
	return nil
}

// saveSource writes the canonical file of a source. Records of the source found in other files
// are dropped with those files.
func (s *MemoryStore) saveSource(sourceID string, recs []Record) error {
	if s.knowledgeDir == "" {
		return nil
	}
	path := s.sourcePath(sourceID)
	if err := writeSource(path, recs); err != nil {
		return fmt.Errorf("failed to persist knowledge source %s: %w", sourceID, err)
	}
	if err := s.releaseFiles(sourceID, path); err != nil {
		s.logger.Warn("failed to remove superseded knowledge file", "source_id", sourceID, "error", err)
	}
	return nil
}

func (s *MemoryStore) sourcePath(sourceID string) string {
	return filepath.Join(s.knowledgeDir, sourceID+".json")
}

func writeSource(path string, recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	return fsutil.WriteJSONAtomic(path, recs)
}

// releaseFiles removes every file holding records of sourceID except keep. A file shared with
// another source is removed only after that source has been rewritten to its canonical file.
// Files that could not be removed stay attributed to sourceID.
func (s *MemoryStore) releaseFiles(sourceID, keep string) error {
	drop := make(map[string]bool)
	for _, f := range s.sourceFiles[sourceID] {
		if f != keep {
			drop[f] = true
		}
	}

	moved := make(map[string]bool)
	for changed := len(drop) > 0; changed; {
		changed = false
		for src, files := range s.sourceFiles {
			if src == sourceID || moved[src] {
				continue
			}
			if !slices.ContainsFunc(files, func(f string) bool { return drop[f] }) {
				continue
			}
			moved[src] = true
			changed = true
			for _, f := range files {
				drop[f] = true
			}
		}
	}
	for src := range moved {
		path := s.sourcePath(src)
		if err := writeSource(path, s.knowledge[src]); err != nil {
			return fmt.Errorf("failed to persist knowledge source %s: %w", src, err)
		}
		delete(drop, path)
		s.sourceFiles[src] = []string{path}
	}
	delete(drop, keep)

	var left []string
	var errs []error
	for f := range drop {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			left = append(left, f)
			errs = append(errs, fmt.Errorf("failed to remove knowledge file: %w", err))
		}
	}
	if keep != "" {
		left = append(left, keep)
	}
	if len(left) == 0 {
		delete(s.sourceFiles, sourceID)
	} else {
		s.sourceFiles[sourceID] = left
	}
	return errors.Join(errs...)
}
