// Package rag ranks long-term memory against a query and renders it as prompt context.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/convlog"
	"semantic-memory/internal/llm"
	"semantic-memory/internal/memerr"
	"semantic-memory/internal/vectorstore"
)

// ShortTermSource supplies today's conversation.
type ShortTermSource interface {
	CurrentDayEntries() []convlog.Entry
}

// HistoryDetector decides whether a query warrants long-term retrieval.
type HistoryDetector interface {
	NeedsLongTerm(text string) bool
}

// Settings are the retriever defaults.
type Settings struct {
	K          int
	MinScore   float64
	KnowledgeK int
	// RecentLimit caps rendered entries of today's conversation. 0 renders all of them.
	RecentLimit int
	UserName    string
	BotName     string
}

// Retriever answers similarity queries against the embedding index.
type Retriever struct {
	embedder  llm.Embedder
	store     vectorstore.VectorStore
	shortTerm ShortTermSource
	detector  HistoryDetector
	rescorer  *Rescorer
	settings  Settings
	logger    *slog.Logger
}

// NewRetriever creates a Retriever. shortTerm and detector may be nil.
func NewRetriever(
	embedder llm.Embedder,
	store vectorstore.VectorStore,
	shortTerm ShortTermSource,
	detector HistoryDetector,
	rescorer *Rescorer,
	settings Settings,
	logger *slog.Logger,
) *Retriever {
	if settings.K <= 0 {
		settings.K = 5
	}
	if settings.KnowledgeK <= 0 {
		settings.KnowledgeK = 3
	}
	if settings.UserName == "" {
		settings.UserName = "User"
	}
	if settings.BotName == "" {
		settings.BotName = "Assistant"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:  embedder,
		store:     store,
		shortTerm: shortTerm,
		detector:  detector,
		rescorer:  rescorer,
		settings:  settings,
		logger:    logger,
	}
}

// Search embeds query and ranks the long-term tiers selected by opts.
// A failure to embed the query is reported as memerr.ErrSearchUnavailable, never as an empty result.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]vectorstore.SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx, r.logger)

	if strings.TrimSpace(query) == "" {
		return nil, memerr.Validation("query", "cannot be empty")
	}
	filter := r.filter(opts)
	if len(filter) == 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, memerr.ErrInvalidInput) {
			return nil, err
		}
		logger.WarnContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("%w: %w", memerr.ErrSearchUnavailable, err)
	}

	params := vectorstore.SearchParams{
		Vector:   vec,
		K:        r.k(opts),
		Filter:   filter,
		MinScore: r.minScore(opts),
	}
	if r.rescorer != nil {
		params.Rescore = r.rescorer.For(query)
	}

	results, err := r.store.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search embedding index: %w", err)
	}

	logger.DebugContext(ctx, "long-term search completed",
		"results", len(results), "k", params.K, "min_score", params.MinScore)
	return results, nil
}

// BuildContext renders the enabled tiers as prompt context. Retrieval failures degrade to a
// context without the long-term section.
func (r *Retriever) BuildContext(ctx context.Context, query string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logger := contextutil.LoggerFromContext(ctx, r.logger)

	var parts []string
	if r.wantsLongTerm(query, opts) {
		results, err := r.Search(ctx, query, opts)
		if err != nil {
			logger.WarnContext(ctx, "long-term retrieval unavailable, continuing without it", "error", err)
		} else if len(results) > 0 {
			parts = append(parts, r.renderLongTerm(results)...)
		}
	}

	if opts.UseShortTerm {
		parts = append(parts, r.renderShortTerm()...)
	}

	return strings.Join(parts, "\n"), nil
}

// ShortTermContext renders only today's conversation.
func (r *Retriever) ShortTermContext() string {
	return strings.Join(r.renderShortTerm(), "\n")
}

// Debug returns the intent and the ranked breakdown for query across every long-term tier.
func (r *Retriever) Debug(ctx context.Context, query string, k int) (DebugInfo, error) {
	info := DebugInfo{Query: query}
	if r.rescorer != nil {
		info.Intent = r.rescorer.Intent(query)
	}

	opts := Options{K: k, UseLongTerm: true, UseBaseKnowledge: true}
	results, err := r.Search(ctx, query, opts)
	if err != nil {
		return info, err
	}

	info.Results = make([]DebugResult, len(results))
	for i, res := range results {
		md := res.Record.Metadata
		info.Results[i] = DebugResult{
			Rank:        i + 1,
			Provenance:  md.Provenance,
			Similarity:  res.Similarity,
			Score:       res.Score,
			ChunkType:   md.ChunkType,
			ContextPath: md.ContextPath,
			Keywords:    md.Keywords,
			Date:        md.ConversationDate,
			Text:        res.Record.Text,
		}
	}
	return info, nil
}

func (r *Retriever) wantsLongTerm(query string, opts Options) bool {
	if !opts.UseLongTerm && !opts.UseBaseKnowledge {
		return false
	}
	if strings.TrimSpace(query) == "" {
		return false
	}
	if opts.ForceLongTerm || r.detector == nil {
		return true
	}
	return r.detector.NeedsLongTerm(query)
}

func (r *Retriever) filter(opts Options) []vectorstore.Provenance {
	var filter []vectorstore.Provenance
	if opts.UseLongTerm {
		filter = append(filter, vectorstore.ProvenanceSummary)
	}
	if opts.UseBaseKnowledge {
		filter = append(filter, vectorstore.ProvenanceKnowledge)
	}
	return filter
}

func (r *Retriever) k(opts Options) int {
	if opts.K > 0 {
		return opts.K
	}
	return r.settings.K
}

func (r *Retriever) minScore(opts Options) float64 {
	if opts.MinScore != nil {
		return *opts.MinScore
	}
	return r.settings.MinScore
}

func (r *Retriever) renderLongTerm(results []vectorstore.SearchResult) []string {
	var knowledge, summaries []vectorstore.SearchResult
	for _, res := range results {
		if res.Record.Metadata.Provenance == vectorstore.ProvenanceSummary {
			summaries = append(summaries, res)
		} else {
			knowledge = append(knowledge, res)
		}
	}

	parts := []string{"=== RELEVANT KNOWLEDGE ==="}
	if len(knowledge) > 0 {
		parts = append(parts, "Knowledge Base:")
		for _, res := range knowledge[:min(len(knowledge), r.settings.KnowledgeK)] {
			md := res.Record.Metadata
			label := titleCase(md.ChunkType)
			if md.ContextPath != "" {
				label += " - " + md.ContextPath
			}
			parts = append(parts, fmt.Sprintf("- %s [%s] (relevance: %.2f)", res.Record.Text, label, res.Score))
		}
	}
	if len(summaries) > 0 {
		parts = append(parts, "Past Days' Summaries:")
		for _, res := range summaries[:min(len(summaries), r.settings.KnowledgeK)] {
			parts = append(parts, fmt.Sprintf("- [%s] %s (similarity: %.2f)",
				res.Record.Metadata.ConversationDate, res.Record.Text, res.Similarity))
		}
	}
	return append(parts, "")
}

func (r *Retriever) renderShortTerm() []string {
	if r.shortTerm == nil {
		return nil
	}
	entries := r.shortTerm.CurrentDayEntries()
	if n := r.settings.RecentLimit; n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	if len(entries) == 0 {
		return nil
	}

	parts := []string{"=== TODAY'S CONVERSATIONS ==="}
	for _, e := range entries {
		name := r.settings.UserName
		if e.Role == convlog.Assistant {
			name = r.settings.BotName
		}
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", convlog.FormatTimestamp(e.Timestamp), name, e.Content))
	}
	return append(parts, "")
}

// titleCase turns "decision_guide" into "Decision Guide".
func titleCase(s string) string {
	if s == "" {
		return "Guide"
	}
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
