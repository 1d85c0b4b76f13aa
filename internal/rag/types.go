package rag

import (
	"semantic-memory/internal/classifier"
	"semantic-memory/internal/vectorstore"
)

// Options selects the memory tiers consulted by one retrieval call.
type Options struct {
	// K is the maximum number of long-term results. 0 uses the retriever default.
	K int `json:"k,omitempty"`
	// MinScore drops results below this score. Nil uses the retriever default.
	MinScore *float64 `json:"min_score,omitempty"`

	UseShortTerm     bool `json:"use_short_term"`
	UseLongTerm      bool `json:"use_long_term"`
	UseBaseKnowledge bool `json:"use_base_knowledge"`

	// ForceLongTerm searches long-term memory even when the query does not ask for history.
	ForceLongTerm bool `json:"force_long_term,omitempty"`
}

// AllTiers enables every tier.
func AllTiers() Options {
	return Options{UseShortTerm: true, UseLongTerm: true, UseBaseKnowledge: true}
}

// DebugInfo is a per-result breakdown of one search.
type DebugInfo struct {
	Query   string            `json:"query"`
	Intent  classifier.Intent `json:"intent"`
	Results []DebugResult     `json:"results"`
}

// DebugResult describes one ranked record.
type DebugResult struct {
	Rank        int                    `json:"rank"`
	Provenance  vectorstore.Provenance `json:"provenance"`
	Similarity  float64                `json:"similarity"`
	Score       float64                `json:"score"`
	ChunkType   string                 `json:"chunk_type,omitempty"`
	ContextPath string                 `json:"context_path,omitempty"`
	Keywords    []string               `json:"keywords,omitempty"`
	Date        string                 `json:"conversation_date,omitempty"`
	Text        string                 `json:"text"`
}
