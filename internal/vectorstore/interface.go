package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks semantic-memory/internal/vectorstore VectorStore

import "context"

// Provenance tags where an embedded record came from.
type Provenance string

const (
	// ProvenanceSummary marks a daily conversation summary.
	ProvenanceSummary Provenance = "daily_summary"
	// ProvenanceKnowledge marks a chunk of the static knowledge corpus.
	ProvenanceKnowledge Provenance = "knowledge"
)

// Record is an embedded summary or knowledge chunk.
type Record struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// Metadata carries the provenance-specific fields of a Record.
// Summaries use ConversationDate; knowledge chunks use the remaining fields.
type Metadata struct {
	Provenance       Provenance
	ConversationDate string
	SourceID         string
	ChunkType        string
	ContextPath      string
	SectionLevel     int
	Keywords         []string
	CharCount        int
	MainSectionTitle string
}

// SearchParams controls a similarity search.
type SearchParams struct {
	Vector []float32
	K      int
	// Filter restricts candidates to these provenances. Empty means all.
	Filter   []Provenance
	MinScore float64
	// Rescore adjusts the raw cosine similarity of a candidate. Nil leaves it unchanged.
	Rescore func(rec Record, similarity float64) float64
}

// SearchResult is a ranked match.
type SearchResult struct {
	Record     Record
	Similarity float64
	Score      float64
}

// VectorStore defines the operations the archival pipeline, ingestion and retrieval need.
type VectorStore interface {
	// Insert appends a record after validating it.
	Insert(ctx context.Context, rec Record) error

	// ReplaceSource atomically replaces every knowledge record of sourceID.
	ReplaceSource(ctx context.Context, sourceID string, recs []Record) error

	// Search ranks candidates by (optionally re-scored) cosine similarity.
	Search(ctx context.Context, params SearchParams) ([]SearchResult, error)

	// HasSummaryFor reports whether a daily summary exists for a YYYY-MM-DD date.
	HasSummaryFor(date string) bool
}
