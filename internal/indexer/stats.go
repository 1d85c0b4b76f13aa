package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// ChunkerVersion identifies the chunking logic. Update it when chunk boundaries change.
const ChunkerVersion = "v2.0"

// Report summarises one ingestion run.
type Report struct {
	// SourcesProcessed counts sources that were chunked and stored.
	SourcesProcessed int `json:"sources_processed"`
	// SourcesUnchanged counts sources skipped because their content hash matched the last ingest.
	SourcesUnchanged int `json:"sources_unchanged"`
	// SourcesFailed counts sources left untouched because chunking, embedding or storing failed.
	SourcesFailed int `json:"sources_failed"`
	// Sources holds the per-source results in scan order.
	Sources []SourceReport `json:"sources"`
	// ChunkTypes counts stored chunks per chunk type.
	ChunkTypes map[string]int `json:"chunk_types"`
	// CharStats describes stored chunk sizes in characters.
	CharStats ChunkCharStats `json:"char_stats"`
	// IndexVersion hashes the chunker version, embedding model and size budget.
	IndexVersion string `json:"index_version"`
}

// SourceReport is the outcome for one source document.
type SourceReport struct {
	SourceID string         `json:"source_id"`
	Path     string         `json:"path"`
	Title    string         `json:"title"`
	Chunks   int            `json:"chunks"`
	Types    map[string]int `json:"chunk_types,omitempty"`
	Skipped  bool           `json:"skipped,omitempty"`
	Error    string         `json:"error,omitempty"`

	charCounts []int
}

// ChunkCharStats contains statistics about chunk lengths.
type ChunkCharStats struct {
	Count int     `json:"count"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
	Mean  float64 `json:"mean"`
	P95   int     `json:"p95"`
}

// newReport aggregates per-source results.
func newReport(sources []SourceReport, indexVersion string) *Report {
	r := &Report{
		Sources:      sources,
		ChunkTypes:   make(map[string]int),
		IndexVersion: indexVersion,
	}
	var counts []int
	for _, s := range sources {
		switch {
		case s.Error != "":
			r.SourcesFailed++
		case s.Skipped:
			r.SourcesUnchanged++
		default:
			r.SourcesProcessed++
			for t, n := range s.Types {
				r.ChunkTypes[t] += n
			}
			counts = append(counts, s.charCounts...)
		}
	}
	r.CharStats = computeCharStats(counts)
	return r
}

// indexVersion generates the index version hash for an embedding model and size budget.
func indexVersion(embeddingModel string, cfg ChunkerConfig) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|overlap=%d|minChunkSize=%d",
		ChunkerVersion, embeddingModel, cfg.ChunkSize, cfg.Overlap, cfg.MinChunkSize)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeCharStats computes min, max, mean, and p95 from chunk lengths.
func computeCharStats(counts []int) ChunkCharStats {
	if len(counts) == 0 {
		return ChunkCharStats{}
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, c := range counts {
		sum += c
	}
	mean := float64(sum) / float64(len(counts))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkCharStats{
		Count: len(counts),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  math.Round(mean*100) / 100,
		P95:   sorted[p95Index],
	}
}
