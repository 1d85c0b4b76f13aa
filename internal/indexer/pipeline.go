package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/llm"
	"semantic-memory/internal/vectorstore"
)

// KnowledgeStore is the part of the embedding index the pipeline writes to.
type KnowledgeStore interface {
	ReplaceSource(ctx context.Context, sourceID string, recs []vectorstore.Record) error
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the fallback logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithPipelineClock overrides the time source used for record timestamps.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline chunks knowledge documents, embeds the chunks and replaces each source's records
// in the embedding index.
type Pipeline struct {
	chunker        *GoldmarkChunker
	embedder       llm.Embedder
	store          KnowledgeStore
	embeddingModel string
	logger         *slog.Logger
	now            func() time.Time

	mu     sync.Mutex
	hashes map[string]string // source id -> content hash of the last successful ingest
}

// NewPipeline creates a knowledge ingestion pipeline.
func NewPipeline(chunker *GoldmarkChunker, embedder llm.Embedder, store KnowledgeStore, embeddingModel string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		chunker:        chunker,
		embedder:       embedder,
		store:          store,
		embeddingModel: embeddingModel,
		logger:         slog.Default(),
		now:            time.Now,
		hashes:         make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IngestFile ingests one document, replacing every record previously stored for its source.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Report, error) {
	src := SourceFile{SourceID: SourceIDFor(path), RelPath: path, AbsPath: path}
	res, err := p.ingest(ctx, src, true)
	if err != nil {
		return nil, err
	}
	return newReport([]SourceReport{res}, indexVersion(p.embeddingModel, p.chunker.Config())), nil
}

// IngestDir ingests every .md and .txt file under dir. Sources whose content is unchanged since
// their last ingest are skipped. A failing source is recorded in the report and the remaining
// sources are still processed.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (*Report, error) {
	logger := contextutil.LoggerFromContext(ctx, p.logger)

	files, err := ScanSources(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan knowledge sources: %w", err)
	}
	logger.InfoContext(ctx, "starting knowledge ingestion", "dir", dir, "total_files", len(files))

	results := make([]SourceReport, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.ingest(ctx, file, false)
		if err != nil {
			res = SourceReport{SourceID: file.SourceID, Path: file.RelPath, Error: err.Error()}
			logger.ErrorContext(ctx, "failed to ingest knowledge source",
				"source_id", file.SourceID, "path", file.RelPath, "error", err)
		}
		results = append(results, res)
	}

	report := newReport(results, indexVersion(p.embeddingModel, p.chunker.Config()))
	logger.InfoContext(ctx, "knowledge ingestion completed",
		"processed", report.SourcesProcessed,
		"unchanged", report.SourcesUnchanged,
		"failed", report.SourcesFailed)
	return report, nil
}

func (p *Pipeline) ingest(ctx context.Context, src SourceFile, force bool) (SourceReport, error) {
	logger := contextutil.LoggerFromContext(ctx, p.logger)
	res := SourceReport{SourceID: src.SourceID, Path: src.RelPath}

	content, err := os.ReadFile(src.AbsPath)
	if err != nil {
		return res, fmt.Errorf("failed to read file %s: %w", src.AbsPath, err)
	}

	hash := sha256.Sum256(content)
	hashHex := hex.EncodeToString(hash[:])
	if !force && p.lastHash(src.SourceID) == hashHex {
		logger.DebugContext(ctx, "skipping unchanged knowledge source", "source_id", src.SourceID)
		res.Skipped = true
		return res, nil
	}

	sections := p.chunker.Sections(content)
	res.Title = p.chunker.DocumentTitle(sections, src.AbsPath)
	chunks := p.chunker.Chunk(content)
	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "source_id", src.SourceID)
	}

	stamp := p.now().UTC().Format(time.RFC3339)
	recs := make([]vectorstore.Record, 0, len(chunks))
	res.Types = make(map[string]int)
	for _, chunk := range chunks {
		vec, err := p.embedder.Embed(ctx, EmbeddingInput(res.Title, chunk))
		if err != nil {
			return res, fmt.Errorf("failed to embed chunk %d of %s: %w", chunk.Index, src.SourceID, err)
		}
		recs = append(recs, chunk.Record(src.SourceID, vec, stamp))
		res.Types[chunk.ChunkType]++
		res.charCounts = append(res.charCounts, chunk.CharCount)
	}

	if err := p.store.ReplaceSource(ctx, src.SourceID, recs); err != nil {
		return res, fmt.Errorf("failed to store %s: %w", src.SourceID, err)
	}
	res.Chunks = len(recs)

	p.mu.Lock()
	p.hashes[src.SourceID] = hashHex
	p.mu.Unlock()

	logger.InfoContext(ctx, "ingested knowledge source",
		"source_id", src.SourceID, "chunks", len(recs), "title", res.Title)
	return res, nil
}

func (p *Pipeline) lastHash(sourceID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hashes[sourceID]
}

// EmbeddingInput is the text embedded for a chunk: the document title and breadcrumb, a blank
// line, then the chunk text.
func EmbeddingInput(title string, c Chunk) string {
	header := title
	if c.ContextPath != "" {
		header += " - " + c.ContextPath
	}
	if header == "" {
		return c.Text
	}
	return header + "\n\n" + c.Text
}

// Record converts the chunk into a knowledge record of sourceID.
func (c Chunk) Record(sourceID string, embedding []float32, timestamp string) vectorstore.Record {
	return vectorstore.Record{
		Text:      c.Text,
		Embedding: embedding,
		Timestamp: timestamp,
		Metadata: vectorstore.Metadata{
			Provenance:       vectorstore.ProvenanceKnowledge,
			SourceID:         sourceID,
			ChunkType:        c.ChunkType,
			ContextPath:      c.ContextPath,
			SectionLevel:     c.SectionLevel,
			Keywords:         c.Keywords,
			CharCount:        c.CharCount,
			MainSectionTitle: c.MainSectionTitle,
		},
	}
}
