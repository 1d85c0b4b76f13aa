package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"semantic-memory/internal/archival"
	"semantic-memory/internal/classifier"
	"semantic-memory/internal/config"
	"semantic-memory/internal/convlog"
	"semantic-memory/internal/handlers"
	"semantic-memory/internal/indexer"
	"semantic-memory/internal/llm"
	"semantic-memory/internal/rag"
	"semantic-memory/internal/service"
	"semantic-memory/internal/storage"
	"semantic-memory/internal/vectorstore"
)

// App holds the wired memory store.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Taxonomy *classifier.Taxonomy
	Log      *convlog.Log
	Store    *vectorstore.MemoryStore
	Trigger  *archival.Trigger
	Ingest   *indexer.Pipeline
	Service  *service.Service

	db *sql.DB
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// OpenApp loads persisted state and wires every component. Close releases it.
func OpenApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tax, err := classifier.LoadTaxonomy(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}

	store, err := vectorstore.Open(ctx, cfg.SummaryFile, cfg.KnowledgeDir, cfg.EmbeddingDim, vectorstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding index: %w", err)
	}
	log, err := convlog.Open(ctx, cfg.LogFile, cfg.Timezone,
		convlog.WithSummaryChecker(store),
		convlog.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation log: %w", err)
	}

	db, err := storage.New(cfg.JournalDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	journal := storage.NewJournalRepo(db)

	embedder := llm.NewEmbeddingsClient(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbedModel, cfg.EmbeddingDim, cfg.LLMTimeout)
	embedder.Retry.MaxAttempts = cfg.LLMMaxRetries
	generator := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	generator.Retry.MaxAttempts = cfg.LLMMaxRetries

	retriever := rag.NewRetriever(embedder, store, log, tax.HistoryDetector(),
		rag.NewRescorer(tax.IntentClassifier(), cfg.Boosts),
		rag.Settings{
			K:          cfg.SearchK,
			MinScore:   cfg.MinScore,
			KnowledgeK: cfg.KnowledgeK,
			UserName:   cfg.UserName,
			BotName:    cfg.BotName,
		}, logger)

	commitLock := &sync.Mutex{}
	archiver := archival.NewPipeline(log, store, embedder, generator,
		archival.Settings{
			MinDayEntries: cfg.MinDayEntries,
			UserName:      cfg.UserName,
			BotName:       cfg.BotName,
			Model:         cfg.LLMModel,
			Temperature:   float32(cfg.LLMTemperature),
			MaxTokens:     cfg.LLMMaxTokens,
		},
		archival.WithJournal(journal),
		archival.WithCommitLock(commitLock),
		archival.WithLogger(logger))

	trigger, err := archival.NewTrigger(ctx, archiver, journal, cfg.ArchiveThreshold, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ingest := indexer.NewPipeline(indexer.NewGoldmarkChunker(tax, indexer.DefaultChunkerConfig()),
		embedder, store, cfg.EmbedModel, indexer.WithPipelineLogger(logger))

	svc := service.NewMemoryService(service.Deps{
		Log:                log,
		Store:              store,
		Retriever:          retriever,
		Archiver:           archiver,
		Trigger:            trigger,
		Journal:            journal,
		Ingest:             ingest,
		CommitLock:         commitLock,
		MinDayEntries:      cfg.MinDayEntries,
		KnowledgeSourceDir: cfg.KnowledgeSrc,
		Logger:             logger,
	})

	logger.DebugContext(ctx, "memory store opened",
		"entries", log.Len(),
		"summaries", store.SummaryCount(),
		"knowledge_records", store.KnowledgeCount(),
		"pending_interactions", trigger.Pending())

	return &App{
		Config:   cfg,
		Logger:   logger,
		Taxonomy: tax,
		Log:      log,
		Store:    store,
		Trigger:  trigger,
		Ingest:   ingest,
		Service:  svc,
		db:       db,
	}, nil
}

// ModelChecks are the health probes for the embedding and generation endpoints.
func (a *App) ModelChecks() []handlers.ModelCheck {
	cfg := a.Config
	return []handlers.ModelCheck{
		{Name: "embedding_model", Probe: llm.NewModelProbe(cfg.EmbedBaseURL, cfg.EmbedAPIKey), Model: cfg.EmbedModel},
		{Name: "llm_model", Probe: llm.NewModelProbe(cfg.LLMBaseURL, cfg.LLMAPIKey), Model: cfg.LLMModel},
	}
}

// Close stops scheduled archival, waits for background cycles and closes the journal.
func (a *App) Close() error {
	a.Trigger.Stop()
	a.Service.Wait()
	return a.db.Close()
}
