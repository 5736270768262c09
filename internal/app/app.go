package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"vitalsource-rag/internal/config"
	"vitalsource-rag/internal/extraction"
	"vitalsource-rag/internal/handlers"
	apihttp "vitalsource-rag/internal/http"
	"vitalsource-rag/internal/indexer"
	"vitalsource-rag/internal/llm"
	"vitalsource-rag/internal/rag"
	"vitalsource-rag/internal/service"
	"vitalsource-rag/internal/storage"
	"vitalsource-rag/internal/vectorstore"
)

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB        *sql.DB
	PageRepo  *storage.PageRepo
	ChunkRepo *storage.ChunkRepo
	RunRepo   *storage.RunRepo

	VectorStore *vectorstore.QdrantStore
	Embedder    llm.Embedder
	ChatClient  llm.ChatCompleter
	Extractor   extraction.Extractor

	Chunker   *indexer.Chunker
	Indexer   *indexer.Indexer
	Retriever *rag.Retriever
	Generator rag.Generator

	IngestService service.IngestService
	QueryService  service.QueryService
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// New wires every component. Remote clients are created but not contacted;
// the vector store is first touched by the first ingest or query.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.ValidateRemote(); err != nil {
		return nil, err
	}

	rules, err := config.LoadRules(cfg.SectionRulesFile)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	a.DB, err = storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(a.DB); err != nil {
		_ = a.DB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Database initialized", "path", cfg.DBPath)

	a.PageRepo = storage.NewPageRepo(a.DB)
	a.ChunkRepo = storage.NewChunkRepo(a.DB)
	a.RunRepo = storage.NewRunRepo(a.DB)

	a.VectorStore, err = vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	a.Embedder, err = NewEmbedder(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ChatClient, err = NewChatCompleter(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	cleaner, err := extraction.NewCleaner(rules.NoisePatterns)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid noise pattern: %w", err)
	}
	a.Extractor, err = extraction.NewLlamaParseClient(extraction.LlamaParseConfig{
		BaseURL:      cfg.LlamaParseBaseURL,
		APIKey:       cfg.LlamaCloudAPIKey,
		PollInterval: cfg.LlamaParsePollInterval,
		Timeout:      cfg.LlamaParseTimeout,
		DebugDir:     cfg.ProcessedDir,
	}, cleaner)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Chunker = indexer.NewChunker(SectionRules(rules))
	a.Indexer = indexer.NewIndexer(indexer.Config{
		Collection:      cfg.QdrantCollection,
		Dimension:       cfg.EmbeddingDimension,
		ResetCollection: cfg.ResetCollectionOnIngest,
		ReadyTimeout:    cfg.QdrantReadyTimeout,
	}, a.Embedder, a.VectorStore, a.PageRepo, a.ChunkRepo)
	a.Retriever = rag.NewRetriever(a.Embedder, a.VectorStore, cfg.QdrantCollection, cfg.MinCertainty, cfg.RetrievalLimit)
	a.Generator = rag.NewLLMGenerator(a.ChatClient, cfg.LLMModelName, cfg.LLMMaxTokens)

	a.IngestService = service.NewIngestService(service.IngestConfig{
		RawDir:            cfg.RawDir,
		AllowedExtensions: cfg.AllowedExtensions,
	}, a.Extractor, a.Chunker, a.Indexer, a.RunRepo)
	a.QueryService = service.NewQueryService(a.Retriever, a.Generator)

	logger.Info("Application initialized",
		"embedding_provider", cfg.EmbeddingProvider,
		"llm_provider", cfg.LLMProvider,
		"collection", cfg.QdrantCollection)
	return a, nil
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return apihttp.NewRouter(&apihttp.Deps{
		Logger: a.Logger,
		Ingest: handlers.NewIngestHandler(a.IngestService, a.Config.MaxUploadBytes),
		Query:  handlers.NewQueryHandler(a.QueryService),
		Health: handlers.NewHealthHandler(a.VectorStore, a.Config.QdrantCollection, a.DB),
		Stats: handlers.NewStatsHandler(a.PageRepo, a.ChunkRepo, a.RunRepo,
			a.VectorStore, a.Config.QdrantCollection, a.Config.EmbeddingModelName),
	})
}

// Close releases the database and vector store connections.
func (a *App) Close() {
	if a.VectorStore != nil {
		if err := a.VectorStore.Close(); err != nil {
			a.Logger.Warn("failed to close vector store", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("failed to close database", "error", err)
		}
	}
}

// SectionRules converts the rules file table into chunker rules. An empty
// table yields nil so the chunker falls back to its defaults.
func SectionRules(rules *config.Rules) []indexer.SectionRule {
	if rules == nil || len(rules.Sections) == 0 {
		return nil
	}
	out := make([]indexer.SectionRule, 0, len(rules.Sections))
	for _, r := range rules.Sections {
		out = append(out, indexer.SectionRule{Section: r.Section, Keywords: r.Keywords})
	}
	return out
}

// NewEmbedder builds the configured embedding client, rate limited when
// EMBEDDING_RPS is set.
func NewEmbedder(ctx context.Context, cfg *config.Config) (llm.Embedder, error) {
	var embedder llm.Embedder
	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedder: %w", err)
		}
		embedder = gemini
	case config.ProviderOpenAI:
		embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}
	return llm.NewRateLimitedEmbedder(embedder, cfg.EmbeddingRPS), nil
}

// NewChatCompleter builds the configured answer model client.
func NewChatCompleter(ctx context.Context, cfg *config.Config) (llm.ChatCompleter, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName), nil
	case config.ProviderAnthropic:
		client, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.LLMModelName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return client, nil
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.GoogleAPIKey, cfg.LLMModelName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
