package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/kennis/db"
	"github.com/koopa0/kennis/internal/answer"
	"github.com/koopa0/kennis/internal/config"
	"github.com/koopa0/kennis/internal/database"
	"github.com/koopa0/kennis/internal/embed"
	"github.com/koopa0/kennis/internal/enrich"
	"github.com/koopa0/kennis/internal/fetch"
	"github.com/koopa0/kennis/internal/note"
	"github.com/koopa0/kennis/internal/observability"
	"github.com/koopa0/kennis/internal/search"
	"github.com/koopa0/kennis/internal/tag"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.traceCleanup = provideTracing(ctx, cfg)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder, err := provideEmbedder(g, cfg)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	if err := provideServices(a); err != nil {
		return nil, err
	}

	return a, nil
}

// provideTracing registers OTLP trace export before Genkit initialization,
// so Genkit's TracerProvider carries the span processor from the start.
// Returns the cleanup that flushes pending spans.
func provideTracing(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		slog.Warn("setting up trace export, tracing disabled", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and opens the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, err
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports gemini (default), ollama, and openai providers.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var g *genkit.Genkit

	switch provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin
// and wraps it for storage: fixed output dimensionality, then an in-memory
// cache when cache_size is positive.
//
// Each provider registers embedders differently:
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) (embed.Provider, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderGemini
	}

	var embedder ai.Embedder
	switch provider {
	case config.ProviderOllama:
		embedder = ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		embedder = genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // "gemini"
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, provider)
	}

	base, err := embed.NewGenkitProvider(embedder, cfg.EmbedderModel)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return base, nil
	}

	cacheOpts := []embed.CacheOption{embed.WithCapacity(cfg.CacheSize)}
	if cfg.CacheTTLMinutes > 0 {
		ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
		cacheOpts = append(cacheOpts, embed.WithEvictor(embed.NewTTL(embed.NewLRU(), ttl)))
	}
	cache, err := embed.NewCache(base, slog.Default(), cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return cache, nil
}

// provideServices builds the note store and the services on top of it,
// storing each on a. Requires Pool, Genkit and Embedder to be set.
func provideServices(a *App) error {
	logger := slog.Default()
	cfg := a.Config

	notes, err := note.NewStore(a.Pool, a.Embedder, logger)
	if err != nil {
		return fmt.Errorf("creating note store: %w", err)
	}
	a.Notes = notes

	searcher, err := search.New(notes, a.Embedder, logger)
	if err != nil {
		return fmt.Errorf("creating searcher: %w", err)
	}
	a.Searcher = searcher

	tagOpts := []tag.SuggesterOption{
		tag.WithSuggestions(cfg.TagSuggestions),
		tag.WithDiversity(cfg.TagDiversity),
	}
	if len(cfg.TagTaxonomy) > 0 {
		tagOpts = append(tagOpts, tag.WithTaxonomy(cfg.TagTaxonomy...))
	}
	suggester, err := tag.NewSuggester(a.Genkit, cfg.FullModelName(), a.Embedder, logger, tagOpts...)
	if err != nil {
		return fmt.Errorf("creating tag suggester: %w", err)
	}
	a.Suggester = suggester

	enricher, err := enrich.New(a.Genkit, cfg.FullModelName(), suggester, logger)
	if err != nil {
		return fmt.Errorf("creating enricher: %w", err)
	}
	a.Enricher = enricher

	generator, err := answer.NewGenerator(a.Genkit, cfg.FullModelName(), logger,
		answer.WithTemperature(cfg.Temperature),
	)
	if err != nil {
		return fmt.Errorf("creating answer generator: %w", err)
	}
	a.Generator = generator

	fetchOpts := []fetch.Option{
		fetch.WithParallelism(cfg.Fetch.Parallelism),
		fetch.WithDelay(time.Duration(cfg.Fetch.DelayMs) * time.Millisecond),
		fetch.WithTimeout(time.Duration(cfg.Fetch.TimeoutMs) * time.Millisecond),
		fetch.WithMaxBody(cfg.Fetch.MaxBodyBytes),
	}
	if cfg.Fetch.AllowPrivate {
		fetchOpts = append(fetchOpts, fetch.WithPrivateNetwork())
	}
	fetcher, err := fetch.New(logger, fetchOpts...)
	if err != nil {
		return fmt.Errorf("creating fetcher: %w", err)
	}
	a.Fetcher = fetcher

	return nil
}
