package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/loupe-ai/loupe/db"
	"github.com/loupe-ai/loupe/internal/agent"
	"github.com/loupe-ai/loupe/internal/config"
	"github.com/loupe-ai/loupe/internal/conversation"
	"github.com/loupe-ai/loupe/internal/index"
	"github.com/loupe-ai/loupe/internal/llm"
	"github.com/loupe-ai/loupe/internal/log"
	"github.com/loupe-ai/loupe/internal/media"
	"github.com/loupe-ai/loupe/internal/retrieval"
	"github.com/loupe-ai/loupe/internal/tool"
)

// Setup initializes the application. Call Close on the returned App to
// release its resources; on error Setup has already cleaned up.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	textEmbedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if textEmbedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	imageEmbedder := googlegenai.GoogleAIEmbedder(g, cfg.ImageEmbedderModel)
	if imageEmbedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.ImageEmbedderModel)
	}

	indexes := provideIndexes(pool, textEmbedder, imageEmbedder, logger)

	a.Searcher = retrieval.NewSearcher(retrieval.Config{
		Documents:   indexes.Documents,
		Images:      indexes.Images,
		Frames:      indexes.Frames,
		Transcripts: indexes.Transcripts,
		Policy:      cfg.Retrieval,
		Logger:      logger,
	})

	chatIndex := index.New(pool, textEmbedder, conversation.IndexCollection, logger)
	a.Conversations = conversation.NewStore(pool, chatIndex, logger)

	a.Media = media.NewStore(media.StoreConfig{
		DB:      pool,
		Indexes: indexes,
		Logger:  logger,
	})

	a.Runs = agent.NewPostgresRunStore(pool)
	a.Tools = provideTools(cfg, a.Searcher, logger)

	client, err := llm.NewAnthropic(llm.AnthropicConfig{
		Model:  cfg.Model,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	a.Pipeline = agent.NewPipeline(agent.PipelineConfig{
		LLM:       client,
		Tools:     a.Tools,
		Retriever: a.Searcher,
		History:   a.Conversations,
		Runs:      a.Runs,
		Policy:    cfg.Retrieval,
		Logger:    logger,
	})

	return a, nil
}

// provideOtelShutdown registers an OTLP span exporter with Genkit's tracer
// provider. Must run before provideGenkit so the processor is in place when
// spans start. Returns a shutdown func; disabled tracing returns a no-op.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tc := cfg.Tracing
	if !tc.Enabled {
		return func() {}
	}

	host := tc.CollectorHost
	if host == "" {
		host = "localhost:4318"
	}
	// Genkit's TracerProvider reads these at span creation.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(host),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	tracing.TracerProvider().RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	logger.Debug("tracing enabled", "collector", host, "service", tc.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and opens the connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes Genkit with the Google AI plugin, which reads
// GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideIndexes creates the four modality indexes over the shared
// embeddings table.
func provideIndexes(pool *pgxpool.Pool, text, image ai.Embedder, logger log.Logger) media.Indexes {
	return media.Indexes{
		Documents:   index.New(pool, text, CollectionDocuments, logger),
		Images:      index.New(pool, image, CollectionImages, logger),
		Frames:      index.New(pool, image, CollectionFrames, logger),
		Transcripts: index.New(pool, text, CollectionTranscripts, logger),
	}
}

// provideTools registers the built-in tools.
func provideTools(cfg *config.Config, searcher *retrieval.Searcher, logger log.Logger) *tool.Registry {
	registry := tool.NewRegistry(logger)
	registry.Register(tool.NewWebSearch(nil, cfg.WebSearchMaxResults))
	registry.Register(tool.NewReadPage(nil))
	registry.Register(tool.NewTranscriptSearch(searcher))
	return registry
}
