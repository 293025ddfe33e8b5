package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	deepenapi "github.com/Nathanim1919/deepen-backend/api"
	"github.com/Nathanim1919/deepen-backend/internal/capture"
	"github.com/Nathanim1919/deepen-backend/internal/config"
	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/database"
	"github.com/Nathanim1919/deepen-backend/internal/generation"
	"github.com/Nathanim1919/deepen-backend/internal/grounding"
	"github.com/Nathanim1919/deepen-backend/internal/knowledge"
	"github.com/Nathanim1919/deepen-backend/internal/log"
	"github.com/Nathanim1919/deepen-backend/internal/stream"
)

// Setup builds the application in dependency order. On failure everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := log.New(log.Config{})
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so Genkit's TracerProvider picks up the processor.
	a.otelShutdown = provideTracing(ctx, cfg, logger)

	pool, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	captures := capture.New(pool, logger)
	a.Knowledge = knowledge.New(pool, embedder, logger)

	resolver := grounding.NewResolver(captures, logger)
	aggregator := grounding.NewAggregator(resolver, captures, a.Knowledge, cfg.RetrievalLimit, logger)

	model, err := generation.New(generation.Config{
		Genkit:    g,
		ModelName: cfg.ModelName,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generation model: %w", err)
	}

	a.Conversations = conversation.NewService(conversation.NewStore(pool, logger), model, logger)
	coordinator := stream.New(model, a.Conversations, logger)

	server, err := deepenapi.NewServer(deepenapi.ServerConfig{
		Logger:        logger,
		Auth:          deepenapi.HeaderAuth{},
		Pool:          pool,
		Captures:      captures,
		Indexer:       a.Knowledge,
		Conversations: a.Conversations,
		Pipeline:      deepenapi.NewPipeline(aggregator, coordinator, logger),
		ChatTimeout:   cfg.ChatTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideTracing sets up OTLP trace export when enabled. The exporter
// points at a local collector which handles authentication and forwarding.
// Returns a shutdown func; a no-op when tracing is disabled or fails.
func provideTracing(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tc := cfg.Tracing
	if !tc.Enabled {
		return func() {}
	}

	endpoint := tc.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	// Genkit's TracerProvider reads these at Init. Setup runs before any
	// goroutines are spawned, so the Setenv calls are safe here.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)
	logger.Debug("tracing enabled", "endpoint", endpoint, "service", tc.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured model provider.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no auto-discovery; models and embedders are
		// registered explicitly.
		plugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit", "provider", cfg.Provider, "model", cfg.ModelName)
		return g, nil

	default:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit", "provider", config.ProviderGemini, "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// Each provider keys embedders differently.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}
