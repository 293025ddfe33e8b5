package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// Config holds required dependencies for the Genkit-backed generator.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Logger    *slog.Logger

	// RateLimiter throttles outbound model calls. Nil installs the
	// default of 10 req/s sustained with a burst of 30.
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Model is the Genkit-backed Generator.
//
// All configuration is captured immutably at construction time, so a single
// Model is safe for concurrent use by multiple request goroutines.
type Model struct {
	g         *genkit.Genkit
	modelName string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New creates a Model from cfg.
func New(cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	return &Model{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		limiter:   limiter,
		logger:    logger,
	}, nil
}

// Complete issues one blocking generation call.
func (m *Model) Complete(ctx context.Context, system string, msgs []Message) (string, error) {
	result, err := m.generate(ctx, system, msgs, nil)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// Stream opens an incremental generation stream, invoking onChunk per
// delta. The final accumulated text and usage are returned on completion.
func (m *Model) Stream(ctx context.Context, system string, msgs []Message, onChunk func(Chunk) error) (Result, error) {
	return m.generate(ctx, system, msgs, onChunk)
}

func (m *Model) generate(ctx context.Context, system string, msgs []Message, onChunk func(Chunk) error) (Result, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: rate limit wait: %w", ErrGeneration, err)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(m.modelName),
		ai.WithMessages(toAIMessages(msgs)...),
	}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	if onChunk != nil {
		opts = append(opts, ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			return onChunk(Chunk{Delta: chunk.Text()})
		}))
	}

	start := time.Now()
	resp, err := genkit.Generate(ctx, m.g, opts...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	result := Result{Text: resp.Text()}
	if resp.Usage != nil {
		result.Usage = &Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	m.logger.Debug("generation complete",
		"model", m.modelName,
		"streaming", onChunk != nil,
		"response_length", len(result.Text),
		"elapsed", time.Since(start))
	return result, nil
}

// toAIMessages converts transport-neutral messages into Genkit form.
// System-role messages are skipped; system text travels via ai.WithSystem.
func toAIMessages(msgs []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		case RoleSystem:
			continue
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return out
}
