package grounding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/knowledge"
)

// Retriever is the similarity-search surface the aggregator needs.
// Implemented by *knowledge.Store; defined here so tests can substitute
// a fake.
type Retriever interface {
	Search(ctx context.Context, query string, userID uuid.UUID, scopeIDs []uuid.UUID, limit int) ([]knowledge.Chunk, error)
}

// Aggregator orchestrates scope resolution, source metadata lookup, and
// fragment retrieval into a single Context value per turn.
type Aggregator struct {
	resolver  *Resolver
	captures  CaptureStore
	retriever Retriever
	logger    *slog.Logger

	// defaultLimit is the retrieval ceiling when the query carries none.
	defaultLimit int
}

// NewAggregator creates an Aggregator. defaultLimit <= 0 falls back to
// DefaultFragmentLimit.
func NewAggregator(resolver *Resolver, captures CaptureStore, retriever Retriever, defaultLimit int, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultFragmentLimit
	}
	return &Aggregator{
		resolver:     resolver,
		captures:     captures,
		retriever:    retriever,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// Aggregate resolves the query's scope and retrieves the most relevant
// fragments from it.
//
// An empty resolved scope returns an empty Context without a retrieval
// call. A retrieval failure degrades to the sources already gathered with
// no fragments; it is logged but never propagated, so a broken search
// index cannot take down chat. Scope resolution failures do propagate,
// wrapped as ErrAggregation.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (Context, error) {
	scopeIDs, err := a.resolver.Resolve(ctx, q.UserID, q.Policy, q.Items, q.Filters)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %w", ErrAggregation, err)
	}

	if len(scopeIDs) == 0 {
		return emptyContext(), nil
	}

	metas, err := a.captures.GetMeta(ctx, q.UserID, scopeIDs)
	if err != nil {
		return Context{}, fmt.Errorf("%w: fetching source metadata: %w", ErrAggregation, err)
	}

	relevance := relevanceExplicit
	if q.Policy == PolicyAll {
		relevance = relevanceImplicit
	}

	sources := make([]Source, len(metas))
	for i, m := range metas {
		sources[i] = Source{
			ID:        m.ID,
			Kind:      string(KindCapture),
			Title:     m.DisplayTitle(),
			Relevance: relevance,
		}
	}

	limit := q.Filters.Limit
	if limit <= 0 {
		limit = a.defaultLimit
	}

	chunks, err := a.retriever.Search(ctx, q.Text, q.UserID, scopeIDs, limit)
	if err != nil {
		a.logger.Warn("retrieval failed, degrading to sources-only context",
			"user_id", q.UserID, "scope_size", len(scopeIDs), "error", err)
		return Context{
			Sources:      sources,
			Fragments:    []Fragment{},
			TotalSources: len(sources),
		}, nil
	}

	fragments := make([]Fragment, len(chunks))
	for i, c := range chunks {
		fragments[i] = Fragment{
			Text:     c.Text,
			SourceID: c.CaptureID,
			Kind:     string(KindCapture),
			Score:    c.Score,
		}
	}

	return Context{
		Sources:      sources,
		Fragments:    fragments,
		TotalSources: len(sources),
	}, nil
}

func emptyContext() Context {
	return Context{
		Sources:      []Source{},
		Fragments:    []Fragment{},
		TotalSources: 0,
	}
}
