package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/generation"
	"github.com/Nathanim1919/deepen-backend/internal/grounding"
	"github.com/Nathanim1919/deepen-backend/internal/stream"
)

// Aggregator resolves scope and retrieves grounding context for one turn.
// Implemented by *grounding.Aggregator.
type Aggregator interface {
	Aggregate(ctx context.Context, q grounding.Query) (grounding.Context, error)
}

// Driver runs one generation request and commits the assistant turn.
// Implemented by *stream.Coordinator.
type Driver interface {
	Drive(ctx context.Context, req stream.Request, sink stream.Sink) (stream.Result, error)
}

// Pipeline is the grounded-turn pipeline shared by the session-flavored
// and conversation-flavored endpoints: aggregate context for the
// conversation's scope, assemble the prompt over the turn history, then
// drive generation and commit the assistant turn.
type Pipeline struct {
	aggregator Aggregator
	driver     Driver
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(aggregator Aggregator, driver Driver, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{aggregator: aggregator, driver: driver, logger: logger}
}

// TurnFilters narrows retrieval for one turn.
type TurnFilters struct {
	From    time.Time `json:"from,omitzero"`
	To      time.Time `json:"to,omitzero"`
	Formats []string  `json:"formats,omitempty"`
	Limit   int       `json:"limit,omitempty"`
}

// preparedTurn is the aggregation outcome for one user message, ready to
// hand to the driver.
type preparedTurn struct {
	Context    grounding.Context
	Request    stream.Request
	Provenance *conversation.Provenance
}

// prepare aggregates context for the conversation's scope and assembles
// the generation request. message is the new user text; history is the
// full turn list including it.
func (p *Pipeline) prepare(ctx context.Context, conv conversation.Conversation, history []conversation.Message, message string, filters TurnFilters) (preparedTurn, error) {
	policyName, selItems := conv.Selection.ScopePolicy()
	policy, err := grounding.ParsePolicy(policyName)
	if err != nil {
		return preparedTurn{}, err
	}

	items := make([]grounding.Item, len(selItems))
	for i, it := range selItems {
		items[i] = grounding.Item{Kind: grounding.ItemKind(it.Kind), ID: it.ID}
	}

	gctx, err := p.aggregator.Aggregate(ctx, grounding.Query{
		UserID: conv.UserID,
		Policy: policy,
		Items:  items,
		Text:   message,
		Filters: grounding.Filters{
			From:    filters.From,
			To:      filters.To,
			Formats: filters.Formats,
			Limit:   filters.Limit,
		},
	})
	if err != nil {
		return preparedTurn{}, err
	}

	turns := make([]grounding.Turn, len(history))
	for i, m := range history {
		turns[i] = grounding.Turn{Role: m.Role, Content: m.Content}
	}
	prompt := grounding.BuildPrompt(turns, gctx)

	prov := &conversation.Provenance{
		SourceIDs:  gctx.SourceIDs(),
		ChunkCount: len(gctx.Fragments),
	}

	return preparedTurn{
		Context: gctx,
		Request: stream.Request{
			UserID:         conv.UserID,
			ConversationID: conv.ID,
			Messages:       []generation.Message{{Role: generation.RoleUser, Content: prompt}},
			Provenance:     prov,
		},
		Provenance: prov,
	}, nil
}

// RunBlocking executes the pipeline with a single blocking generation
// call, bounded by timeout.
func (p *Pipeline) RunBlocking(ctx context.Context, conv conversation.Conversation, history []conversation.Message, message string, filters TurnFilters, timeout time.Duration) (stream.Result, grounding.Context, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	turn, err := p.prepare(ctx, conv, history, message, filters)
	if err != nil {
		return stream.Result{}, grounding.Context{}, err
	}
	res, err := p.driver.Drive(ctx, turn.Request, stream.Sink{})
	if err != nil {
		return stream.Result{}, grounding.Context{}, err
	}
	return res, turn.Context, nil
}

// RunStreaming executes the pipeline over an SSE stream: deltas and usage
// as they arrive, then a done event naming the committed assistant
// message. A failure after streaming has begun is reported as a terminal
// error event; deltas already delivered stand.
func (p *Pipeline) RunStreaming(ctx context.Context, conv conversation.Conversation, history []conversation.Message, message string, filters TurnFilters, sse *sseWriter) {
	turn, err := p.prepare(ctx, conv, history, message, filters)
	if err != nil {
		_, code := classifyError(err)
		sse.Error(code, err.Error())
		return
	}

	res, err := p.driver.Drive(ctx, turn.Request, stream.Sink{
		OnDelta: sse.Delta,
		OnUsage: sse.Usage,
	})
	if err != nil {
		p.logger.Error("streamed turn failed", "conversation_id", conv.ID, "error", err)
		_, code := classifyError(err)
		sse.Error(code, err.Error())
		return
	}

	if err := sse.Done(conv.ID, res.Message.ID); err != nil {
		p.logger.Debug("client gone before done event", "conversation_id", conv.ID, "error", err)
	}
}
