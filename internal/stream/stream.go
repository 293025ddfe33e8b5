// Package stream drives one generation request end to end: it relays
// incremental deltas to the caller, accumulates the final text, and
// commits the assistant turn once generation completes.
//
// The coordinator sits between transport and the conversation lifecycle so
// that transport-level cancellation never persists partial output: a
// canceled stream stops at the next chunk boundary and the accumulated
// text is discarded.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/generation"
)

// Committer persists the completed assistant turn. Implemented by
// *conversation.Service.
type Committer interface {
	CommitAssistant(ctx context.Context, userID, conversationID uuid.UUID, text string, prov *conversation.Provenance) (conversation.Message, error)
}

// Request is one generation drive.
type Request struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	System         string
	Messages       []generation.Message

	// Provenance is attached to the committed assistant turn.
	Provenance *conversation.Provenance
}

// Sink receives incremental events. A nil OnDelta selects the blocking
// path: one generation call, no streaming. Errors returned from either
// callback abort the drive.
type Sink struct {
	OnDelta func(delta string) error
	OnUsage func(u generation.Usage) error
}

// Result is the outcome of a completed drive.
type Result struct {
	Text    string
	Usage   *generation.Usage
	Message conversation.Message
}

// Coordinator drives generation requests. Safe for concurrent use.
type Coordinator struct {
	generator generation.Generator
	committer Committer
	logger    *slog.Logger
}

// New creates a Coordinator.
func New(generator generation.Generator, committer Committer, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{generator: generator, committer: committer, logger: logger}
}

// Drive runs one generation request to completion.
//
// Streaming path: each delta is appended to the accumulator and handed to
// sink.OnDelta in arrival order; usage is forwarded through sink.OnUsage
// when the backend reports it. Cancellation is observed at every chunk
// boundary; on cancel the partial text is discarded and no assistant turn
// is persisted. On normal completion the accumulated text is committed
// through the Committer before Drive returns, so a successful return means
// the turn is durable.
func (c *Coordinator) Drive(ctx context.Context, req Request, sink Sink) (Result, error) {
	var text string

	if sink.OnDelta == nil {
		reply, err := c.generator.Complete(ctx, req.System, req.Messages)
		if err != nil {
			return Result{}, err
		}
		text = reply
	} else {
		var sb strings.Builder
		result, err := c.generator.Stream(ctx, req.System, req.Messages, func(chunk generation.Chunk) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sb.WriteString(chunk.Delta)
			return sink.OnDelta(chunk.Delta)
		})
		if err != nil {
			return Result{}, err
		}
		// Prefer the backend's final text; fall back to the
		// accumulator when the backend returns none.
		text = result.Text
		if text == "" {
			text = sb.String()
		}
		if result.Usage != nil && sink.OnUsage != nil {
			if err := sink.OnUsage(*result.Usage); err != nil {
				return Result{}, err
			}
		}

		res := Result{Text: text, Usage: result.Usage}
		return c.commit(ctx, req, res)
	}

	return c.commit(ctx, req, Result{Text: text})
}

func (c *Coordinator) commit(ctx context.Context, req Request, res Result) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(res.Text) == "" {
		c.logger.Warn("generation produced empty text, nothing committed",
			"conversation_id", req.ConversationID)
		return res, nil
	}

	m, err := c.committer.CommitAssistant(ctx, req.UserID, req.ConversationID, res.Text, req.Provenance)
	if err != nil {
		return Result{}, fmt.Errorf("committing assistant turn: %w", err)
	}
	res.Message = m
	return res, nil
}
