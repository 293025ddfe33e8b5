package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/capture"
	"github.com/Nathanim1919/deepen-backend/internal/conversation"
)

// CaptureStore is the storage surface the content handlers need.
// Implemented by *capture.Store; defined here so tests can substitute a
// fake.
type CaptureStore interface {
	Create(ctx context.Context, userID uuid.UUID, c capture.Capture) (capture.Capture, error)
	Get(ctx context.Context, userID, id uuid.UUID) (capture.Capture, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]capture.Capture, error)
	SetBookmarked(ctx context.Context, userID, id uuid.UUID, bookmarked bool) error
	Delete(ctx context.Context, userID, id uuid.UUID) error

	CreateCollection(ctx context.Context, userID uuid.UUID, name string, captureIDs []uuid.UUID) (capture.Collection, error)
	GetCollection(ctx context.Context, userID, id uuid.UUID) (capture.Collection, error)
	ListCollections(ctx context.Context, userID uuid.UUID, limit int) ([]capture.Collection, error)
}

// Indexer maintains the retrieval index alongside capture writes.
// Implemented by *knowledge.Store.
type Indexer interface {
	Index(ctx context.Context, c capture.Capture) error
	DeleteCapture(ctx context.Context, captureID uuid.UUID) error
}

// ConversationService is the lifecycle surface the conversational handlers
// need. Implemented by *conversation.Service.
type ConversationService interface {
	CreateSession(ctx context.Context, userID uuid.UUID, sel conversation.Selection, firstMessage string) (conversation.Conversation, error)
	Create(ctx context.Context, userID uuid.UUID, title string, sel conversation.Selection, initialTurns []conversation.TurnInput) (conversation.Conversation, error)
	SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (conversation.Conversation, []conversation.Message, error)
	Get(ctx context.Context, userID, id uuid.UUID) (conversation.Conversation, error)
	List(ctx context.Context, userID uuid.UUID, includeArchived bool, limit int) ([]conversation.Summary, error)
	UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error
	Archive(ctx context.Context, userID, id uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
