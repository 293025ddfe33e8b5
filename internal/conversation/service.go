package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/generation"
)

// SystemInstruction is the fixed system prompt prefixed to every
// conversation-flavored generation request.
const SystemInstruction = `You are Deepen, a personal knowledge assistant. Ground your answers in the user's saved content when it is provided, admit when you do not know, and keep a conversational tone.`

// Storage is the persistence surface the service needs. Implemented by
// *Store; defined here so tests can substitute a fake.
type Storage interface {
	Create(ctx context.Context, userID uuid.UUID, title string, sel Selection) (Conversation, error)
	Get(ctx context.Context, userID, id uuid.UUID) (Conversation, error)
	Messages(ctx context.Context, userID, conversationID uuid.UUID) ([]Message, error)
	AppendMessage(ctx context.Context, userID, conversationID uuid.UUID, role, content string, prov *Provenance) (Message, error)
	List(ctx context.Context, userID uuid.UUID, includeArchived bool, limit int) ([]Summary, error)
	UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error
	Archive(ctx context.Context, userID, id uuid.UUID) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// TurnInput is one caller-supplied turn for conversation creation.
type TurnInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Service is the conversation lifecycle manager. It owns validation, title
// derivation, and the fixed system instruction; persistence is delegated
// to Storage and completions to the generator.
type Service struct {
	store     Storage
	generator generation.Generator
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(store Storage, generator generation.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, generator: generator, logger: logger}
}

// CreateSession persists a new conversation with an empty turn list, its
// title derived from the first message.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID, sel Selection, firstMessage string) (Conversation, error) {
	if err := sel.Validate(); err != nil {
		return Conversation{}, err
	}
	return s.store.Create(ctx, userID, DeriveTitle(firstMessage), sel)
}

// Create persists a new conversation seeded with initialTurns, then
// synchronously requests a completion over them and appends the resulting
// assistant turn when non-empty. A conversation cannot be started with
// zero turns.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, title string, sel Selection, initialTurns []TurnInput) (Conversation, error) {
	if err := sel.Validate(); err != nil {
		return Conversation{}, err
	}
	if len(initialTurns) == 0 {
		return Conversation{}, fmt.Errorf("%w: a conversation cannot be started with zero turns", ErrValidation)
	}
	for i, t := range initialTurns {
		if strings.TrimSpace(t.Content) == "" {
			return Conversation{}, fmt.Errorf("%w: turn %d has empty content", ErrValidation, i)
		}
	}
	if title == "" {
		title = DeriveTitle(initialTurns[0].Content)
	}

	c, err := s.store.Create(ctx, userID, title, sel)
	if err != nil {
		return Conversation{}, err
	}

	msgs := make([]generation.Message, 0, len(initialTurns))
	for _, t := range initialTurns {
		role := t.Role
		if role == "" {
			role = RoleUser
		}
		if _, err := s.store.AppendMessage(ctx, userID, c.ID, role, t.Content, nil); err != nil {
			return Conversation{}, fmt.Errorf("appending initial turn: %w", err)
		}
		msgs = append(msgs, generation.Message{Role: role, Content: t.Content})
	}

	reply, err := s.generator.Complete(ctx, SystemInstruction, msgs)
	if err != nil {
		return Conversation{}, err
	}
	if strings.TrimSpace(reply) != "" {
		if _, err := s.store.AppendMessage(ctx, userID, c.ID, RoleAssistant, reply, nil); err != nil {
			return Conversation{}, fmt.Errorf("appending assistant turn: %w", err)
		}
	}

	return s.Get(ctx, userID, c.ID)
}

// SendMessage loads the conversation, appends the user turn, and returns
// the record together with the full turn history including the new turn.
// The caller drives generation and commits the assistant result through
// CommitAssistant; the service never consumes the stream itself, so
// transport cancellation stays decoupled from persistence.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID uuid.UUID, content string) (Conversation, []Message, error) {
	if strings.TrimSpace(content) == "" {
		return Conversation{}, nil, fmt.Errorf("%w: empty message", ErrValidation)
	}

	c, err := s.store.Get(ctx, userID, conversationID)
	if err != nil {
		return Conversation{}, nil, err
	}

	if _, err := s.store.AppendMessage(ctx, userID, conversationID, RoleUser, content, nil); err != nil {
		return Conversation{}, nil, err
	}

	history, err := s.store.Messages(ctx, userID, conversationID)
	if err != nil {
		return Conversation{}, nil, err
	}
	return c, history, nil
}

// CommitAssistant persists a completed assistant turn with its provenance.
func (s *Service) CommitAssistant(ctx context.Context, userID, conversationID uuid.UUID, text string, prov *Provenance) (Message, error) {
	return s.store.AppendMessage(ctx, userID, conversationID, RoleAssistant, text, prov)
}

// Get returns the full record, messages included, or ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (Conversation, error) {
	c, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return Conversation{}, err
	}
	c.Messages, err = s.store.Messages(ctx, userID, id)
	if err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// List returns summaries of the user's conversations, newest activity
// first. Full turn bodies require Get.
func (s *Service) List(ctx context.Context, userID uuid.UUID, includeArchived bool, limit int) ([]Summary, error) {
	return s.store.List(ctx, userID, includeArchived, limit)
}

// UpdateTitle validates and applies a title change.
func (s *Service) UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: empty title", ErrValidation)
	}
	if len([]rune(title)) > MaxTitleRunes {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, MaxTitleRunes)
	}
	return s.store.UpdateTitle(ctx, userID, id, title)
}

// Archive marks the conversation archived. Archival is the only transition
// away from active; nothing triggers it automatically.
func (s *Service) Archive(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Archive(ctx, userID, id)
}

// Delete removes the conversation, reporting ErrNotFound when it is
// absent or unowned. Callers with silent-delete semantics ignore that
// error; the underlying store delete itself is a no-op on absence.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.store.Get(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, userID, id)
}
