package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages conversation persistence.
//
// Store is safe for concurrent use by multiple goroutines. It imposes no
// ordering guarantee across concurrent appends to the same conversation
// beyond the arrival order of the persistence calls.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// NewStore creates a new Store instance.
func NewStore(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Create persists a new conversation owned by userID with no messages.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, title string, sel Selection) (Conversation, error) {
	selJSON, err := json.Marshal(sel)
	if err != nil {
		return Conversation{}, fmt.Errorf("encoding selection: %w", err)
	}

	now := time.Now().UTC()
	c := Conversation{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        title,
		Selection:    sel,
		Status:       StatusActive,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO conversations (id, user_id, title, selection, status, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.Title, selJSON, c.Status, c.CreatedAt, c.LastActiveAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "user_id", userID, "selection_mode", sel.Mode)
	return c, nil
}

// Get returns one conversation owned by userID, without messages, or
// ErrNotFound.
func (s *Store) Get(ctx context.Context, userID, id uuid.UUID) (Conversation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, selection, status, created_at, last_active_at
		FROM conversations
		WHERE id = $1 AND user_id = $2`,
		id, userID)

	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("fetching conversation: %w", err)
	}
	return c, nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	var selJSON []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &selJSON, &c.Status, &c.CreatedAt, &c.LastActiveAt); err != nil {
		return Conversation{}, err
	}
	if err := json.Unmarshal(selJSON, &c.Selection); err != nil {
		return Conversation{}, fmt.Errorf("decoding selection: %w", err)
	}
	return c, nil
}

// Messages returns the full ordered turn history for one conversation
// owned by userID. An empty history is valid; ownership is enforced by the
// join, so an unowned conversation reads as empty.
func (s *Store) Messages(ctx context.Context, userID, conversationID uuid.UUID) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.role, m.content, m.status, m.provenance, m.sequence_number, m.created_at
		FROM conversation_messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = $1 AND c.user_id = $2
		ORDER BY m.sequence_number`,
		conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var provJSON []byte
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Status, &provJSON, &m.Sequence, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if len(provJSON) > 0 {
			m.Provenance = &Provenance{}
			if err := json.Unmarshal(provJSON, m.Provenance); err != nil {
				return nil, fmt.Errorf("decoding provenance: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendMessage appends a turn to a conversation owned by userID and
// refreshes last_active_at. The sequence number is assigned here; the
// unique constraint on (conversation_id, sequence_number) guards
// concurrent appenders.
func (s *Store) AppendMessage(ctx context.Context, userID, conversationID uuid.UUID, role, content string, prov *Provenance) (Message, error) {
	// Ownership gate and activity refresh in one statement. Zero rows
	// means absent or unowned.
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET last_active_at = $3
		WHERE id = $1 AND user_id = $2`,
		conversationID, userID, time.Now().UTC())
	if err != nil {
		return Message{}, fmt.Errorf("refreshing conversation activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Message{}, ErrNotFound
	}

	var provJSON []byte
	if prov != nil {
		provJSON, err = json.Marshal(prov)
		if err != nil {
			return Message{}, fmt.Errorf("encoding provenance: %w", err)
		}
	}

	m := Message{
		ID:         uuid.New(),
		Role:       role,
		Content:    content,
		Status:     MessageSent,
		Provenance: prov,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, content, status, provenance, sequence_number, created_at)
		SELECT $1, $2, $3, $4, $5, $6, COALESCE(MAX(sequence_number), 0) + 1, $7
		FROM conversation_messages WHERE conversation_id = $2
		RETURNING sequence_number`,
		m.ID, conversationID, m.Role, m.Content, m.Status, provJSON, m.CreatedAt).Scan(&m.Sequence)
	if err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}

	return m, nil
}

// List returns summaries of the user's conversations, newest activity
// first. Archived conversations are excluded unless includeArchived is
// set. No turn bodies are returned; use Get plus Messages for those.
func (s *Store) List(ctx context.Context, userID uuid.UUID, includeArchived bool, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT c.id, c.title, c.selection, c.status, c.created_at, c.last_active_at,
		       count(m.id)
		FROM conversations c
		LEFT JOIN conversation_messages m ON m.conversation_id = c.id
		WHERE c.user_id = $1`
	if !includeArchived {
		query += ` AND c.status = 'active'`
	}
	query += `
		GROUP BY c.id
		ORDER BY c.last_active_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var selJSON []byte
		if err := rows.Scan(&sum.ID, &sum.Title, &selJSON, &sum.Status, &sum.CreatedAt, &sum.LastActiveAt, &sum.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning conversation summary: %w", err)
		}
		if err := json.Unmarshal(selJSON, &sum.Selection); err != nil {
			return nil, fmt.Errorf("decoding selection: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// UpdateTitle sets the title of a conversation owned by userID, or returns
// ErrNotFound. Validation happens in the service.
func (s *Store) UpdateTitle(ctx context.Context, userID, id uuid.UUID, title string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET title = $3, last_active_at = $4
		WHERE id = $1 AND user_id = $2`,
		id, userID, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive transitions an active conversation to archived, or returns
// ErrNotFound when it is absent, unowned, or already archived.
func (s *Store) Archive(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET status = $3, last_active_at = $4
		WHERE id = $1 AND user_id = $2 AND status = $5`,
		id, userID, StatusArchived, time.Now().UTC(), StatusActive)
	if err != nil {
		return fmt.Errorf("archiving conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a conversation owned by userID together with its
// messages. Deleting an absent or unowned conversation is a silent no-op;
// callers that need a not-found signal check existence first.
func (s *Store) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM conversations WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Debug("deleted conversation", "id", id, "user_id", userID)
	}
	return nil
}
