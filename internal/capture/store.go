package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so callers can run store operations inside a
// transaction when they need to.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages capture and collection persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// New creates a new Store instance.
func New(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const captureColumns = "id, user_id, title, url, content, summary, format, bookmarked, status, created_at"

func scanCapture(row pgx.Row) (Capture, error) {
	var c Capture
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.URL, &c.Content, &c.Summary,
		&c.Format, &c.Bookmarked, &c.Status, &c.CreatedAt)
	return c, err
}

// Create persists a new capture owned by userID.
// ID and CreatedAt are assigned here; Status starts active.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, c Capture) (Capture, error) {
	if strings.TrimSpace(c.Content) == "" {
		return Capture{}, ErrEmptyContent
	}

	c.ID = uuid.New()
	c.UserID = userID
	c.Status = StatusActive
	c.CreatedAt = time.Now().UTC()
	if c.Format == "" {
		c.Format = "text"
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO captures (id, user_id, title, url, content, summary, format, bookmarked, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.UserID, c.Title, c.URL, c.Content, c.Summary, c.Format, c.Bookmarked, c.Status, c.CreatedAt)
	if err != nil {
		return Capture{}, fmt.Errorf("inserting capture: %w", err)
	}

	s.logger.Debug("created capture", "id", c.ID, "user_id", userID, "content_length", len(c.Content))
	return c, nil
}

// Get returns one capture owned by userID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID, id uuid.UUID) (Capture, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+captureColumns+" FROM captures WHERE id = $1 AND user_id = $2 AND status <> $3",
		id, userID, StatusDeleted)
	c, err := scanCapture(row)
	if err == pgx.ErrNoRows {
		return Capture{}, ErrNotFound
	}
	if err != nil {
		return Capture{}, fmt.Errorf("querying capture: %w", err)
	}
	return c, nil
}

// List returns the user's captures, newest first.
func (s *Store) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Capture, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+captureColumns+` FROM captures
		WHERE user_id = $1 AND status <> $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, StatusDeleted, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	defer rows.Close()

	var captures []Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning capture: %w", err)
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

// SetBookmarked flips the bookmarked flag on one owned capture.
func (s *Store) SetBookmarked(ctx context.Context, userID, id uuid.UUID, bookmarked bool) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE captures SET bookmarked = $1 WHERE id = $2 AND user_id = $3 AND status <> $4",
		bookmarked, id, userID, StatusDeleted)
	if err != nil {
		return fmt.Errorf("updating bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one owned capture. Chunks cascade via foreign key.
func (s *Store) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM captures WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("deleting capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// listFilterSQL appends WHERE clauses for a ListFilter, continuing arg
// numbering from the given args slice.
func listFilterSQL(filter ListFilter, args []any) (string, []any) {
	var sb strings.Builder
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter)
		sb.WriteString(" AND created_at >= $" + strconv.Itoa(len(args)))
	}
	if !filter.CreatedBefore.IsZero() {
		args = append(args, filter.CreatedBefore)
		sb.WriteString(" AND created_at <= $" + strconv.Itoa(len(args)))
	}
	if len(filter.Formats) > 0 {
		args = append(args, filter.Formats)
		sb.WriteString(" AND format = ANY($" + strconv.Itoa(len(args)) + ")")
	}
	return sb.String(), args
}

// ListActive returns identifiers of the user's active captures, newest
// first, optionally narrowed by filter and capped at limit.
func (s *Store) ListActive(ctx context.Context, userID uuid.UUID, filter ListFilter, limit int) ([]uuid.UUID, error) {
	args := []any{userID, StatusActive}
	where, args := listFilterSQL(filter, args)
	args = append(args, limit)

	query := "SELECT id FROM captures WHERE user_id = $1 AND status = $2" + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	return s.queryIDs(ctx, query, args...)
}

// ListBookmarked returns identifiers of the user's active, bookmarked
// captures, newest first, capped at limit.
func (s *Store) ListBookmarked(ctx context.Context, userID uuid.UUID, filter ListFilter, limit int) ([]uuid.UUID, error) {
	args := []any{userID, StatusActive}
	where, args := listFilterSQL(filter, args)
	args = append(args, limit)

	query := "SELECT id FROM captures WHERE user_id = $1 AND status = $2 AND bookmarked" + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	return s.queryIDs(ctx, query, args...)
}

// FilterOwnedActive returns the subset of ids that exist, are active, and
// are owned by userID. Unknown, inactive, or foreign identifiers are
// silently dropped.
func (s *Store) FilterOwnedActive(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryIDs(ctx,
		"SELECT id FROM captures WHERE user_id = $1 AND status = $2 AND id = ANY($3)",
		userID, StatusActive, ids)
}

// GetMeta returns the lightweight projection for the given owned captures
// in one batched lookup. Results follow the order of ids where possible.
func (s *Store) GetMeta(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]Meta, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx,
		"SELECT id, title, url FROM captures WHERE user_id = $1 AND id = ANY($2)",
		userID, ids)
	if err != nil {
		return nil, fmt.Errorf("querying capture metadata: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]Meta, len(ids))
	for rows.Next() {
		var m Meta
		if err := rows.Scan(&m.ID, &m.Title, &m.URL); err != nil {
			return nil, fmt.Errorf("scanning capture metadata: %w", err)
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	metas := make([]Meta, 0, len(byID))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			metas = append(metas, m)
		}
	}
	return metas, nil
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying capture ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning capture id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
