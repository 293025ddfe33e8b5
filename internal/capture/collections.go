package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateCollection persists a new named collection. Member captures are
// verified for ownership; foreign identifiers are dropped silently.
func (s *Store) CreateCollection(ctx context.Context, userID uuid.UUID, name string, captureIDs []uuid.UUID) (Collection, error) {
	if strings.TrimSpace(name) == "" {
		return Collection{}, fmt.Errorf("%w: collection name is empty", ErrEmptyContent)
	}

	owned, err := s.FilterOwnedActive(ctx, userID, captureIDs)
	if err != nil {
		return Collection{}, err
	}

	col := Collection{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		CaptureIDs: owned,
		CreatedAt:  time.Now().UTC(),
	}

	if _, err := s.db.Exec(ctx,
		"INSERT INTO collections (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)",
		col.ID, col.UserID, col.Name, col.CreatedAt); err != nil {
		return Collection{}, fmt.Errorf("inserting collection: %w", err)
	}

	for i, captureID := range owned {
		if _, err := s.db.Exec(ctx,
			"INSERT INTO collection_captures (collection_id, capture_id, position) VALUES ($1, $2, $3)",
			col.ID, captureID, i); err != nil {
			return Collection{}, fmt.Errorf("inserting collection member: %w", err)
		}
	}

	s.logger.Debug("created collection", "id", col.ID, "user_id", userID, "members", len(owned))
	return col, nil
}

// GetCollection returns one owned collection with its member identifiers
// in position order, or ErrNotFound.
func (s *Store) GetCollection(ctx context.Context, userID, id uuid.UUID) (Collection, error) {
	var col Collection
	err := s.db.QueryRow(ctx,
		"SELECT id, user_id, name, created_at FROM collections WHERE id = $1 AND user_id = $2",
		id, userID).Scan(&col.ID, &col.UserID, &col.Name, &col.CreatedAt)
	if err == pgx.ErrNoRows {
		return Collection{}, ErrNotFound
	}
	if err != nil {
		return Collection{}, fmt.Errorf("querying collection: %w", err)
	}

	col.CaptureIDs, err = s.queryIDs(ctx,
		"SELECT capture_id FROM collection_captures WHERE collection_id = $1 ORDER BY position",
		col.ID)
	if err != nil {
		return Collection{}, err
	}
	return col, nil
}

// ListCollections returns the user's collections, newest first.
// Member identifier lists are not populated; use GetCollection.
func (s *Store) ListCollections(ctx context.Context, userID uuid.UUID, limit int) ([]Collection, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, user_id, name, created_at FROM collections WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var cols []Collection
	for rows.Next() {
		var col Collection
		if err := rows.Scan(&col.ID, &col.UserID, &col.Name, &col.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// CollectionCaptureIDs returns the deduplicated union of member capture
// identifiers across the given collections, restricted to collections
// owned by userID. Foreign collection identifiers contribute nothing.
func (s *Store) CollectionCaptureIDs(ctx context.Context, userID uuid.UUID, collectionIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(collectionIDs) == 0 {
		return nil, nil
	}
	return s.queryIDs(ctx, `
		SELECT DISTINCT cc.capture_id
		FROM collection_captures cc
		JOIN collections c ON c.id = cc.collection_id
		WHERE c.user_id = $1 AND cc.collection_id = ANY($2)`,
		userID, collectionIDs)
}
