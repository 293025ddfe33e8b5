package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/Nathanim1919/deepen-backend/internal/capture"
)

// DBTX is the subset of pgx operations the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages capture chunks with vector search capabilities.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       DBTX
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a new Store instance.
func New(db DBTX, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, embedder: embedder, logger: logger}
}

// Index splits a capture's content into chunks, embeds them in one batch,
// and replaces any previously indexed chunks for that capture.
func (s *Store) Index(ctx context.Context, c capture.Capture) error {
	texts := splitText(c.Content, chunkTargetRunes)
	if len(texts) == 0 {
		return nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return fmt.Errorf("embedding capture %s: %w", c.ID, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", ErrEmptyEmbedding, len(resp.Embeddings), len(texts))
	}

	// Reindexing replaces all chunks for the capture.
	if _, err := s.db.Exec(ctx, "DELETE FROM capture_chunks WHERE capture_id = $1", c.ID); err != nil {
		return fmt.Errorf("clearing chunks for capture %s: %w", c.ID, err)
	}

	for i, text := range texts {
		vec, err := toVector(resp.Embeddings[i].Embedding)
		if err != nil {
			return fmt.Errorf("capture %s chunk %d: %w", c.ID, i, err)
		}
		if _, err := s.db.Exec(ctx, `
			INSERT INTO capture_chunks (id, capture_id, user_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), c.ID, c.UserID, i, text, vec); err != nil {
			return fmt.Errorf("inserting chunk %d of capture %s: %w", i, c.ID, err)
		}
	}

	s.logger.Debug("indexed capture", "capture_id", c.ID, "chunks", len(texts))
	return nil
}

// Search returns the chunks most similar to query, restricted to the given
// user and capture scope, ordered by descending similarity.
//
// scopeIDs must be non-empty: the aggregation layer short-circuits empty
// scopes before reaching the store.
func (s *Store) Search(ctx context.Context, query string, userID uuid.UUID, scopeIDs []uuid.UUID, limit int) ([]Chunk, error) {
	if len(scopeIDs) == 0 {
		return nil, nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec, err := toVector(resp.Embeddings[0].Embedding)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(queryCtx, `
		SELECT content, capture_id, 1 - (embedding <=> $1) AS score
		FROM capture_chunks
		WHERE user_id = $2 AND capture_id = ANY($3)
		ORDER BY embedding <=> $1
		LIMIT $4`,
		vec, userID, scopeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Text, &c.CaptureID, &c.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteCapture removes all indexed chunks for one capture.
// Normally the foreign key cascade handles this; exposed for reindex flows.
func (s *Store) DeleteCapture(ctx context.Context, captureID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM capture_chunks WHERE capture_id = $1", captureID); err != nil {
		return fmt.Errorf("deleting chunks for capture %s: %w", captureID, err)
	}
	return nil
}

// toVector truncates an embedding to VectorDimension and renormalizes it so
// cosine distances remain meaningful (Matryoshka-style truncation: the
// leading dimensions carry the coarse representation).
func toVector(embedding []float32) (pgvector.Vector, error) {
	if len(embedding) == 0 {
		return pgvector.Vector{}, ErrEmptyEmbedding
	}
	if len(embedding) > VectorDimension {
		embedding = embedding[:VectorDimension]
	}

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return pgvector.Vector{}, fmt.Errorf("%w: zero vector", ErrEmptyEmbedding)
	}

	normalized := make([]float32, len(embedding))
	for i, v := range embedding {
		normalized[i] = float32(float64(v) / norm)
	}
	return pgvector.NewVector(normalized), nil
}
