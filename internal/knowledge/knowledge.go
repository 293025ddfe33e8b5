package knowledge

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// VectorDimension is the embedding width stored in capture_chunks.
	// Embedder output is truncated to this many dimensions; the value must
	// match the VECTOR(n) column in db/migrations.
	VectorDimension = 768

	// DefaultSearchTimeout bounds a single vector search, including the
	// query embedding call.
	DefaultSearchTimeout = 10 * time.Second

	// chunkTargetRunes is the target chunk size when splitting capture
	// content for indexing.
	chunkTargetRunes = 1200
)

// Sentinel errors for knowledge operations.
var (
	// ErrEmptyEmbedding indicates the embedder returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// Chunk is one retrieved text fragment with its similarity score.
type Chunk struct {
	Text      string
	CaptureID uuid.UUID
	Score     float32 // cosine similarity, 0-1
}
