// Package capture provides storage for captures and collections.
//
// A capture is a stored unit of user content (an article, a note, a page).
// A collection is a named set of captures owned by one user. Both are read
// by the grounding pipeline during scope resolution; captures are written
// through the API when users save content.
//
// Every read and write is scoped by the owning user identifier. Stores never
// return rows belonging to another user.
package capture

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Capture lifecycle status values. Only active captures participate in
// scope resolution.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// Sentinel errors for capture operations.
var (
	// ErrNotFound indicates the capture or collection is absent or not
	// owned by the requesting user. The two cases are deliberately not
	// distinguished.
	ErrNotFound = errors.New("not found")

	// ErrEmptyContent indicates a capture was submitted without content.
	ErrEmptyContent = errors.New("empty content")
)

// Capture is a stored unit of user content.
type Capture struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary"`
	Format     string    `json:"format"`
	Bookmarked bool      `json:"bookmarked"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DisplayTitle returns the best human-readable label for a capture:
// title, then URL, then "Untitled".
func (c Capture) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	if c.URL != "" {
		return c.URL
	}
	return "Untitled"
}

// Collection is a named set of captures owned by one user.
type Collection struct {
	ID         uuid.UUID   `json:"id"`
	UserID     uuid.UUID   `json:"userId"`
	Name       string      `json:"name"`
	CaptureIDs []uuid.UUID `json:"captureIds"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Meta is the lightweight projection of a capture used when assembling
// source descriptors. Fetched in one batched lookup per aggregation.
type Meta struct {
	ID    uuid.UUID
	Title string
	URL   string
}

// DisplayTitle mirrors Capture.DisplayTitle for the projected form.
func (m Meta) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	if m.URL != "" {
		return m.URL
	}
	return "Untitled"
}

// ListFilter narrows capture listings during scope resolution.
// Zero values mean "no constraint".
type ListFilter struct {
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Formats       []string
}
