package grounding

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Policy selects which part of the user's knowledge base is in scope.
type Policy string

// Selection policies.
const (
	// PolicyAll selects every active capture the user owns.
	PolicyAll Policy = "all"

	// PolicyCollection selects the members of the referenced collections.
	PolicyCollection Policy = "collection"

	// PolicyBookmarks selects the user's bookmarked captures.
	PolicyBookmarks Policy = "bookmarks"

	// PolicySpecific selects exactly the referenced captures.
	PolicySpecific Policy = "specific"

	// PolicyMixed selects the union of the collection and specific
	// resolutions over the same item list.
	PolicyMixed Policy = "mixed"
)

// Scope caps bound downstream retrieval and prompt-assembly cost.
const (
	// MaxAllScope caps the resolved scope for PolicyAll.
	MaxAllScope = 1000

	// MaxBookmarkScope caps the resolved scope for PolicyBookmarks.
	MaxBookmarkScope = 500

	// DefaultFragmentLimit is the retrieval result ceiling when the
	// request does not supply one.
	DefaultFragmentLimit = 20

	// MaxPromptFragments is the hard cap on fragments rendered into a
	// prompt, regardless of how many retrieval returned.
	MaxPromptFragments = 10
)

// Source relevance scores. Explicitly selected sources outrank the broad
// "everything" selection.
const (
	relevanceImplicit float32 = 0.5
	relevanceExplicit float32 = 1.0
)

// Sentinel errors.
var (
	// ErrInvalidPolicy indicates an unknown selection policy.
	ErrInvalidPolicy = errors.New("invalid selection policy")

	// ErrAggregation indicates scope resolution or metadata lookup failed.
	ErrAggregation = errors.New("context aggregation failed")
)

// ParsePolicy validates and converts a policy string.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyAll, PolicyCollection, PolicyBookmarks, PolicySpecific, PolicyMixed:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// ItemKind tags a policy item as referencing a capture or a collection.
type ItemKind string

// Policy item kinds.
const (
	KindCapture    ItemKind = "capture"
	KindCollection ItemKind = "collection"
)

// Item is one policy parameter: a reference to a capture or collection.
type Item struct {
	Kind ItemKind  `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// Filters optionally narrow scope resolution and bound retrieval.
// Zero values mean "no constraint".
type Filters struct {
	From    time.Time `json:"from,omitempty"`
	To      time.Time `json:"to,omitempty"`
	Formats []string  `json:"formats,omitempty"`
	Limit   int       `json:"limit,omitempty"`
}

// Query is one aggregation request.
type Query struct {
	UserID  uuid.UUID
	Policy  Policy
	Items   []Item
	Text    string
	Filters Filters
}

// Source describes one capture in scope for a turn.
type Source struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Relevance float32   `json:"relevance"`
}

// Fragment is one retrieved piece of evidence.
type Fragment struct {
	Text      string    `json:"text"`
	SourceID  uuid.UUID `json:"sourceId"`
	Kind      string    `json:"kind"`
	Score     float32   `json:"score"`
}

// Context is the resolved scope plus retrieval results for one turn.
// Produced fresh per turn and consumed immediately; never persisted as-is.
type Context struct {
	Sources      []Source   `json:"sources"`
	Fragments    []Fragment `json:"retrievedChunks"`
	TotalSources int        `json:"totalSources"`
}

// SourceIDs returns the distinct source identifiers referenced by the
// context's fragments, in first-seen order. Used for provenance records.
func (c Context) SourceIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(c.Fragments))
	var ids []uuid.UUID
	for _, f := range c.Fragments {
		if !seen[f.SourceID] {
			seen[f.SourceID] = true
			ids = append(ids, f.SourceID)
		}
	}
	return ids
}
