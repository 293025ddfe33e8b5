// Package conversation manages the persisted unit of multi-turn
// interaction: one canonical Conversation entity serving both the
// session-flavored chat surface and the conversation-flavored CRUD surface.
//
// The two caller shapes differ only in how they describe context scope, so
// the entity carries a Selection sum type (policy or static descriptor) and
// adapter views project it back into either shape. Every operation is
// scoped by the owning user identifier.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation lifecycle status values. Archival is an explicit operation;
// nothing flips status automatically.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message delivery status values.
const (
	MessageSent     = "sent"
	MessageReceived = "received"
)

// Title derivation bounds: the first titleWordCount words of the first
// message, hard-capped at titleMaxRunes runes.
const (
	titleWordCount = 5
	titleMaxRunes  = 50
)

// MaxTitleRunes bounds explicit title updates.
const MaxTitleRunes = 200

// DefaultListLimit is the page size for conversation listings.
const DefaultListLimit = 20

// Sentinel errors for conversation operations.
var (
	// ErrNotFound indicates the conversation is absent or not owned by
	// the requesting user. The two cases are deliberately not
	// distinguished.
	ErrNotFound = errors.New("conversation not found")

	// ErrValidation wraps every malformed-input failure. Never retried.
	ErrValidation = errors.New("validation failed")
)

// Selection modes.
const (
	SelectionPolicy = "policy"
	SelectionStatic = "static"
)

// PolicySelection scopes a conversation by a named selection policy with
// optional explicit items. The session-flavored shape.
type PolicySelection struct {
	Policy string   `json:"policy"`
	Items  []Item   `json:"items,omitempty"`
}

// StaticSelection scopes a conversation by a static context descriptor.
// The conversation-flavored shape.
type StaticSelection struct {
	Brain         bool        `json:"brain"`
	Bookmarks     bool        `json:"bookmarks"`
	CaptureIDs    []uuid.UUID `json:"captureIds,omitempty"`
	CollectionIDs []uuid.UUID `json:"collectionIds,omitempty"`
}

// Item references one capture or collection inside a policy selection.
type Item struct {
	Kind string    `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// Selection is the sum of the two scope shapes. Exactly one of Policy or
// Static is set, matching Mode. Stored as JSONB on the conversation row and
// round-tripped losslessly through both adapter views.
type Selection struct {
	Mode   string           `json:"mode"`
	Policy *PolicySelection `json:"policy,omitempty"`
	Static *StaticSelection `json:"static,omitempty"`
}

// Validate checks structural consistency of the sum type.
func (s Selection) Validate() error {
	switch s.Mode {
	case SelectionPolicy:
		if s.Policy == nil {
			return fmt.Errorf("%w: policy selection without policy body", ErrValidation)
		}
		if s.Static != nil {
			return fmt.Errorf("%w: policy selection carrying static body", ErrValidation)
		}
	case SelectionStatic:
		if s.Static == nil {
			return fmt.Errorf("%w: static selection without static body", ErrValidation)
		}
		if s.Policy != nil {
			return fmt.Errorf("%w: static selection carrying policy body", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown selection mode %q", ErrValidation, s.Mode)
	}
	return nil
}

// Provenance records which sources grounded an assistant turn.
type Provenance struct {
	SourceIDs  []uuid.UUID `json:"sourceIds"`
	ChunkCount int         `json:"chunkCount"`
}

// Message is one persisted turn.
type Message struct {
	ID         uuid.UUID   `json:"id"`
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	Status     string      `json:"status"`
	Provenance *Provenance `json:"provenance,omitempty"`
	Sequence   int         `json:"sequence"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Conversation is the full persisted record. Messages is populated by Get
// and left nil by List.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Title        string    `json:"title"`
	Selection    Selection `json:"selection"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	Messages     []Message `json:"messages,omitempty"`
}

// Summary is the listing projection: no turn bodies, just enough for a
// sidebar entry.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Selection    Selection `json:"selection"`
	Status       string    `json:"status"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// DeriveTitle builds a title from the first words of a message: the first
// five words joined by single spaces, truncated to 47 runes plus an
// ellipsis marker when the joined form exceeds 50 runes.
func DeriveTitle(message string) string {
	words := strings.Fields(message)
	if len(words) == 0 {
		return "New conversation"
	}
	if len(words) > titleWordCount {
		words = words[:titleWordCount]
	}
	title := strings.Join(words, " ")
	if runes := []rune(title); len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes-3]) + "..."
	}
	return title
}
