package conversation

import (
	"time"

	"github.com/google/uuid"
)

// SessionView is the session-flavored projection of a conversation: scope
// expressed as a selection policy plus items.
type SessionView struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	ContextType  string    `json:"contextType"`
	ContextItems []Item    `json:"contextItems,omitempty"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// ConversationView is the conversation-flavored projection: scope expressed
// as a static context descriptor.
type ConversationView struct {
	ID           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	Context      StaticSelection `json:"context"`
	Status       string          `json:"status"`
	MessageCount int             `json:"messageCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastActiveAt time.Time       `json:"lastActiveAt"`
}

// ScopePolicy flattens the selection into a policy name plus items, the
// shape the grounding pipeline consumes. For static selections: brain
// subsumes everything; a bare bookmarks flag maps to the bookmarks policy;
// otherwise explicit identifiers win and the bookmarks flag is ignored.
func (s Selection) ScopePolicy() (string, []Item) {
	switch s.Mode {
	case SelectionPolicy:
		if s.Policy == nil {
			return "specific", nil
		}
		return s.Policy.Policy, s.Policy.Items

	case SelectionStatic:
		st := s.Static
		if st == nil {
			return "specific", nil
		}
		if st.Brain {
			return "all", nil
		}
		var items []Item
		for _, id := range st.CollectionIDs {
			items = append(items, Item{Kind: "collection", ID: id})
		}
		for _, id := range st.CaptureIDs {
			items = append(items, Item{Kind: "capture", ID: id})
		}
		switch {
		case len(items) == 0 && st.Bookmarks:
			return "bookmarks", nil
		case len(st.CollectionIDs) > 0 && len(st.CaptureIDs) > 0:
			return "mixed", items
		case len(st.CollectionIDs) > 0:
			return "collection", items
		default:
			return "specific", items
		}
	}
	return "specific", nil
}

// staticDescriptor projects the selection into the static shape, deriving
// one from a policy selection when needed.
func (s Selection) staticDescriptor() StaticSelection {
	if s.Mode == SelectionStatic && s.Static != nil {
		return *s.Static
	}
	var st StaticSelection
	if s.Policy == nil {
		return st
	}
	switch s.Policy.Policy {
	case "all":
		st.Brain = true
	case "bookmarks":
		st.Bookmarks = true
	default:
		for _, it := range s.Policy.Items {
			switch it.Kind {
			case "collection":
				st.CollectionIDs = append(st.CollectionIDs, it.ID)
			default:
				st.CaptureIDs = append(st.CaptureIDs, it.ID)
			}
		}
	}
	return st
}

// SessionView projects a summary into the session shape.
func (s Summary) SessionView() SessionView {
	policy, items := s.Selection.ScopePolicy()
	return SessionView{
		ID:           s.ID,
		Title:        s.Title,
		ContextType:  policy,
		ContextItems: items,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
}

// ConversationView projects a summary into the conversation shape.
func (s Summary) ConversationView() ConversationView {
	return ConversationView{
		ID:           s.ID,
		Title:        s.Title,
		Context:      s.Selection.staticDescriptor(),
		Status:       s.Status,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
	}
}

// ConversationView projects the full record, message count included.
func (c Conversation) ConversationView() ConversationView {
	return ConversationView{
		ID:           c.ID,
		Title:        c.Title,
		Context:      c.Selection.staticDescriptor(),
		Status:       c.Status,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		LastActiveAt: c.LastActiveAt,
	}
}
