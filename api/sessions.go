package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/grounding"
)

// Listing bounds shared by the conversational list endpoints.
const (
	MaxListLimit = 100
)

// SessionHandler serves the session-flavored CRUD endpoints.
type SessionHandler struct {
	conversations ConversationService
	logger        *slog.Logger
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// list returns session summaries, newest activity first. Turn bodies are
// never included here; fetch a single session for those.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	limit := parseIntParam(r, "limit", conversation.DefaultListLimit, 1, MaxListLimit)

	summaries, err := h.conversations.List(r.Context(), userID, false, limit)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeClassifiedError(w, err)
		return
	}

	views := make([]conversation.SessionView, len(summaries))
	for i, s := range summaries {
		views[i] = s.SessionView()
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

type createSessionRequest struct {
	ContextType  string              `json:"contextType"`
	ContextItems []conversation.Item `json:"contextItems,omitempty"`
	FirstMessage string              `json:"firstMessage"`
}

// create starts a session with an empty turn list; the title is derived
// from the first message.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}
	if _, err := grounding.ParsePolicy(req.ContextType); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "unknown context type")
		return
	}

	sel := conversation.Selection{
		Mode: conversation.SelectionPolicy,
		Policy: &conversation.PolicySelection{
			Policy: req.ContextType,
			Items:  req.ContextItems,
		},
	}
	c, err := h.conversations.CreateSession(r.Context(), userID, sel, req.FirstMessage)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(c))
}

// get returns one session with its full message history.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed session id")
		return
	}

	c, err := h.conversations.Get(r.Context(), userID, id)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(c))
}

// delete removes a session. Deleting an absent session succeeds: the
// session-flavored surface keeps silent-delete semantics.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed session id")
		return
	}

	if err := h.conversations.Delete(r.Context(), userID, id); err != nil && !errors.Is(err, conversation.ErrNotFound) {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sessionPayload is the single-session response: the session view plus
// the message bodies.
func sessionPayload(c conversation.Conversation) map[string]any {
	policy, items := c.Selection.ScopePolicy()
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
	return map[string]any{
		"id":           c.ID,
		"title":        c.Title,
		"contextType":  policy,
		"contextItems": items,
		"createdAt":    c.CreatedAt,
		"lastActiveAt": c.LastActiveAt,
		"messages":     c.Messages,
	}
}
