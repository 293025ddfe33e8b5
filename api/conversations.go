package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Nathanim1919/deepen-backend/internal/conversation"
)

// ConversationHandler serves the conversation-flavored endpoints: CRUD
// over conversations with static context descriptors, plus SSE turn
// submission.
type ConversationHandler struct {
	conversations ConversationService
	pipeline      *Pipeline
	timeout       time.Duration
	logger        *slog.Logger
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.list)
	mux.HandleFunc("POST /api/conversations", h.create)
	mux.HandleFunc("GET /api/conversations/{id}", h.get)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.delete)
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.sendMessage)
	mux.HandleFunc("PATCH /api/conversations/{id}/title", h.updateTitle)
	mux.HandleFunc("POST /api/conversations/{id}/archive", h.archive)
}

type createConversationRequest struct {
	Title        string                       `json:"title,omitempty"`
	Context      conversation.StaticSelection `json:"context"`
	InitialTurns []conversation.TurnInput     `json:"initialTurns"`
}

// create starts a conversation from a static context descriptor and its
// initial turns, answering with the full record including the synchronous
// assistant reply.
func (h *ConversationHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	sel := conversation.Selection{
		Mode:   conversation.SelectionStatic,
		Static: &req.Context,
	}
	c, err := h.conversations.Create(r.Context(), userID, req.Title, sel, req.InitialTurns)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversationPayload(c))
}

// list returns conversation summaries, newest activity first. Archived
// conversations appear only with ?includeArchived=true.
func (h *ConversationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	limit := parseIntParam(r, "limit", conversation.DefaultListLimit, 1, MaxListLimit)
	includeArchived := r.URL.Query().Get("includeArchived") == "true"

	summaries, err := h.conversations.List(r.Context(), userID, includeArchived, limit)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		writeClassifiedError(w, err)
		return
	}

	views := make([]conversation.ConversationView, len(summaries))
	for i, s := range summaries {
		views[i] = s.ConversationView()
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": views})
}

// get returns the full record with message bodies.
func (h *ConversationHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed conversation id")
		return
	}

	c, err := h.conversations.Get(r.Context(), userID, id)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationPayload(c))
}

// delete removes the conversation, answering 404 when it is absent or
// unowned.
func (h *ConversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed conversation id")
		return
	}

	if err := h.conversations.Delete(r.Context(), userID, id); err != nil {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	Message string      `json:"message"`
	Filters TurnFilters `json:"filters,omitzero"`
}

// sendMessage submits one turn and streams the grounded reply as SSE.
func (h *ConversationHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed conversation id")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "message is required")
		return
	}

	c, history, err := h.conversations.SendMessage(r.Context(), userID, id, req.Message)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	h.pipeline.RunStreaming(r.Context(), c, history, req.Message, req.Filters, sse)
}

type updateTitleRequest struct {
	Title string `json:"title"`
}

// updateTitle renames the conversation.
func (h *ConversationHandler) updateTitle(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed conversation id")
		return
	}

	var req updateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	if err := h.conversations.UpdateTitle(r.Context(), userID, id, req.Title); err != nil {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// archive transitions the conversation out of the active listing.
func (h *ConversationHandler) archive(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed conversation id")
		return
	}

	if err := h.conversations.Archive(r.Context(), userID, id); err != nil {
		writeClassifiedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// conversationPayload is the single-conversation response shape.
func conversationPayload(c conversation.Conversation) map[string]any {
	view := c.ConversationView()
	if c.Messages == nil {
		c.Messages = []conversation.Message{}
	}
	return map[string]any{
		"id":           view.ID,
		"title":        view.Title,
		"context":      view.Context,
		"status":       view.Status,
		"createdAt":    view.CreatedAt,
		"lastActiveAt": view.LastActiveAt,
		"messages":     c.Messages,
	}
}
