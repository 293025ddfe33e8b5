package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/grounding"
)

// ChatHandler serves the session-flavored turn submission endpoint.
type ChatHandler struct {
	conversations ConversationService
	pipeline      *Pipeline
	timeout       time.Duration
	logger        *slog.Logger
}

// RegisterRoutes registers the chat route on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.send)
}

// chatRequest is one turn submission. SessionID absent means "start a new
// session scoped by contextType + contextItems".
type chatRequest struct {
	SessionID    *uuid.UUID          `json:"sessionId,omitempty"`
	ContextType  string              `json:"contextType"`
	ContextItems []conversation.Item `json:"contextItems,omitempty"`
	Message      string              `json:"message"`
	Stream       bool                `json:"stream"`
	Filters      TurnFilters         `json:"filters,omitzero"`
}

// chatResponse is the non-streaming answer shape.
type chatResponse struct {
	SessionID   uuid.UUID         `json:"sessionId"`
	Response    string            `json:"response"`
	ContextUsed grounding.Context `json:"contextUsed"`
}

func (h *ChatHandler) send(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "message is required")
		return
	}

	conv, err := h.resolveSession(r, userID, req)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	conv, history, err := h.conversations.SendMessage(r.Context(), userID, conv.ID, req.Message)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}

	if req.Stream {
		sse, err := newSSEWriter(w)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		h.pipeline.RunStreaming(r.Context(), conv, history, req.Message, req.Filters, sse)
		return
	}

	res, gctx, err := h.pipeline.RunBlocking(r.Context(), conv, history, req.Message, req.Filters, h.timeout)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:   conv.ID,
		Response:    res.Text,
		ContextUsed: gctx,
	})
}

// resolveSession loads the referenced session or starts a new one scoped
// by the request's selection policy.
func (h *ChatHandler) resolveSession(r *http.Request, userID uuid.UUID, req chatRequest) (conversation.Conversation, error) {
	if req.SessionID != nil {
		return h.conversations.Get(r.Context(), userID, *req.SessionID)
	}

	policy := req.ContextType
	if policy == "" {
		policy = string(grounding.PolicyAll)
	}
	if _, err := grounding.ParsePolicy(policy); err != nil {
		return conversation.Conversation{}, err
	}

	sel := conversation.Selection{
		Mode: conversation.SelectionPolicy,
		Policy: &conversation.PolicySelection{
			Policy: policy,
			Items:  req.ContextItems,
		},
	}
	return h.conversations.CreateSession(r.Context(), userID, sel, req.Message)
}
