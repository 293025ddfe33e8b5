package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/capture"
)

// DefaultCollectionListLimit bounds collection listings.
const DefaultCollectionListLimit = 100

// CollectionHandler serves collection CRUD.
type CollectionHandler struct {
	store  CaptureStore
	logger *slog.Logger
}

// RegisterRoutes registers collection routes on the given mux.
func (h *CollectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/collections", h.list)
	mux.HandleFunc("POST /api/collections", h.create)
	mux.HandleFunc("GET /api/collections/{id}", h.get)
}

func (h *CollectionHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	collections, err := h.store.ListCollections(r.Context(), userID, DefaultCollectionListLimit)
	if err != nil {
		h.logger.Error("failed to list collections", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list collections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

type createCollectionRequest struct {
	Name       string      `json:"name"`
	CaptureIDs []uuid.UUID `json:"captureIds"`
}

func (h *CollectionHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	c, err := h.store.CreateCollection(r.Context(), userID, req.Name, req.CaptureIDs)
	if errors.Is(err, capture.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "validation_error", "one or more captures do not exist")
		return
	}
	if err != nil {
		h.logger.Error("failed to create collection", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create collection")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CollectionHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed collection id")
		return
	}

	c, err := h.store.GetCollection(r.Context(), userID, id)
	if errors.Is(err, capture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "collection not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get collection", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get collection")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
