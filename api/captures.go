package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Nathanim1919/deepen-backend/internal/capture"
)

// Capture listing bounds.
const (
	DefaultCaptureListLimit = 50
	MaxCaptureListLimit     = 200
	MaxCaptureListOffset    = 100000
)

// CaptureHandler serves capture CRUD. Creation also feeds the retrieval
// index so new content is searchable immediately.
type CaptureHandler struct {
	store   CaptureStore
	indexer Indexer
	logger  *slog.Logger
}

// RegisterRoutes registers capture routes on the given mux.
func (h *CaptureHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/captures", h.list)
	mux.HandleFunc("POST /api/captures", h.create)
	mux.HandleFunc("GET /api/captures/{id}", h.get)
	mux.HandleFunc("PATCH /api/captures/{id}/bookmark", h.setBookmark)
	mux.HandleFunc("DELETE /api/captures/{id}", h.delete)
}

func (h *CaptureHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	limit := parseIntParam(r, "limit", DefaultCaptureListLimit, 1, MaxCaptureListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxCaptureListOffset)

	captures, err := h.store.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list captures", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list captures")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"captures": captures})
}

type createCaptureRequest struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Content    string `json:"content"`
	Format     string `json:"format"`
	Bookmarked bool   `json:"bookmarked"`
}

func (h *CaptureHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req createCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	c, err := h.store.Create(r.Context(), userID, capture.Capture{
		Title:      req.Title,
		URL:        req.URL,
		Content:    req.Content,
		Format:     req.Format,
		Bookmarked: req.Bookmarked,
	})
	if errors.Is(err, capture.ErrEmptyContent) {
		writeError(w, http.StatusBadRequest, "validation_error", "content is required")
		return
	}
	if err != nil {
		h.logger.Error("failed to create capture", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create capture")
		return
	}

	// Index failures do not fail the write: the capture exists, it is
	// just not retrievable until re-indexed.
	if h.indexer != nil {
		if err := h.indexer.Index(r.Context(), c); err != nil {
			h.logger.Warn("capture indexing failed", "capture_id", c.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *CaptureHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed capture id")
		return
	}

	c, err := h.store.Get(r.Context(), userID, id)
	if errors.Is(err, capture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "capture not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get capture", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get capture")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type bookmarkRequest struct {
	Bookmarked bool `json:"bookmarked"`
}

func (h *CaptureHandler) setBookmark(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed capture id")
		return
	}

	var req bookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	err = h.store.SetBookmarked(r.Context(), userID, id, req.Bookmarked)
	if errors.Is(err, capture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "capture not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to set bookmark", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to set bookmark")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CaptureHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, err := pathUUID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed capture id")
		return
	}

	err = h.store.Delete(r.Context(), userID, id)
	if errors.Is(err, capture.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "capture not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete capture", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete capture")
		return
	}

	if h.indexer != nil {
		if err := h.indexer.DeleteCapture(r.Context(), id); err != nil {
			h.logger.Warn("failed to remove capture from index", "capture_id", id, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
