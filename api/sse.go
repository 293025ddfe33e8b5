package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/generation"
)

// sseWriter emits server-sent events in "event: <type>\ndata: <json>\n\n"
// form, flushing after every event so chunks reach the client immediately.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter sets the SSE headers and returns a writer, or an error when
// the underlying ResponseWriter cannot flush.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable proxy buffering
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) event(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("writing %s event: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}

// sseDeltaData is the payload of one incremental text event.
type sseDeltaData struct {
	Delta string `json:"delta"`
}

// sseDoneData closes a successful stream.
type sseDoneData struct {
	Done      bool      `json:"done"`
	SessionID uuid.UUID `json:"sessionId"`
	MessageID uuid.UUID `json:"messageId,omitempty"`
}

// Delta writes one incremental text event.
func (s *sseWriter) Delta(text string) error {
	return s.event("delta", sseDeltaData{Delta: text})
}

// Usage forwards token metering.
func (s *sseWriter) Usage(u generation.Usage) error {
	return s.event("usage", u)
}

// Done closes a successful stream.
func (s *sseWriter) Done(sessionID, messageID uuid.UUID) error {
	return s.event("done", sseDoneData{Done: true, SessionID: sessionID, MessageID: messageID})
}

// Error reports a terminal failure. Output already delivered stands; the
// client treats the stream as failed from here.
func (s *sseWriter) Error(code, message string) {
	_ = s.event("error", ErrorResponse{Error: code, Message: message})
}
