package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// createConversation is a shorthand for tests that need an existing record.
func createConversation(t *testing.T, ts *testServer) uuid.UUID {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/conversations",
		`{"context":{"brain":true},"initialTurns":[{"role":"user","content":"tell me about my reading list"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create conversation status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	decodeBody(t, rec, &resp)
	return resp.ID
}

func TestConversations_CreateDerivesTitle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/conversations",
		`{"context":{"brain":true},"initialTurns":[{"role":"user","content":"compare my notes on raft and paxos please"}]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &resp)
	if resp.Title != "compare my notes on raft" {
		t.Errorf("title = %q, want first five words", resp.Title)
	}
	if resp.Status != "active" {
		t.Errorf("status = %q, want active", resp.Status)
	}
}

func TestConversations_CreateRejectsEmptyTurns(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/conversations",
		`{"context":{"brain":true},"initialTurns":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty turns status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "validation_error") {
		t.Errorf("body = %s, want validation_error", rec.Body)
	}
}

func TestConversations_DeleteAbsentIs404(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodDelete, "/api/conversations/"+uuid.New().String(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete absent conversation status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestConversations_DeleteThenGone(t *testing.T) {
	ts := newTestServer(t)
	id := createConversation(t, ts)

	if rec := ts.do(http.MethodDelete, "/api/conversations/"+id.String(), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := ts.do(http.MethodGet, "/api/conversations/"+id.String(), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestConversations_UpdateTitle(t *testing.T) {
	ts := newTestServer(t)
	id := createConversation(t, ts)

	rec := ts.do(http.MethodPatch, "/api/conversations/"+id.String()+"/title",
		`{"title":"consensus papers"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("patch title status = %d: %s", rec.Code, rec.Body)
	}

	got := ts.do(http.MethodGet, "/api/conversations/"+id.String(), "")
	var resp struct {
		Title string `json:"title"`
	}
	decodeBody(t, got, &resp)
	if resp.Title != "consensus papers" {
		t.Errorf("title after patch = %q", resp.Title)
	}
}

func TestConversations_UpdateTitleRejectsBlank(t *testing.T) {
	ts := newTestServer(t)
	id := createConversation(t, ts)

	rec := ts.do(http.MethodPatch, "/api/conversations/"+id.String()+"/title", `{"title":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank title status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestConversations_ArchiveHidesFromDefaultListing(t *testing.T) {
	ts := newTestServer(t)
	id := createConversation(t, ts)

	if rec := ts.do(http.MethodPost, "/api/conversations/"+id.String()+"/archive", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("archive status = %d: %s", rec.Code, rec.Body)
	}

	var listing struct {
		Conversations []struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"conversations"`
	}

	decodeBody(t, ts.do(http.MethodGet, "/api/conversations", ""), &listing)
	if len(listing.Conversations) != 0 {
		t.Errorf("default listing has %d conversations, want 0", len(listing.Conversations))
	}

	decodeBody(t, ts.do(http.MethodGet, "/api/conversations?includeArchived=true", ""), &listing)
	if len(listing.Conversations) != 1 {
		t.Fatalf("archived listing has %d conversations, want 1", len(listing.Conversations))
	}
	if listing.Conversations[0].Status != "archived" {
		t.Errorf("listed status = %q, want archived", listing.Conversations[0].Status)
	}
}

func TestConversations_ArchiveTwiceIs404(t *testing.T) {
	ts := newTestServer(t)
	id := createConversation(t, ts)

	ts.do(http.MethodPost, "/api/conversations/"+id.String()+"/archive", "")
	rec := ts.do(http.MethodPost, "/api/conversations/"+id.String()+"/archive", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second archive status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestConversations_SendMessageStreams(t *testing.T) {
	ts := newTestServer(t)
	id := createConversation(t, ts)

	rec := ts.do(http.MethodPost, "/api/conversations/"+id.String()+"/messages",
		`{"message":"and what about viewstamped replication?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("send message status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: delta") || !strings.Contains(body, "event: done") {
		t.Fatalf("stream missing events:\n%s", body)
	}
}

func TestConversations_ListingCarriesSummariesOnly(t *testing.T) {
	ts := newTestServer(t)
	createConversation(t, ts)

	rec := ts.do(http.MethodGet, "/api/conversations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), `"messages"`) {
		t.Errorf("listing must not embed message bodies:\n%s", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"messageCount"`) {
		t.Errorf("listing missing messageCount:\n%s", rec.Body)
	}
}

func TestConversations_MalformedIDIs400(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/conversations/nope", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
