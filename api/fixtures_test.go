package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/capture"
	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/generation"
	"github.com/Nathanim1919/deepen-backend/internal/grounding"
	"github.com/Nathanim1919/deepen-backend/internal/log"
	"github.com/Nathanim1919/deepen-backend/internal/stream"
)

// fakeConversations implements ConversationService in memory.
type fakeConversations struct {
	byID     map[uuid.UUID]conversation.Conversation
	messages map[uuid.UUID][]conversation.Message

	createCalls int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		byID:     make(map[uuid.UUID]conversation.Conversation),
		messages: make(map[uuid.UUID][]conversation.Message),
	}
}

func (f *fakeConversations) CreateSession(_ context.Context, userID uuid.UUID, sel conversation.Selection, firstMessage string) (conversation.Conversation, error) {
	f.createCalls++
	c := conversation.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     conversation.DeriveTitle(firstMessage),
		Selection: sel,
		Status:    conversation.StatusActive,
		CreatedAt: time.Now(),
	}
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeConversations) Create(_ context.Context, userID uuid.UUID, title string, sel conversation.Selection, turns []conversation.TurnInput) (conversation.Conversation, error) {
	if err := sel.Validate(); err != nil {
		return conversation.Conversation{}, err
	}
	if len(turns) == 0 {
		return conversation.Conversation{}, conversation.ErrValidation
	}
	if title == "" {
		title = conversation.DeriveTitle(turns[0].Content)
	}
	c := conversation.Conversation{
		ID: uuid.New(), UserID: userID, Title: title,
		Selection: sel, Status: conversation.StatusActive, CreatedAt: time.Now(),
	}
	f.byID[c.ID] = c
	for _, t := range turns {
		f.appendLocked(c.ID, t.Role, t.Content, nil)
	}
	c.Messages = f.messages[c.ID]
	return c, nil
}

func (f *fakeConversations) appendLocked(id uuid.UUID, role, content string, prov *conversation.Provenance) conversation.Message {
	m := conversation.Message{
		ID: uuid.New(), Role: role, Content: content,
		Status: conversation.MessageSent, Provenance: prov,
		Sequence: len(f.messages[id]) + 1, CreatedAt: time.Now(),
	}
	f.messages[id] = append(f.messages[id], m)
	return m
}

func (f *fakeConversations) SendMessage(_ context.Context, userID, id uuid.UUID, content string) (conversation.Conversation, []conversation.Message, error) {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return conversation.Conversation{}, nil, conversation.ErrNotFound
	}
	f.appendLocked(id, conversation.RoleUser, content, nil)
	return c, f.messages[id], nil
}

func (f *fakeConversations) CommitAssistant(_ context.Context, userID, id uuid.UUID, text string, prov *conversation.Provenance) (conversation.Message, error) {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return conversation.Message{}, conversation.ErrNotFound
	}
	return f.appendLocked(id, conversation.RoleAssistant, text, prov), nil
}

func (f *fakeConversations) Get(_ context.Context, userID, id uuid.UUID) (conversation.Conversation, error) {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	c.Messages = f.messages[id]
	return c, nil
}

func (f *fakeConversations) List(_ context.Context, userID uuid.UUID, includeArchived bool, _ int) ([]conversation.Summary, error) {
	var out []conversation.Summary
	for id, c := range f.byID {
		if c.UserID != userID || (!includeArchived && c.Status != conversation.StatusActive) {
			continue
		}
		out = append(out, conversation.Summary{
			ID: id, Title: c.Title, Selection: c.Selection,
			Status: c.Status, MessageCount: len(f.messages[id]),
		})
	}
	return out, nil
}

func (f *fakeConversations) UpdateTitle(_ context.Context, userID, id uuid.UUID, title string) error {
	if len(title) == 0 || len(title) > conversation.MaxTitleRunes {
		return conversation.ErrValidation
	}
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return conversation.ErrNotFound
	}
	c.Title = title
	f.byID[id] = c
	return nil
}

func (f *fakeConversations) Archive(_ context.Context, userID, id uuid.UUID) error {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID || c.Status != conversation.StatusActive {
		return conversation.ErrNotFound
	}
	c.Status = conversation.StatusArchived
	f.byID[id] = c
	return nil
}

func (f *fakeConversations) Delete(_ context.Context, userID, id uuid.UUID) error {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return conversation.ErrNotFound
	}
	delete(f.byID, id)
	delete(f.messages, id)
	return nil
}

// fakeAggregator returns a canned grounding context.
type fakeAggregator struct {
	ctx grounding.Context
	err error
}

func (f *fakeAggregator) Aggregate(_ context.Context, _ grounding.Query) (grounding.Context, error) {
	if f.err != nil {
		return grounding.Context{}, f.err
	}
	return f.ctx, nil
}

// fakeDriver replays scripted deltas and commits through the service.
type fakeDriver struct {
	deltas    []string
	usage     *generation.Usage
	err       error
	committer *fakeConversations
}

func (f *fakeDriver) Drive(ctx context.Context, req stream.Request, sink stream.Sink) (stream.Result, error) {
	if f.err != nil {
		return stream.Result{}, f.err
	}
	var text string
	for _, d := range f.deltas {
		text += d
		if sink.OnDelta != nil {
			if err := sink.OnDelta(d); err != nil {
				return stream.Result{}, err
			}
		}
	}
	if f.usage != nil && sink.OnUsage != nil {
		if err := sink.OnUsage(*f.usage); err != nil {
			return stream.Result{}, err
		}
	}
	m, err := f.committer.CommitAssistant(ctx, req.UserID, req.ConversationID, text, req.Provenance)
	if err != nil {
		return stream.Result{}, err
	}
	return stream.Result{Text: text, Usage: f.usage, Message: m}, nil
}

// fakeCaptures implements CaptureStore in memory.
type fakeCaptures struct {
	byID        map[uuid.UUID]capture.Capture
	collections map[uuid.UUID]capture.Collection
	indexed     []uuid.UUID
	deindexed   []uuid.UUID
}

func newFakeCaptures() *fakeCaptures {
	return &fakeCaptures{
		byID:        make(map[uuid.UUID]capture.Capture),
		collections: make(map[uuid.UUID]capture.Collection),
	}
}

func (f *fakeCaptures) Create(_ context.Context, userID uuid.UUID, c capture.Capture) (capture.Capture, error) {
	if c.Content == "" {
		return capture.Capture{}, capture.ErrEmptyContent
	}
	c.ID = uuid.New()
	c.UserID = userID
	c.Status = capture.StatusActive
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeCaptures) Get(_ context.Context, userID, id uuid.UUID) (capture.Capture, error) {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return capture.Capture{}, capture.ErrNotFound
	}
	return c, nil
}

func (f *fakeCaptures) List(_ context.Context, userID uuid.UUID, _, _ int) ([]capture.Capture, error) {
	var out []capture.Capture
	for _, c := range f.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCaptures) SetBookmarked(_ context.Context, userID, id uuid.UUID, bookmarked bool) error {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return capture.ErrNotFound
	}
	c.Bookmarked = bookmarked
	f.byID[id] = c
	return nil
}

func (f *fakeCaptures) Delete(_ context.Context, userID, id uuid.UUID) error {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return capture.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeCaptures) CreateCollection(_ context.Context, userID uuid.UUID, name string, ids []uuid.UUID) (capture.Collection, error) {
	col := capture.Collection{ID: uuid.New(), UserID: userID, Name: name, CaptureIDs: ids}
	f.collections[col.ID] = col
	return col, nil
}

func (f *fakeCaptures) GetCollection(_ context.Context, userID, id uuid.UUID) (capture.Collection, error) {
	col, ok := f.collections[id]
	if !ok || col.UserID != userID {
		return capture.Collection{}, capture.ErrNotFound
	}
	return col, nil
}

func (f *fakeCaptures) ListCollections(_ context.Context, userID uuid.UUID, _ int) ([]capture.Collection, error) {
	var out []capture.Collection
	for _, c := range f.collections {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Index/DeleteCapture make fakeCaptures double as the Indexer.
func (f *fakeCaptures) Index(_ context.Context, c capture.Capture) error {
	f.indexed = append(f.indexed, c.ID)
	return nil
}

func (f *fakeCaptures) DeleteCapture(_ context.Context, id uuid.UUID) error {
	f.deindexed = append(f.deindexed, id)
	return nil
}

// testServer bundles a server with its fakes.
type testServer struct {
	handler       http.Handler
	conversations *fakeConversations
	captures      *fakeCaptures
	aggregator    *fakeAggregator
	driver        *fakeDriver
	userID        uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conversations := newFakeConversations()
	captures := newFakeCaptures()
	aggregator := &fakeAggregator{ctx: grounding.Context{
		Sources:      []grounding.Source{},
		Fragments:    []grounding.Fragment{},
		TotalSources: 0,
	}}
	driver := &fakeDriver{deltas: []string{"Hello ", "world."}, committer: conversations}

	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		Auth:          HeaderAuth{},
		Captures:      captures,
		Indexer:       captures,
		Conversations: conversations,
		Pipeline:      NewPipeline(aggregator, driver, log.NewNop()),
		ChatTimeout:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}

	return &testServer{
		handler:       srv.Handler(),
		conversations: conversations,
		captures:      captures,
		aggregator:    aggregator,
		driver:        driver,
		userID:        uuid.New(),
	}
}

// decodeBody unmarshals a recorded JSON response into v.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body, err)
	}
}

// do issues an authenticated request against the test server.
func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-User-ID", ts.userID.String())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}
