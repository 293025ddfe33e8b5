package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/generation"
	"github.com/Nathanim1919/deepen-backend/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedGenerator replays a fixed chunk sequence.
type scriptedGenerator struct {
	chunks []string
	usage  *generation.Usage
	err    error

	// cancelAfter cancels the provided context after N chunks have
	// been delivered, simulating a mid-stream disconnect.
	cancelAfter int
	cancel      context.CancelFunc
}

func (g *scriptedGenerator) Complete(_ context.Context, _ string, _ []generation.Message) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	var text string
	for _, c := range g.chunks {
		text += c
	}
	return text, nil
}

func (g *scriptedGenerator) Stream(ctx context.Context, _ string, _ []generation.Message, onChunk func(generation.Chunk) error) (generation.Result, error) {
	if g.err != nil {
		return generation.Result{}, g.err
	}
	var text string
	for i, c := range g.chunks {
		if err := onChunk(generation.Chunk{Delta: c}); err != nil {
			return generation.Result{}, err
		}
		text += c
		if g.cancel != nil && i+1 == g.cancelAfter {
			g.cancel()
		}
	}
	return generation.Result{Text: text, Usage: g.usage}, nil
}

// recordingCommitter tracks committed assistant turns.
type recordingCommitter struct {
	commits []string
	prov    *conversation.Provenance
	err     error
}

func (r *recordingCommitter) CommitAssistant(_ context.Context, _, _ uuid.UUID, text string, prov *conversation.Provenance) (conversation.Message, error) {
	if r.err != nil {
		return conversation.Message{}, r.err
	}
	r.commits = append(r.commits, text)
	r.prov = prov
	return conversation.Message{ID: uuid.New(), Role: conversation.RoleAssistant, Content: text}, nil
}

func request() Request {
	return Request{
		UserID:         uuid.New(),
		ConversationID: uuid.New(),
		Messages:       []generation.Message{{Role: generation.RoleUser, Content: "q"}},
	}
}

func TestDriveRelaysDeltasInOrder(t *testing.T) {
	gen := &scriptedGenerator{
		chunks: []string{"The ", "answer ", "is 42."},
		usage:  &generation.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
	committer := &recordingCommitter{}
	coord := New(gen, committer, log.NewNop())

	var deltas []string
	var usage *generation.Usage
	res, err := coord.Drive(context.Background(), request(), Sink{
		OnDelta: func(d string) error { deltas = append(deltas, d); return nil },
		OnUsage: func(u generation.Usage) error { usage = &u; return nil },
	})
	if err != nil {
		t.Fatalf("Drive() = %v", err)
	}

	if len(deltas) != 3 || deltas[0] != "The " || deltas[2] != "is 42." {
		t.Errorf("deltas = %v, want arrival order preserved", deltas)
	}
	if res.Text != "The answer is 42." {
		t.Errorf("final text = %q", res.Text)
	}
	if usage == nil || usage.TotalTokens != 15 {
		t.Errorf("usage not forwarded: %+v", usage)
	}
	if len(committer.commits) != 1 || committer.commits[0] != "The answer is 42." {
		t.Errorf("commits = %v, want the final text committed once", committer.commits)
	}
}

func TestDriveCancelDiscardsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &scriptedGenerator{
		chunks:      []string{"partial ", "output ", "never seen"},
		cancelAfter: 2,
		cancel:      cancel,
	}
	committer := &recordingCommitter{}
	coord := New(gen, committer, log.NewNop())

	var deltas []string
	_, err := coord.Drive(ctx, request(), Sink{
		OnDelta: func(d string) error { deltas = append(deltas, d); return nil },
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Drive() = %v, want context.Canceled", err)
	}
	if len(deltas) != 2 {
		t.Errorf("deltas delivered after cancel: %v", deltas)
	}
	if len(committer.commits) != 0 {
		t.Errorf("partial text was persisted: %v", committer.commits)
	}
}

func TestDriveGenerationErrorSkipsCommit(t *testing.T) {
	gen := &scriptedGenerator{err: generation.ErrGeneration}
	committer := &recordingCommitter{}
	coord := New(gen, committer, log.NewNop())

	_, err := coord.Drive(context.Background(), request(), Sink{
		OnDelta: func(string) error { return nil },
	})
	if !errors.Is(err, generation.ErrGeneration) {
		t.Errorf("Drive() = %v, want ErrGeneration", err)
	}
	if len(committer.commits) != 0 {
		t.Errorf("commit happened after generation failure")
	}
}

func TestDriveSinkErrorAborts(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"a", "b", "c"}}
	committer := &recordingCommitter{}
	coord := New(gen, committer, log.NewNop())

	sinkErr := errors.New("client went away")
	var delivered int
	_, err := coord.Drive(context.Background(), request(), Sink{
		OnDelta: func(string) error {
			delivered++
			if delivered == 2 {
				return sinkErr
			}
			return nil
		},
	})
	if !errors.Is(err, sinkErr) {
		t.Errorf("Drive() = %v, want sink error", err)
	}
	if len(committer.commits) != 0 {
		t.Errorf("commit happened after sink abort")
	}
}

func TestDriveBlockingPath(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"full response"}}
	committer := &recordingCommitter{}
	coord := New(gen, committer, log.NewNop())

	req := request()
	req.Provenance = &conversation.Provenance{ChunkCount: 3}
	res, err := coord.Drive(context.Background(), req, Sink{})
	if err != nil {
		t.Fatalf("Drive() = %v", err)
	}
	if res.Text != "full response" {
		t.Errorf("text = %q", res.Text)
	}
	if committer.prov == nil || committer.prov.ChunkCount != 3 {
		t.Errorf("provenance not attached to commit: %+v", committer.prov)
	}
	if res.Message.Role != conversation.RoleAssistant {
		t.Errorf("committed message = %+v", res.Message)
	}
}

func TestDriveEmptyTextNotCommitted(t *testing.T) {
	gen := &scriptedGenerator{chunks: nil}
	committer := &recordingCommitter{}
	coord := New(gen, committer, log.NewNop())

	res, err := coord.Drive(context.Background(), request(), Sink{
		OnDelta: func(string) error { return nil },
	})
	if err != nil {
		t.Fatalf("Drive() = %v", err)
	}
	if res.Text != "" || len(committer.commits) != 0 {
		t.Errorf("empty generation must not persist a turn")
	}
}
