package testutil

import "testing"

func TestParseSSEEvents(t *testing.T) {
	body := "event: delta\ndata: {\"delta\":\"Hello\"}\n\n" +
		": heartbeat\n" +
		"event: done\ndata: {\"done\":true}\n\n"

	events := ParseSSEEvents(t, body)
	if len(events) != 2 {
		t.Fatalf("parsed %d events, want 2", len(events))
	}
	if events[0].Type != "delta" || events[0].Data != `{"delta":"Hello"}` {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != "done" {
		t.Errorf("second event type = %q, want done", events[1].Type)
	}
}

func TestParseSSEEvents_MultilineData(t *testing.T) {
	body := "event: delta\ndata: line one\ndata: line two\n\n"

	events := ParseSSEEvents(t, body)
	if len(events) != 1 {
		t.Fatalf("parsed %d events, want 1", len(events))
	}
	if events[0].Data != "line one\nline two" {
		t.Errorf("data = %q, want joined lines", events[0].Data)
	}
}

func TestFindEvent(t *testing.T) {
	events := []SSEEvent{{Type: "delta"}, {Type: "done", Data: "x"}}

	if got := FindEvent(events, "done"); got == nil || got.Data != "x" {
		t.Errorf("FindEvent(done) = %+v", got)
	}
	if got := FindEvent(events, "usage"); got != nil {
		t.Errorf("FindEvent(usage) = %+v, want nil", got)
	}
}
