package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRecorder_keeps_last_messages(t *testing.T) {
	r := NewRecorder(2, nil)
	r.Success("one")
	r.Warning("two")
	r.Error("three")

	got := r.Messages()
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0] != (Message{Level: "warning", Text: "two"}) || got[1] != (Message{Level: "error", Text: "three"}) {
		t.Errorf("unexpected messages: %+v", got)
	}
	last, ok := r.Last()
	if !ok || last.Text != "three" {
		t.Errorf("Last: got %+v ok=%v", last, ok)
	}
}

func TestRecorder_forwards_to_log(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewRecorder(0, NewLog(log))

	r.Error("add room failed: boom")
	if !strings.Contains(buf.String(), "add room failed: boom") {
		t.Errorf("expected forwarded log line, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected error level, got %q", buf.String())
	}
}
