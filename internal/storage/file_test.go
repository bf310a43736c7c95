package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileRecorderAppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "turns.jsonl")
	rec, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	events := []Event{
		{Timestamp: now, SessionID: "s1", Day: 1, Role: "user", Content: "hello"},
		{Timestamp: now, SessionID: "s2", Day: 1, Role: "user", Content: "other session"},
		{Timestamp: now, SessionID: "s1", Day: 2, Role: "assistant", Content: "hi there"},
	}
	for _, ev := range events {
		if err := rec.AppendTurn(ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := rec.LoadTurns("s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d events for s1; want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi there" {
		t.Fatalf("events out of order: %v", got)
	}
	if got[1].Day != 2 || got[1].Role != "assistant" {
		t.Fatalf("event fields lost: %+v", got[1])
	}
}

func TestFileRecorderEmptyAndCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turns.jsonl")
	rec, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := rec.LoadTurns("s1")
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty file yielded %d events", len(got))
	}

	if err := rec.AppendTurn(Event{SessionID: "s1", Role: "user", Content: "valid"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("{not json}\n\n"); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	_ = f.Close()

	got, err = rec.LoadTurns("s1")
	if err != nil {
		t.Fatalf("load with garbage: %v", err)
	}
	if len(got) != 1 || got[0].Content != "valid" {
		t.Fatalf("garbage lines not skipped: %v", got)
	}
}
