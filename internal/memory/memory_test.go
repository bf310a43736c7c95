package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	calls [][]Turn
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, turns []Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, turns)
	return fmt.Sprintf("summary #%d of %d turns", len(f.calls), len(turns)), nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func appendN(t *testing.T, m *Manager, sessionID string, day, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		err := m.Append(context.Background(), sessionID, day, Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
}

func TestAppendCompactsAtThreshold(t *testing.T) {
	sum := &fakeSummarizer{}
	m := NewManager(10, sum, nil)

	appendN(t, m, "s1", 1, 9)
	if got := sum.callCount(); got != 0 {
		t.Fatalf("summarizer called %d times before threshold", got)
	}
	summaries, buffer := m.Context("s1", 1)
	if len(summaries) != 0 || len(buffer) != 9 {
		t.Fatalf("got %d summaries, %d buffered; want 0, 9", len(summaries), len(buffer))
	}

	appendN(t, m, "s1", 1, 1)
	summaries, buffer = m.Context("s1", 1)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries after threshold; want 1", len(summaries))
	}
	if len(buffer) != 0 {
		t.Fatalf("buffer holds %d turns after compaction; want 0", len(buffer))
	}
	if got := sum.callCount(); got != 1 {
		t.Fatalf("summarizer called %d times; want 1", got)
	}
	if got := len(sum.calls[0]); got != 10 {
		t.Fatalf("summarized %d turns; want 10", got)
	}
}

func TestFailedSummarizationKeepsBufferAndRetries(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("model down")}
	m := NewManager(3, sum, nil)

	appendN(t, m, "s1", 1, 2)
	err := m.Append(context.Background(), "s1", 1, Turn{Role: RoleUser, Content: "third"})
	if err == nil {
		t.Fatal("expected deferred-summarization error")
	}

	// The failing turn is still durable.
	_, buffer := m.Context("s1", 1)
	if len(buffer) != 3 {
		t.Fatalf("buffer holds %d turns after failure; want 3", len(buffer))
	}

	// Model recovers; the next append compacts the whole backlog at once.
	sum.err = nil
	if err := m.Append(context.Background(), "s1", 1, Turn{Role: RoleAssistant, Content: "fourth"}); err != nil {
		t.Fatalf("append after recovery: %v", err)
	}
	summaries, buffer := m.Context("s1", 1)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries; want exactly 1", len(summaries))
	}
	if len(buffer) != 0 {
		t.Fatalf("buffer holds %d turns; want 0", len(buffer))
	}
	if got := len(sum.calls[0]); got != 4 {
		t.Fatalf("summarized %d turns; want the 4 accumulated ones", got)
	}
}

func TestSummariesAccumulate(t *testing.T) {
	sum := &fakeSummarizer{}
	m := NewManager(2, sum, nil)

	appendN(t, m, "s1", 1, 6)
	summaries, _ := m.Context("s1", 1)
	if len(summaries) != 3 {
		t.Fatalf("got %d summaries after 3 crossings; want 3", len(summaries))
	}
	for i, s := range summaries {
		want := fmt.Sprintf("summary #%d of 2 turns", i+1)
		if s != want {
			t.Fatalf("summary[%d] = %q; want %q", i, s, want)
		}
	}
}

func TestBuffersPartitionedByDay(t *testing.T) {
	m := NewManager(10, &fakeSummarizer{}, nil)

	appendN(t, m, "s1", 1, 3)
	appendN(t, m, "s1", 2, 2)
	appendN(t, m, "s2", 1, 1)

	_, day1 := m.Context("s1", 1)
	_, day2 := m.Context("s1", 2)
	_, other := m.Context("s2", 1)
	if len(day1) != 3 || len(day2) != 2 || len(other) != 1 {
		t.Fatalf("buffers = %d/%d/%d; want 3/2/1", len(day1), len(day2), len(other))
	}
	for _, turn := range day2 {
		if turn.Day != 2 {
			t.Fatalf("day 2 buffer holds a turn stamped day %d", turn.Day)
		}
	}
}

func TestClearKeepsSummaries(t *testing.T) {
	sum := &fakeSummarizer{}
	m := NewManager(2, sum, nil)

	appendN(t, m, "s1", 1, 3)
	summaries, buffer := m.Context("s1", 1)
	if len(summaries) != 1 || len(buffer) != 1 {
		t.Fatalf("setup: %d summaries, %d buffered", len(summaries), len(buffer))
	}

	m.Clear("s1", 1)
	summaries, buffer = m.Context("s1", 1)
	if len(buffer) != 0 {
		t.Fatalf("buffer holds %d turns after clear", len(buffer))
	}
	if len(summaries) != 1 {
		t.Fatalf("clear dropped summaries; %d left, want 1", len(summaries))
	}
}

func TestClearSessionDropsEverything(t *testing.T) {
	sum := &fakeSummarizer{}
	m := NewManager(2, sum, nil)

	appendN(t, m, "s1", 1, 3)
	appendN(t, m, "s1", 2, 1)
	appendN(t, m, "s2", 1, 1)

	m.ClearSession("s1")

	s1sum, s1buf := m.Context("s1", 1)
	if len(s1sum) != 0 || len(s1buf) != 0 {
		t.Fatalf("session s1 still has %d summaries, %d turns", len(s1sum), len(s1buf))
	}
	_, s2buf := m.Context("s2", 1)
	if len(s2buf) != 1 {
		t.Fatalf("clearing s1 touched s2: %d turns left", len(s2buf))
	}
}

func TestForceSummarize(t *testing.T) {
	sum := &fakeSummarizer{}
	m := NewManager(10, sum, nil)

	summary, err := m.ForceSummarize(context.Background(), "s1", 1)
	if err != nil {
		t.Fatalf("force on empty buffer: %v", err)
	}
	if summary != "" {
		t.Fatalf("force on empty buffer returned %q", summary)
	}

	appendN(t, m, "s1", 1, 4)
	summary, err = m.ForceSummarize(context.Background(), "s1", 1)
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if summary == "" {
		t.Fatal("force returned empty summary for non-empty buffer")
	}
	_, buffer := m.Context("s1", 1)
	if len(buffer) != 0 {
		t.Fatalf("buffer holds %d turns after force", len(buffer))
	}
}

func TestConcurrentAppendsOneSummaryPerCrossing(t *testing.T) {
	sum := &fakeSummarizer{}
	m := NewManager(10, sum, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Append(context.Background(), "s1", 1, Turn{Role: RoleUser, Content: fmt.Sprintf("turn %d", i)})
		}(i)
	}
	wg.Wait()

	summaries, buffer := m.Context("s1", 1)
	if got := len(summaries); got != 5 {
		t.Fatalf("got %d summaries for 50 turns at threshold 10; want 5", got)
	}
	if len(buffer) != 0 {
		t.Fatalf("buffer holds %d turns; want 0", len(buffer))
	}
	total := 0
	for _, call := range sum.calls {
		total += len(call)
	}
	if total != 50 {
		t.Fatalf("summarized %d turns in total; want 50", total)
	}
}
