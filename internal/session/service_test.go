package session

import (
	"errors"
	"testing"

	"daytutor/internal/plan"
)

func twoDayPlan() *plan.Plan {
	return &plan.Plan{
		Title:     "Go Concurrency",
		TotalDays: 2,
		Days: []plan.Day{
			{
				Day:    1,
				Title:  "Goroutines",
				Topics: []plan.Topic{{Name: "go statement"}, {Name: "WaitGroup"}},
			},
			{
				Day:    2,
				Title:  "Channels",
				Topics: []plan.Topic{{Name: "unbuffered"}, {Name: "select"}},
			},
		},
	}
}

func newTestService(t *testing.T) (*Service, *Session) {
	t.Helper()
	svc := NewService(NewMemoryStore())
	s, err := svc.Create("alice", "Go Concurrency", 2, "1 hour", ModeStandard, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return svc, s
}

func TestCreateStartsPlanning(t *testing.T) {
	_, s := newTestService(t)
	if s.Status != StatusPlanning {
		t.Fatalf("status = %s; want %s", s.Status, StatusPlanning)
	}
	if s.CurrentDay != 1 || s.CurrentTopicIndex != 0 {
		t.Fatalf("cursor = day %d topic %d; want day 1 topic 0", s.CurrentDay, s.CurrentTopicIndex)
	}
}

func TestGetOwnedRejectsOtherUsers(t *testing.T) {
	svc, s := newTestService(t)
	if _, err := svc.GetOwned("alice", s.ID); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if _, err := svc.GetOwned("mallory", s.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v; want ErrNotOwner", err)
	}
	if _, err := svc.GetOwned("alice", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestAttachPlanMovesToReady(t *testing.T) {
	svc, s := newTestService(t)
	updated, err := svc.AttachPlan(s.ID, twoDayPlan())
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if updated.Status != StatusReady {
		t.Fatalf("status = %s; want %s", updated.Status, StatusReady)
	}
	if _, err := svc.AttachPlan(s.ID, twoDayPlan()); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("second attach err = %v; want ErrWrongStatus", err)
	}
}

func TestMarkFailedOnlyFromPlanning(t *testing.T) {
	svc, s := newTestService(t)
	updated, err := svc.MarkFailed(s.ID)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if updated.Status != StatusFailed {
		t.Fatalf("status = %s; want %s", updated.Status, StatusFailed)
	}
	if _, err := svc.Begin(s.ID); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("begin on failed session err = %v; want ErrWrongStatus", err)
	}
}

func TestBeginTransitions(t *testing.T) {
	svc, s := newTestService(t)

	if _, err := svc.Begin(s.ID); !errors.Is(err, ErrPlanNotReady) {
		t.Fatalf("begin while planning err = %v; want ErrPlanNotReady", err)
	}

	if _, err := svc.AttachPlan(s.ID, twoDayPlan()); err != nil {
		t.Fatalf("attach: %v", err)
	}
	updated, err := svc.Begin(s.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Fatalf("status = %s; want %s", updated.Status, StatusInProgress)
	}

	// Idempotent while in progress.
	if _, err := svc.Begin(s.ID); err != nil {
		t.Fatalf("second begin: %v", err)
	}
}

func startedSession(t *testing.T) (*Service, *Session) {
	t.Helper()
	svc, s := newTestService(t)
	if _, err := svc.AttachPlan(s.ID, twoDayPlan()); err != nil {
		t.Fatalf("attach: %v", err)
	}
	started, err := svc.Begin(s.ID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return svc, started
}

func TestAdvanceDay(t *testing.T) {
	svc, s := startedSession(t)

	if _, err := svc.AdvanceTopic(s.ID); err != nil {
		t.Fatalf("advance topic: %v", err)
	}

	updated, err := svc.AdvanceDay(s.ID)
	if err != nil {
		t.Fatalf("advance day: %v", err)
	}
	if updated.CurrentDay != 2 {
		t.Fatalf("day = %d; want 2", updated.CurrentDay)
	}
	if updated.CurrentTopicIndex != 0 {
		t.Fatalf("topic index = %d after day change; want 0", updated.CurrentTopicIndex)
	}

	if _, err := svc.AdvanceDay(s.ID); !errors.Is(err, ErrAlreadyAtLastDay) {
		t.Fatalf("advance past last day err = %v; want ErrAlreadyAtLastDay", err)
	}
	after, err := svc.Get(s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.CurrentDay != 2 || after.Status != StatusInProgress {
		t.Fatalf("failed advance mutated state: day %d status %s", after.CurrentDay, after.Status)
	}
}

func TestGotoDay(t *testing.T) {
	svc, s := startedSession(t)

	if _, err := svc.AdvanceTopic(s.ID); err != nil {
		t.Fatalf("advance topic: %v", err)
	}
	updated, err := svc.GotoDay(s.ID, 2)
	if err != nil {
		t.Fatalf("goto: %v", err)
	}
	if updated.CurrentDay != 2 || updated.CurrentTopicIndex != 0 {
		t.Fatalf("cursor = day %d topic %d; want day 2 topic 0", updated.CurrentDay, updated.CurrentTopicIndex)
	}

	// Revisiting an earlier day is allowed.
	if _, err := svc.GotoDay(s.ID, 1); err != nil {
		t.Fatalf("goto back: %v", err)
	}

	for _, day := range []int{0, 3, -1} {
		if _, err := svc.GotoDay(s.ID, day); !errors.Is(err, ErrDayOutOfRange) {
			t.Fatalf("goto %d err = %v; want ErrDayOutOfRange", day, err)
		}
	}
}

func TestUpdateProgressClampsAndCompletes(t *testing.T) {
	svc, s := startedSession(t)

	day, topic := 9, 1
	updated, err := svc.UpdateProgress(s.ID, &day, &topic)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CurrentDay != 2 {
		t.Fatalf("day = %d; want clamp to 2", updated.CurrentDay)
	}
	// Topic 1 is the last topic of the last day.
	if updated.Status != StatusCompleted {
		t.Fatalf("status = %s; want %s", updated.Status, StatusCompleted)
	}
	if updated.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
}

func TestAdvanceTopicCompletesCourse(t *testing.T) {
	svc, s := startedSession(t)

	if _, err := svc.GotoDay(s.ID, 2); err != nil {
		t.Fatalf("goto: %v", err)
	}
	updated, err := svc.AdvanceTopic(s.ID)
	if err != nil {
		t.Fatalf("advance topic: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("status = %s; want %s after last topic of last day", updated.Status, StatusCompleted)
	}
}

func TestQuickModeSingleDay(t *testing.T) {
	svc := NewService(NewMemoryStore())
	s, err := svc.Create("alice", "JSON in Go", 7, "30 minutes", ModeQuick, "parse a config file")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.TotalDays != 1 {
		t.Fatalf("quick session has %d days; want 1", s.TotalDays)
	}

	p := &plan.Plan{
		TotalDays: 1,
		Days: []plan.Day{{
			Day:    1,
			Topics: []plan.Topic{{Name: "encoding/json"}},
		}},
	}
	if _, err := svc.AttachPlan(s.ID, p); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := svc.Begin(s.ID); err != nil {
		t.Fatalf("begin: %v", err)
	}
	updated, err := svc.Complete(s.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != StatusCompleted {
		t.Fatalf("status = %s; want %s", updated.Status, StatusCompleted)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	svc, s := newTestService(t)
	if _, err := svc.Complete(s.ID); !errors.Is(err, ErrWrongStatus) {
		t.Fatalf("complete while planning err = %v; want ErrWrongStatus", err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc := NewService(NewMemoryStore())
	for i := 0; i < 3; i++ {
		if _, err := svc.Create("alice", "Topic", 2, "1 hour", ModeStandard, ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	quick, err := svc.Create("alice", "Quick topic", 1, "1 hour", ModeQuick, "goal")
	if err != nil {
		t.Fatalf("create quick: %v", err)
	}
	if _, err := svc.Create("bob", "Other", 2, "1 hour", ModeStandard, ""); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	all, total, err := svc.List("alice", "", "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 || len(all) != 4 {
		t.Fatalf("list = %d/%d; want 4/4", len(all), total)
	}

	quickOnly, total, err := svc.List("alice", "", ModeQuick, 0, 0)
	if err != nil {
		t.Fatalf("list quick: %v", err)
	}
	if total != 1 || quickOnly[0].ID != quick.ID {
		t.Fatalf("quick filter returned %d sessions", total)
	}

	page, total, err := svc.List("alice", "", "", 2, 2)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 4 || len(page) != 2 {
		t.Fatalf("page = %d/%d; want 2 of 4", len(page), total)
	}
}

func TestProgressPercentage(t *testing.T) {
	svc, s := startedSession(t)

	if got := svc.ProgressPercentage(s); got != 0 {
		t.Fatalf("fresh session progress = %.1f; want 0", got)
	}

	updated, err := svc.GotoDay(s.ID, 2)
	if err != nil {
		t.Fatalf("goto: %v", err)
	}
	// Day 1 fully behind the cursor: 2 of 4 topics.
	if got := svc.ProgressPercentage(updated); got != 50.0 {
		t.Fatalf("progress = %.1f; want 50.0", got)
	}
}
