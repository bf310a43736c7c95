package session

import (
	"errors"
	"time"

	"daytutor/internal/plan"
)

// Status is the lifecycle of a learning session. Forward transitions only:
// PLANNING → READY → IN_PROGRESS → COMPLETED. FAILED is terminal and only
// reachable from PLANNING when plan generation does not produce a plan.
type Status string

const (
	StatusPlanning   Status = "PLANNING"
	StatusReady      Status = "READY"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

type Mode string

const (
	// ModeStandard is a multi-day curriculum.
	ModeStandard Mode = "standard"
	// ModeQuick is a single-session course with a user-supplied target; a
	// degenerate case of the same state machine with TotalDays = 1.
	ModeQuick Mode = "quick"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrNotOwner         = errors.New("session belongs to another user")
	ErrAlreadyAtLastDay = errors.New("already on the last day")
	ErrDayOutOfRange    = errors.New("day out of range")
	ErrPlanNotReady     = errors.New("lesson plan is still being generated")
	ErrWrongStatus      = errors.New("operation not valid in current session status")
)

type Session struct {
	ID         string `json:"session_id"`
	UserID     string `json:"user_id"`
	Mode       Mode   `json:"mode"`
	Status     Status `json:"status"`
	Topic      string `json:"topic"`
	Target     string `json:"target,omitempty"`
	TotalDays  int    `json:"total_days"`
	TimePerDay string `json:"time_per_day"`

	LessonPlan *plan.Plan `json:"lesson_plan,omitempty"`

	// Progress cursor. CurrentDay is 1-indexed and never exceeds TotalDays;
	// CurrentTopicIndex is 0-indexed and resets whenever CurrentDay changes.
	CurrentDay        int `json:"current_day"`
	CurrentTopicIndex int `json:"current_topic_index"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a copy safe to hand to callers; the plan pointer is shared
// because plans are immutable once attached.
func (s *Session) Clone() *Session {
	cp := *s
	return &cp
}
