package session

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"daytutor/internal/plan"
)

// Service owns all session mutations. Read-modify-write sequences are
// serialized behind a single mutex so two progress updates can never
// interleave on the same record.
type Service struct {
	store Store
	mu    sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (svc *Service) Create(userID, topic string, totalDays int, timePerDay string, mode Mode, target string) (*Session, error) {
	if mode == ModeQuick {
		totalDays = 1
	}
	if totalDays < 1 {
		return nil, fmt.Errorf("%w: total days must be at least 1", ErrDayOutOfRange)
	}
	now := time.Now().UTC()
	s := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Mode:       mode,
		Status:     StatusPlanning,
		Topic:      topic,
		Target:     target,
		TotalDays:  totalDays,
		TimePerDay: timePerDay,
		CurrentDay: 1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := svc.store.Save(s); err != nil {
		return nil, err
	}
	log.Printf("created session %s for user %s (topic=%q days=%d mode=%s)", s.ID, userID, topic, totalDays, mode)
	return s, nil
}

func (svc *Service) Get(sessionID string) (*Session, error) {
	return svc.store.Load(sessionID)
}

// GetOwned loads a session and rejects callers that do not own it.
func (svc *Service) GetOwned(userID, sessionID string) (*Session, error) {
	s, err := svc.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, ErrNotOwner
	}
	return s, nil
}

// List returns the user's sessions, newest first, with optional status and
// mode filters.
func (svc *Service) List(userID string, status Status, mode Mode, limit, offset int) ([]*Session, int, error) {
	all, err := svc.store.LoadByUser(userID)
	if err != nil {
		return nil, 0, err
	}
	var filtered []*Session
	for _, s := range all {
		if status != "" && s.Status != status {
			continue
		}
		if mode != "" && s.Mode != mode {
			continue
		}
		filtered = append(filtered, s)
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	total := len(filtered)
	if offset >= len(filtered) {
		return []*Session{}, total, nil
	}
	filtered = filtered[offset:]
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, total, nil
}

// AllWithStatus returns every session in the given status across all
// users. Used by the reminder sweep.
func (svc *Service) AllWithStatus(status Status) ([]*Session, error) {
	all, err := svc.store.LoadAll()
	if err != nil {
		return nil, err
	}
	var out []*Session
	for _, s := range all {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (svc *Service) Delete(sessionID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.store.Delete(sessionID)
}

// AttachPlan installs the generated curriculum and moves the session from
// PLANNING to READY.
func (svc *Service) AttachPlan(sessionID string, p *plan.Plan) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		if s.Status != StatusPlanning {
			return fmt.Errorf("%w: cannot attach plan in status %s", ErrWrongStatus, s.Status)
		}
		s.LessonPlan = p
		if p.TotalDays > 0 {
			s.TotalDays = p.TotalDays
		}
		s.Status = StatusReady
		return nil
	})
}

// MarkFailed records a plan-generation failure. Terminal.
func (svc *Service) MarkFailed(sessionID string) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		if s.Status != StatusPlanning {
			return fmt.Errorf("%w: cannot fail in status %s", ErrWrongStatus, s.Status)
		}
		s.Status = StatusFailed
		return nil
	})
}

// Begin moves READY to IN_PROGRESS on the first chat turn. Already being
// IN_PROGRESS is not an error; PLANNING and terminal states are.
func (svc *Service) Begin(sessionID string) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		switch s.Status {
		case StatusReady:
			s.Status = StatusInProgress
			return nil
		case StatusInProgress:
			return nil
		case StatusPlanning:
			return ErrPlanNotReady
		default:
			return fmt.Errorf("%w: session is %s", ErrWrongStatus, s.Status)
		}
	})
}

// AdvanceDay moves the cursor to the next day and resets the topic index.
// At the last day it fails and leaves state untouched.
func (svc *Service) AdvanceDay(sessionID string) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		if s.Status != StatusInProgress {
			return fmt.Errorf("%w: session is %s", ErrWrongStatus, s.Status)
		}
		if s.CurrentDay >= s.TotalDays {
			return ErrAlreadyAtLastDay
		}
		s.CurrentDay++
		s.CurrentTopicIndex = 0
		return nil
	})
}

// GotoDay sets the cursor to an arbitrary day within range. Revisiting
// earlier days and skipping ahead are both allowed; the topic index always
// resets.
func (svc *Service) GotoDay(sessionID string, day int) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		if day < 1 || day > s.TotalDays {
			return fmt.Errorf("%w: day must be between 1 and %d", ErrDayOutOfRange, s.TotalDays)
		}
		s.CurrentDay = day
		s.CurrentTopicIndex = 0
		return nil
	})
}

// AdvanceTopic bumps the topic index within the current day.
func (svc *Service) AdvanceTopic(sessionID string) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		if s.Status != StatusInProgress {
			return fmt.Errorf("%w: session is %s", ErrWrongStatus, s.Status)
		}
		s.CurrentTopicIndex++
		svc.completeIfFinished(s)
		return nil
	})
}

// UpdateProgress is the administrative override: it writes the cursor
// directly, bypassing completion signals. The day is clamped into range and
// the course is marked complete when the cursor lands past the last topic
// of the last day.
func (svc *Service) UpdateProgress(sessionID string, currentDay, currentTopicIndex *int) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		if currentDay != nil {
			day := *currentDay
			if day < 1 {
				return fmt.Errorf("%w: day must be at least 1", ErrDayOutOfRange)
			}
			if day > s.TotalDays {
				day = s.TotalDays
			}
			if day != s.CurrentDay {
				s.CurrentTopicIndex = 0
			}
			s.CurrentDay = day
		}
		if currentTopicIndex != nil {
			if *currentTopicIndex < 0 {
				return fmt.Errorf("%w: topic index must not be negative", ErrDayOutOfRange)
			}
			s.CurrentTopicIndex = *currentTopicIndex
		}
		svc.completeIfFinished(s)
		return nil
	})
}

// Complete drives the session to COMPLETED. Only valid from IN_PROGRESS.
func (svc *Service) Complete(sessionID string) (*Session, error) {
	return svc.mutate(sessionID, func(s *Session) error {
		if s.Status != StatusInProgress {
			return fmt.Errorf("%w: session is %s", ErrWrongStatus, s.Status)
		}
		svc.markCompleted(s)
		return nil
	})
}

// ProgressPercentage counts topics covered by the cursor against the plan.
func (svc *Service) ProgressPercentage(s *Session) float64 {
	if s.LessonPlan == nil {
		return 0
	}
	totalTopics := s.LessonPlan.TotalTopics()
	if totalTopics == 0 {
		return 0
	}
	completed := 0
	for i, d := range s.LessonPlan.Days {
		dayNum := i + 1
		switch {
		case dayNum < s.CurrentDay:
			completed += len(d.Topics)
		case dayNum == s.CurrentDay:
			if s.CurrentTopicIndex < len(d.Topics) {
				completed += s.CurrentTopicIndex
			} else {
				completed += len(d.Topics)
			}
		}
	}
	return float64(int(float64(completed)/float64(totalTopics)*1000)) / 10
}

func (svc *Service) completeIfFinished(s *Session) {
	if s.Status != StatusInProgress || s.LessonPlan == nil {
		return
	}
	if s.CurrentDay < s.TotalDays {
		return
	}
	lastDay := s.LessonPlan.DayContent(s.TotalDays)
	if len(lastDay.Topics) == 0 {
		return
	}
	if s.CurrentTopicIndex >= len(lastDay.Topics)-1 {
		svc.markCompleted(s)
	}
}

func (svc *Service) markCompleted(s *Session) {
	s.Status = StatusCompleted
	now := time.Now().UTC()
	s.CompletedAt = &now
}

// mutate loads, applies and saves under the service lock, stamping
// UpdatedAt. The mutation func must not retain the session.
func (svc *Service) mutate(sessionID string, fn func(*Session) error) (*Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	s, err := svc.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now().UTC()
	if err := svc.store.Save(s); err != nil {
		return nil, err
	}
	return s, nil
}
