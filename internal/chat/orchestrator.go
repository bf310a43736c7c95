package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"daytutor/internal/auth"
	"daytutor/internal/llm"
	"daytutor/internal/memory"
	"daytutor/internal/session"
)

var (
	// ErrGenerationFailed wraps transient model failures. The user's
	// message is already buffered when this surfaces, so a retried request
	// continues the conversation without retyping.
	ErrGenerationFailed = errors.New("response generation failed")
	ErrEmptyMessage     = errors.New("message must not be empty")
)

// Verifier is the guard over the external identity provider's result.
type Verifier interface {
	IsVerified(userID string) bool
}

// StartLessonMessage is the synthetic user turn recorded when a lesson
// begins without an actual student message.
const StartLessonMessage = "[Started lesson]"

// Orchestrator is the chat façade. For every inbound message it decides
// which day the user is on, how much prior context feeds the model,
// whether to stream, and which progression transitions to execute.
//
// Requests against the same session are serialized; different sessions
// proceed fully in parallel.
type Orchestrator struct {
	sessions        *session.Service
	verifier        Verifier
	mem             *memory.Manager
	tutor           llm.Client
	streamThreshold int

	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

func NewOrchestrator(sessions *session.Service, verifier Verifier, mem *memory.Manager, tutor llm.Client, streamThreshold int) *Orchestrator {
	if streamThreshold <= 0 {
		streamThreshold = DefaultStreamThreshold
	}
	return &Orchestrator{
		sessions:        sessions,
		verifier:        verifier,
		mem:             mem,
		tutor:           tutor,
		streamThreshold: streamThreshold,
		inflight:        make(map[string]*sync.Mutex),
	}
}

// HandleMessage runs one chat turn. The returned Delivery is either a
// complete burst result or a fragment stream with a final result; callers
// must handle both variants.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID, sessionID, message string) (*Delivery, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := o.guard(userID, sessionID); err != nil {
		return nil, err
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	unlock := func() { lock.Unlock() }

	s, err := o.prepare(sessionID)
	if err != nil {
		unlock()
		return nil, err
	}

	day := s.CurrentDay
	summaries, buffer := o.mem.Context(sessionID, day)
	messages := buildPrompt(s, summaries, buffer, message)

	estimate := EstimateResponseTokens(message)
	if !ShouldStream(estimate, o.streamThreshold) {
		defer unlock()
		return o.burst(ctx, s, day, message, messages)
	}
	return o.stream(ctx, s, day, message, messages, unlock), nil
}

func (o *Orchestrator) burst(ctx context.Context, s *session.Session, day int, message string, messages []llm.Message) (*Delivery, error) {
	resp, err := o.tutor.Generate(ctx, messages)
	if err != nil {
		o.bufferUserTurn(s.ID, day, message)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	text, flags := parseControl(resp.Content)
	o.bufferExchange(s.ID, day, message, text)
	prog := o.applyCompletion(s, flags)

	return &Delivery{
		Mode:   ModeBurst,
		Result: Result{Text: text, Progress: prog},
	}, nil
}

func (o *Orchestrator) stream(ctx context.Context, s *session.Session, day int, message string, messages []llm.Message, unlock func()) *Delivery {
	fragments := make(chan string)
	final := make(chan Result, 1)

	// Generation is detached from the request context: a client
	// disconnect cancels delivery, not computation, so the stored history
	// matches what the model actually produced.
	genCtx := context.WithoutCancel(ctx)

	go func() {
		defer unlock()
		defer close(final)
		defer close(fragments)

		in, errc := o.tutor.GenerateStream(genCtx, messages)

		var raw strings.Builder
		var sent strings.Builder
		filter := &trailerFilter{}
		delivering := true

		emit := func(chunk string) {
			if chunk == "" {
				return
			}
			sent.WriteString(chunk)
			if !delivering {
				return
			}
			select {
			case fragments <- chunk:
			case <-ctx.Done():
				delivering = false
			}
		}

		for f := range in {
			raw.WriteString(f)
			emit(filter.feed(f))
		}
		emit(filter.flush())

		if err := <-errc; err != nil {
			o.bufferUserTurn(s.ID, day, message)
			final <- Result{Err: fmt.Errorf("%w: %v", ErrGenerationFailed, err)}
			return
		}

		text, flags := parseControl(raw.String())
		o.bufferExchange(s.ID, day, message, text)
		prog := o.applyCompletion(s, flags)

		final <- Result{Text: sent.String(), Progress: prog}
	}()

	return &Delivery{Mode: ModeStream, Fragments: fragments, Final: final}
}

// LessonStart is the result of starting or resuming a day.
type LessonStart struct {
	CurrentDay     int      `json:"current_day"`
	DayTitle       string   `json:"day_title"`
	Objectives     []string `json:"objectives"`
	WelcomeMessage string   `json:"welcome_message"`
}

// StartLesson begins or resumes a lesson, optionally jumping to a given
// day first, and has the tutor introduce the day's content.
func (o *Orchestrator) StartLesson(ctx context.Context, userID, sessionID string, day *int) (*LessonStart, error) {
	if _, err := o.guard(userID, sessionID); err != nil {
		return nil, err
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if day != nil {
		if _, err := o.sessions.GotoDay(sessionID, *day); err != nil {
			return nil, err
		}
	}

	s, err := o.prepare(sessionID)
	if err != nil {
		return nil, err
	}

	summaries, buffer := o.mem.Context(sessionID, s.CurrentDay)
	messages := buildPrompt(s, summaries, buffer, "")

	resp, err := o.tutor.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	text, _ := parseControl(resp.Content)
	o.bufferExchange(sessionID, s.CurrentDay, StartLessonMessage, text)

	dayContent := s.LessonPlan.DayContent(s.CurrentDay)
	title := dayContent.Title
	if title == "" {
		title = fmt.Sprintf("Day %d", s.CurrentDay)
	}
	return &LessonStart{
		CurrentDay:     s.CurrentDay,
		DayTitle:       title,
		Objectives:     dayContent.Objectives,
		WelcomeMessage: text,
	}, nil
}

// HistoryView is the compressed plus raw conversation for the current day.
type HistoryView struct {
	CurrentDay     int           `json:"current_day"`
	Summaries      []string      `json:"summaries"`
	RecentTurns    []memory.Turn `json:"recent_messages"`
	TotalSummaries int           `json:"total_summaries"`
}

func (o *Orchestrator) History(userID, sessionID string, limit int) (*HistoryView, error) {
	s, err := o.guard(userID, sessionID)
	if err != nil {
		return nil, err
	}
	summaries, buffer := o.mem.Context(sessionID, s.CurrentDay)
	if limit > 0 && len(buffer) > limit {
		buffer = buffer[len(buffer)-limit:]
	}
	return &HistoryView{
		CurrentDay:     s.CurrentDay,
		Summaries:      summaries,
		RecentTurns:    buffer,
		TotalSummaries: len(summaries),
	}, nil
}

// ClearHistory drops every buffer and summary of the session.
func (o *Orchestrator) ClearHistory(userID, sessionID string) error {
	if _, err := o.guard(userID, sessionID); err != nil {
		return err
	}
	o.mem.ClearSession(sessionID)
	return nil
}

// ForceSummarize compacts the current day's buffer regardless of size.
func (o *Orchestrator) ForceSummarize(ctx context.Context, userID, sessionID string) (string, error) {
	s, err := o.guard(userID, sessionID)
	if err != nil {
		return "", err
	}
	return o.mem.ForceSummarize(ctx, sessionID, s.CurrentDay)
}

// guard enforces the preconditions that never touch session state:
// existence, ownership, account verification.
func (o *Orchestrator) guard(userID, sessionID string) (*session.Session, error) {
	s, err := o.sessions.GetOwned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !o.verifier.IsVerified(userID) {
		return nil, auth.ErrVerificationRequired
	}
	return s, nil
}

// prepare reloads the session under the in-flight lock and moves READY to
// IN_PROGRESS. Chat is only possible while READY or IN_PROGRESS.
func (o *Orchestrator) prepare(sessionID string) (*session.Session, error) {
	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	switch s.Status {
	case session.StatusPlanning:
		return nil, session.ErrPlanNotReady
	case session.StatusReady:
		return o.sessions.Begin(sessionID)
	case session.StatusInProgress:
		return s, nil
	default:
		return nil, fmt.Errorf("%w: session is %s", session.ErrWrongStatus, s.Status)
	}
}

// applyCompletion validates the model's completion flags against the
// cursor and executes the resulting transition. Day completion is
// advisory: the day pointer is never advanced here, the flag is only
// surfaced for the caller's explicit follow-up.
func (o *Orchestrator) applyCompletion(s *session.Session, flags controlFlags) Progress {
	courseComplete := flags.CourseComplete && s.CurrentDay >= s.TotalDays
	if courseComplete {
		if _, err := o.sessions.Complete(s.ID); err != nil {
			log.Printf("course completion for session %s rejected: %v", s.ID, err)
			courseComplete = false
		}
	}

	current, err := o.sessions.Get(s.ID)
	if err != nil {
		current = s
	}
	return Progress{
		CurrentDay:        current.CurrentDay,
		CurrentTopicIndex: current.CurrentTopicIndex,
		IsDayComplete:     flags.DayComplete,
		IsCourseComplete:  courseComplete,
	}
}

func (o *Orchestrator) bufferUserTurn(sessionID string, day int, message string) {
	err := o.mem.Append(context.Background(), sessionID, day, memory.Turn{
		Role:    memory.RoleUser,
		Content: message,
	})
	if err != nil {
		log.Printf("summarization deferred for session %s: %v", sessionID, err)
	}
}

func (o *Orchestrator) bufferExchange(sessionID string, day int, userMessage, assistantText string) {
	o.bufferUserTurn(sessionID, day, userMessage)
	err := o.mem.Append(context.Background(), sessionID, day, memory.Turn{
		Role:    memory.RoleAssistant,
		Content: assistantText,
	})
	if err != nil {
		log.Printf("summarization deferred for session %s: %v", sessionID, err)
	}
}

func (o *Orchestrator) sessionLock(sessionID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.inflight[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.inflight[sessionID] = lock
	}
	return lock
}
