package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"daytutor/internal/auth"
	"daytutor/internal/chat"
	"daytutor/internal/plan"
	"daytutor/internal/session"
	"daytutor/internal/storage"
	"daytutor/internal/summarizer"
)

// Server is the JSON + SSE surface over the session service and the chat
// orchestrator. Caller identity travels in the X-User-ID header; the
// authentication handshake itself happens upstream.
type Server struct {
	addr     string
	sessions *session.Service
	planner  *plan.Generator
	orch     *chat.Orchestrator
	recorder storage.Recorder // optional turn journal
	server   *http.Server

	planTimeout time.Duration
}

func NewServer(addr string, sessions *session.Service, planner *plan.Generator, orch *chat.Orchestrator, recorder storage.Recorder) *Server {
	return &Server{
		addr:        addr,
		sessions:    sessions,
		planner:     planner,
		orch:        orch,
		recorder:    recorder,
		planTimeout: 2 * time.Minute,
	}
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	log.Printf("🌐 Starting tutor API server on %s", s.addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler builds the route table. Exposed separately so tests can drive the
// mux through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/stream", s.handleChatStream)
	mux.HandleFunc("/api/chat/start-lesson", s.handleStartLesson)
	mux.HandleFunc("/api/chat/", s.handleChatByID)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	Topic      string `json:"topic"`
	TotalDays  int    `json:"total_days"`
	TimePerDay string `json:"time_per_day"`
	Mode       string `json:"mode"`
	Target     string `json:"target"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Topic) == "" {
			writeError(w, http.StatusBadRequest, "topic is required")
			return
		}
		mode := session.ModeStandard
		switch req.Mode {
		case "", string(session.ModeStandard):
		case string(session.ModeQuick):
			mode = session.ModeQuick
		default:
			writeError(w, http.StatusBadRequest, "mode must be standard or quick")
			return
		}
		if mode == session.ModeStandard && req.TotalDays < 1 {
			writeError(w, http.StatusBadRequest, "total_days must be at least 1")
			return
		}

		sess, err := s.sessions.Create(userID, req.Topic, req.TotalDays, req.TimePerDay, mode, req.Target)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		go s.generatePlan(sess)
		writeJSON(w, http.StatusCreated, sess)

	case http.MethodGet:
		status := session.Status(r.URL.Query().Get("status"))
		mode := session.Mode(r.URL.Query().Get("mode"))
		limit := queryInt(r, "limit", 50)
		offset := queryInt(r, "offset", 0)

		list, total, err := s.sessions.List(userID, status, mode, limit, offset)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sessions": list,
			"total":    total,
			"limit":    limit,
			"offset":   offset,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// generatePlan runs the planner for a freshly created session. The session
// sits in PLANNING until the plan attaches; callers poll GET /api/sessions/{id}.
func (s *Server) generatePlan(sess *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), s.planTimeout)
	defer cancel()

	var p *plan.Plan
	var err error
	if sess.Mode == session.ModeQuick {
		p, err = s.planner.GenerateQuick(ctx, sess.Topic, sess.Target, sess.TimePerDay)
	} else {
		p, err = s.planner.Generate(ctx, sess.Topic, sess.TotalDays, sess.TimePerDay)
	}
	if err != nil {
		log.Printf("plan generation failed for session %s: %v", sess.ID, err)
		if _, ferr := s.sessions.MarkFailed(sess.ID); ferr != nil {
			log.Printf("failed to mark session %s failed: %v", sess.ID, ferr)
		}
		return
	}
	if _, err := s.sessions.AttachPlan(sess.ID, p); err != nil {
		log.Printf("failed to attach plan to session %s: %v", sess.ID, err)
		return
	}
	log.Printf("✅ Plan ready for session %s: %d days, %d topics", sess.ID, p.TotalDays, p.TotalTopics())
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if parts[0] == "" {
		writeError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	sessionID := parts[0]
	rest := parts[1:]

	sess, err := s.sessions.GetOwned(userID, sessionID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, sess)

	case len(rest) == 0 && r.Method == http.MethodDelete:
		// Memory first: once the record is gone ownership can no longer
		// be established.
		_ = s.orch.ClearHistory(userID, sessionID)
		if err := s.sessions.Delete(sessionID); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	case len(rest) == 1 && rest[0] == "plan" && r.Method == http.MethodGet:
		if sess.LessonPlan == nil {
			s.writeDomainError(w, session.ErrPlanNotReady)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":          sess.ID,
			"status":              sess.Status,
			"plan":                sess.LessonPlan,
			"current_day":         sess.CurrentDay,
			"current_topic_index": sess.CurrentTopicIndex,
			"progress_percentage": s.sessions.ProgressPercentage(sess),
		})

	case len(rest) == 3 && rest[0] == "plan" && rest[1] == "day" && r.Method == http.MethodGet:
		day, err := strconv.Atoi(rest[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid day number")
			return
		}
		if sess.LessonPlan == nil {
			s.writeDomainError(w, session.ErrPlanNotReady)
			return
		}
		if day < 1 || day > sess.TotalDays {
			s.writeDomainError(w, session.ErrDayOutOfRange)
			return
		}
		writeJSON(w, http.StatusOK, sess.LessonPlan.DayContent(day))

	case len(rest) == 1 && rest[0] == "progress" && r.Method == http.MethodPatch:
		var req struct {
			CurrentDay        *int `json:"current_day"`
			CurrentTopicIndex *int `json:"current_topic_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.sessions.UpdateProgress(sessionID, req.CurrentDay, req.CurrentTopicIndex)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case len(rest) == 1 && rest[0] == "advance-day" && r.Method == http.MethodPost:
		updated, err := s.sessions.AdvanceDay(sessionID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case len(rest) == 1 && rest[0] == "transcript" && r.Method == http.MethodGet:
		// The durable journal: every turn ever recorded, across all days,
		// independent of summarization.
		if s.recorder == nil {
			writeError(w, http.StatusNotFound, "turn journal is not configured")
			return
		}
		events, err := s.recorder.LoadTurns(sessionID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": sessionID,
			"turns":      events,
			"total":      len(events),
		})

	case len(rest) == 2 && rest[0] == "goto-day" && r.Method == http.MethodPost:
		day, err := strconv.Atoi(rest[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid day number")
			return
		}
		updated, err := s.sessions.GotoDay(sessionID, day)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	default:
		writeError(w, http.StatusNotFound, "unknown route")
	}
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrNotOwner):
		writeError(w, http.StatusForbidden, "session belongs to another user")
	case errors.Is(err, auth.ErrVerificationRequired):
		writeError(w, http.StatusForbidden, "account verification required")
	case errors.Is(err, chat.ErrGenerationFailed),
		errors.Is(err, summarizer.ErrModelUnavailable),
		errors.Is(err, summarizer.ErrModelTimeout):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, session.ErrAlreadyAtLastDay),
		errors.Is(err, session.ErrDayOutOfRange),
		errors.Is(err, session.ErrPlanNotReady),
		errors.Is(err, session.ErrWrongStatus),
		errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "X-User-ID header is required")
		return "", false
	}
	return userID, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
