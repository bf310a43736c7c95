package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"daytutor/internal/chat"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID         string `json:"session_id"`
	Response          string `json:"response"`
	CurrentDay        int    `json:"current_day"`
	CurrentTopicIndex int    `json:"current_topic_index"`
	IsDayComplete     bool   `json:"is_day_complete"`
	IsCourseComplete  bool   `json:"is_course_complete"`
}

// handleChat is the burst endpoint. When the orchestrator elects to stream
// internally, the fragments are drained here and returned as one body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	d, err := s.orch.HandleMessage(r.Context(), userID, req.SessionID, req.Message)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	res := d.Result
	if d.Mode == chat.ModeStream {
		for range d.Fragments {
		}
		res = <-d.Final
	}
	if res.Err != nil {
		s.writeDomainError(w, res.Err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:         req.SessionID,
		Response:          res.Text,
		CurrentDay:        res.Progress.CurrentDay,
		CurrentTopicIndex: res.Progress.CurrentTopicIndex,
		IsDayComplete:     res.Progress.IsDayComplete,
		IsCourseComplete:  res.Progress.IsCourseComplete,
	})
}

// handleChatStream is the SSE endpoint. The event sequence is zero or more
// "token" events followed by exactly one terminal "done" or "error" event;
// full_response in done equals the concatenation of the token payloads.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	userID, req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	d, err := s.orch.HandleMessage(r.Context(), userID, req.SessionID, req.Message)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flush := func() {
		if canFlush {
			flusher.Flush()
		}
	}

	var res chat.Result
	switch d.Mode {
	case chat.ModeBurst:
		res = d.Result
		if res.Err == nil && res.Text != "" {
			writeSSE(w, "token", map[string]string{"content": res.Text})
			flush()
		}
	case chat.ModeStream:
		for f := range d.Fragments {
			writeSSE(w, "token", map[string]string{"content": f})
			flush()
		}
		res = <-d.Final
	}

	if res.Err != nil {
		writeSSE(w, "error", map[string]string{"error": res.Err.Error()})
		flush()
		return
	}

	writeSSE(w, "done", map[string]any{
		"session_id":          req.SessionID,
		"full_response":       res.Text,
		"current_day":         res.Progress.CurrentDay,
		"current_topic_index": res.Progress.CurrentTopicIndex,
		"is_day_complete":     res.Progress.IsDayComplete,
		"is_course_complete":  res.Progress.IsCourseComplete,
	})
	flush()
}

type startLessonRequest struct {
	SessionID string `json:"session_id"`
	Day       *int   `json:"day"`
}

func (s *Server) handleStartLesson(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req startLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	start, err := s.orch.StartLesson(r.Context(), userID, req.SessionID, req.Day)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, start)
}

// handleChatByID serves the per-session chat subresources:
// GET /api/chat/{id}/history, DELETE /api/chat/{id}/history,
// POST /api/chat/{id}/summarize.
func (s *Server) handleChatByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "unknown route")
		return
	}
	sessionID := parts[0]

	switch {
	case parts[1] == "history" && r.Method == http.MethodGet:
		view, err := s.orch.History(userID, sessionID, queryInt(r, "limit", 0))
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case parts[1] == "history" && r.Method == http.MethodDelete:
		if err := s.orch.ClearHistory(userID, sessionID); err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})

	case parts[1] == "summarize" && r.Method == http.MethodPost:
		summary, err := s.orch.ForceSummarize(r.Context(), userID, sessionID)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"summary": summary})

	default:
		writeError(w, http.StatusNotFound, "unknown route")
	}
}

func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (string, chatRequest, bool) {
	userID, ok := callerID(w, r)
	if !ok {
		return "", chatRequest{}, false
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return "", chatRequest{}, false
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return "", chatRequest{}, false
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return "", chatRequest{}, false
	}
	return userID, req, true
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
