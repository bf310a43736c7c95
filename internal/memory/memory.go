package memory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"daytutor/internal/storage"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultBufferSize is the number of raw turns held before compaction.
	DefaultBufferSize = 10
)

// Turn is one raw chat message inside a day's buffer.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Day       int       `json:"day"`
}

// Key identifies a buffer. Turns are partitioned by day so switching days
// starts from a fresh buffer view.
type Key struct {
	SessionID string
	Day       int
}

// Summarizer compresses a full buffer into one summary string.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn) (string, error)
}

// Manager holds the rolling window of raw turns per (session, day) and
// triggers summarization when a buffer reaches the threshold. Summaries are
// append-only; the buffer plus its summaries reconstruct the effective
// context window.
//
// All operations on the same key are serialized; different keys proceed in
// parallel.
type Manager struct {
	threshold  int
	summarizer Summarizer
	recorder   storage.Recorder // optional turn journal

	mu        sync.Mutex
	buffers   map[Key][]Turn
	summaries map[Key][]string
	locks     map[Key]*sync.Mutex
}

func NewManager(threshold int, summarizer Summarizer, recorder storage.Recorder) *Manager {
	if threshold <= 0 {
		threshold = DefaultBufferSize
	}
	return &Manager{
		threshold:  threshold,
		summarizer: summarizer,
		recorder:   recorder,
		buffers:    make(map[Key][]Turn),
		summaries:  make(map[Key][]string),
		locks:      make(map[Key]*sync.Mutex),
	}
}

// Append adds a turn to the day's buffer. If the buffer reaches the
// threshold, the whole buffer is summarized synchronously before Append
// returns: on success the buffer is cleared and exactly one summary is
// added; on failure the turn stays durable, the buffer is left over the
// threshold and the next Append retries with the same accumulated turns.
func (m *Manager) Append(ctx context.Context, sessionID string, day int, turn Turn) error {
	key := Key{SessionID: sessionID, Day: day}
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	turn.Day = day
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	m.mu.Lock()
	m.buffers[key] = append(m.buffers[key], turn)
	buffered := len(m.buffers[key])
	m.mu.Unlock()

	if m.recorder != nil {
		ev := storage.Event{
			Timestamp: turn.Timestamp,
			SessionID: sessionID,
			Day:       day,
			Role:      turn.Role,
			Content:   turn.Content,
		}
		if err := m.recorder.AppendTurn(ev); err != nil {
			log.Printf("failed to journal turn for session %s: %v", sessionID, err)
		}
	}

	if buffered < m.threshold {
		return nil
	}
	return m.compactLocked(ctx, key)
}

// Context returns the summaries and the raw buffer for a day, oldest
// compressed knowledge first, freshest raw turns last. Both slices are
// copies.
func (m *Manager) Context(sessionID string, day int) (summaries []string, buffer []Turn) {
	key := Key{SessionID: sessionID, Day: day}
	m.mu.Lock()
	defer m.mu.Unlock()
	summaries = append([]string(nil), m.summaries[key]...)
	buffer = append([]Turn(nil), m.buffers[key]...)
	return summaries, buffer
}

// Clear empties a day's buffer. Summaries are retained as prior evidence.
func (m *Manager) Clear(sessionID string, day int) {
	key := Key{SessionID: sessionID, Day: day}
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	m.mu.Lock()
	delete(m.buffers, key)
	m.mu.Unlock()
}

// ClearSession drops every buffer and summary belonging to a session.
func (m *Manager) ClearSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.buffers {
		if key.SessionID == sessionID {
			delete(m.buffers, key)
		}
	}
	for key := range m.summaries {
		if key.SessionID == sessionID {
			delete(m.summaries, key)
		}
	}
}

// ForceSummarize compacts the day's buffer regardless of its size. Useful
// at session end or on explicit request. Returns the new summary, or an
// empty string when the buffer had nothing to compact.
func (m *Manager) ForceSummarize(ctx context.Context, sessionID string, day int) (string, error) {
	key := Key{SessionID: sessionID, Day: day}
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	empty := len(m.buffers[key]) == 0
	m.mu.Unlock()
	if empty {
		return "", nil
	}
	if err := m.compactLocked(ctx, key); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ss := m.summaries[key]
	return ss[len(ss)-1], nil
}

// compactLocked summarizes and clears the key's buffer. The caller must
// hold the key lock.
func (m *Manager) compactLocked(ctx context.Context, key Key) error {
	m.mu.Lock()
	turns := append([]Turn(nil), m.buffers[key]...)
	m.mu.Unlock()

	summary, err := m.summarizer.Summarize(ctx, turns)
	if err != nil {
		// Turns stay buffered; the next append retries with the same
		// accumulated buffer, so exactly one summary results per crossing.
		return fmt.Errorf("summarization deferred: %w", err)
	}

	m.mu.Lock()
	m.summaries[key] = append(m.summaries[key], summary)
	total := len(m.summaries[key])
	// Drop exactly the turns that were summarized; appends cannot have
	// interleaved because the key lock is held.
	m.buffers[key] = m.buffers[key][len(turns):]
	if len(m.buffers[key]) == 0 {
		delete(m.buffers, key)
	}
	m.mu.Unlock()

	log.Printf("compacted %d turns into summary #%d for session %s day %d",
		len(turns), total, key.SessionID, key.Day)
	return nil
}

func (m *Manager) keyLock(key Key) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}
