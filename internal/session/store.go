package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store abstracts session persistence as load/save-by-key operations.
// Implementations must be safe for concurrent use.
type Store interface {
	Load(sessionID string) (*Session, error)
	Save(s *Session) error
	Delete(sessionID string) error
	LoadByUser(userID string) ([]*Session, error)
	LoadAll() ([]*Session, error)
}

// FileStore keeps all sessions in one JSON file, rewritten on every save.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileStore{path: path}, nil
}

func (r *FileStore) Load(sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, err := r.loadUnlocked()
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.ID == sessionID {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (r *FileStore) Save(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	updated := false
	for i, existing := range sessions {
		if existing.ID == s.ID {
			sessions[i] = s
			updated = true
			break
		}
	}
	if !updated {
		sessions = append(sessions, s)
	}
	return r.saveUnlocked(sessions)
}

func (r *FileStore) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	out := sessions[:0]
	found := false
	for _, s := range sessions {
		if s.ID == sessionID {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		return ErrNotFound
	}
	return r.saveUnlocked(out)
}

func (r *FileStore) LoadByUser(userID string) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, err := r.loadUnlocked()
	if err != nil {
		return nil, err
	}
	var out []*Session
	for _, s := range sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *FileStore) LoadAll() ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *FileStore) loadUnlocked() ([]*Session, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	var sessions []*Session
	dec := json.NewDecoder(f)
	if err := dec.Decode(&sessions); err != nil {
		// Empty or fresh file
		return []*Session{}, nil
	}
	return sessions, nil
}

func (r *FileStore) saveUnlocked(sessions []*Session) error {
	f, err := os.OpenFile(r.path, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(sessions)
}

// MemoryStore is an in-memory Store used by tests and the Telegram
// front-end when no persistence path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Load(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryStore) LoadByUser(userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) LoadAll() ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	return out, nil
}
