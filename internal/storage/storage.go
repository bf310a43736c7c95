package storage

import "time"

// Event is one chat turn as it went over the wire, journaled for audit and
// recovery. Events are appended in chronological order per session.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Day       int       `json:"day"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
}

// Recorder abstracts the append-only turn journal.
// Implementations can be file-based, database, etc.
// LoadTurns should return events in chronological order.
// AppendTurn should atomically append a new event.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendTurn(event Event) error
	LoadTurns(sessionID string) ([]Event, error)
}
