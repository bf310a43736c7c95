package chat

import (
	"encoding/json"
	"strings"
)

// The tutor model reports lesson progression through a machine-readable
// trailer appended to its answer. The trailer is stripped before the text
// reaches the user, and its flags are treated as untrusted input: the state
// machine validates them against the session cursor before any transition.
const (
	controlOpen  = "<<<CTRL"
	controlClose = ">>>"
)

type controlFlags struct {
	DayComplete    bool `json:"day_complete"`
	CourseComplete bool `json:"course_complete"`
}

// parseControl splits a raw model response into the visible text and the
// completion flags. A missing or malformed trailer yields zero flags; the
// text is returned untouched in that case apart from trimming.
func parseControl(raw string) (string, controlFlags) {
	var flags controlFlags
	idx := strings.LastIndex(raw, controlOpen)
	if idx < 0 {
		return strings.TrimSpace(raw), flags
	}
	rest := raw[idx+len(controlOpen):]
	end := strings.Index(rest, controlClose)
	if end < 0 {
		return strings.TrimSpace(raw), flags
	}
	payload := rest[:end]
	if err := json.Unmarshal([]byte(payload), &flags); err != nil {
		return strings.TrimSpace(raw), controlFlags{}
	}
	visible := raw[:idx] + rest[end+len(controlClose):]
	return strings.TrimSpace(visible), flags
}

// trailerFilter removes the control trailer from a fragment stream without
// ever emitting a partial trailer. It holds back any stream tail that could
// be the start of the open marker, releasing it once the next fragment
// disambiguates; everything after the marker is swallowed.
type trailerFilter struct {
	done bool
	hold string
}

func (f *trailerFilter) feed(chunk string) string {
	if f.done {
		return ""
	}
	s := f.hold + chunk
	if i := strings.Index(s, controlOpen); i >= 0 {
		f.done = true
		f.hold = ""
		return s[:i]
	}
	keep := 0
	max := len(controlOpen) - 1
	if max > len(s) {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(s, controlOpen[:k]) {
			keep = k
			break
		}
	}
	f.hold = s[len(s)-keep:]
	return s[:len(s)-keep]
}

// flush releases any held-back tail once the stream has ended.
func (f *trailerFilter) flush() string {
	if f.done {
		return ""
	}
	h := f.hold
	f.hold = ""
	return h
}
