package chat

import "strings"

// DeliveryMode selects how a response travels to the caller. The choice is
// made once per request, before generation begins, and never revisited
// mid-response.
type DeliveryMode int

const (
	// ModeBurst returns the full response as a single unit.
	ModeBurst DeliveryMode = iota
	// ModeStream delivers the response as incremental text fragments
	// terminated by one final result.
	ModeStream
)

// DefaultStreamThreshold is the expected-token count at which responses
// switch from burst to streaming delivery.
const DefaultStreamThreshold = 100

// Progress is the session cursor snapshot returned with every response.
type Progress struct {
	CurrentDay        int  `json:"current_day"`
	CurrentTopicIndex int  `json:"current_topic_index"`
	IsDayComplete     bool `json:"is_day_complete"`
	IsCourseComplete  bool `json:"is_course_complete"`
}

// Result carries the aggregated response and the post-transition cursor.
type Result struct {
	Text     string
	Progress Progress
	Err      error
}

// Delivery is the tagged response variant: exactly one of the burst fields
// or the stream channels is populated, according to Mode.
type Delivery struct {
	Mode DeliveryMode

	// Burst
	Result Result

	// Stream. Fragments is closed when the stream ends; Final then yields
	// exactly one Result whose Text equals the concatenation of all
	// fragments delivered before it.
	Fragments <-chan string
	Final     <-chan Result
}

var ackPhrases = []string{
	"i understand", "got it", "continue", "next", "move on",
	"let's continue", "ready", "understood", "makes sense",
	"i get it", "clear", "okay", "ok", "yes", "thanks", "thank you",
}

var questionPrefixes = []string{
	"why", "how", "what", "explain", "describe", "compare", "walk me through",
	"tell me",
}

// EstimateResponseTokens is the fast pre-estimate of how long the tutor's
// answer will be, based on the class of the incoming message: short
// acknowledgements draw short confirmations, open questions draw full
// explanations.
func EstimateResponseTokens(message string) int {
	trimmed := strings.ToLower(strings.TrimSpace(message))
	if trimmed == "" {
		return 250 // lesson introductions are long
	}
	for _, p := range ackPhrases {
		if trimmed == p {
			return 40
		}
	}
	if len(trimmed) < 20 {
		for _, p := range ackPhrases {
			if strings.Contains(trimmed, p) {
				return 40
			}
		}
	}
	for _, p := range questionPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return 250
		}
	}
	if strings.Contains(trimmed, "?") {
		return 250
	}
	return 150
}

// ShouldStream reports whether a response of the estimated size is worth
// the multi-event protocol.
func ShouldStream(estimatedTokens, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultStreamThreshold
	}
	return estimatedTokens >= threshold
}
