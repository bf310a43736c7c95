package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"daytutor/internal/llm"
	"daytutor/internal/memory"
	"daytutor/internal/session"
)

const tutorSystemPrompt = `You are an expert, patient and engaging AI tutor.
You are teaching: %s

CURRENT SESSION CONTEXT:
Day %d of %d
Today's focus: %s
Today's objectives: %s

CURRENT TOPIC TO TEACH:
%s

PREVIOUS CONVERSATION SUMMARY:
%s

TEACHING METHODOLOGY:
1. ONE concept at a time; check understanding before moving on.
2. Guide discovery through questions rather than lecturing.
3. If the student confirms understanding, move to the next concept.
4. If the student is confused, simplify and use analogies.
5. Keep responses conversational; use markdown when helpful.

PROGRESS REPORTING:
At the very end of every response, append exactly one control line:
<<<CTRL{"day_complete": <bool>, "course_complete": <bool>}>>>
Set day_complete to true only when every topic of today's plan has been
covered and confirmed. Set course_complete to true only when this is the
final day and its content is finished. The control line is removed before
the student sees your answer.`

const firstMessagePrompt = `The student has just started Day %d.
Give them a warm welcome and introduce what they'll learn today.
Then begin teaching the first topic: %s
Start with a hook that explains why this topic matters, then teach the
first concept. ONE concept at a time, then check for understanding.`

// buildPrompt assembles the model input: system prompt carrying the day's
// curriculum and compressed history, then the raw buffer, then the new
// user message. An empty userMessage produces the day-introduction prompt
// instead.
func buildPrompt(s *session.Session, summaries []string, buffer []memory.Turn, userMessage string) []llm.Message {
	day := s.LessonPlan.DayContent(s.CurrentDay)
	topic := day.TopicAt(s.CurrentTopicIndex)

	topicJSON := "Wrapping up the day"
	if topic.Name != "" {
		if b, err := json.MarshalIndent(topic, "", "  "); err == nil {
			topicJSON = string(b)
		}
	}

	memorySummary := "This is the start of the conversation."
	if len(summaries) > 0 {
		memorySummary = strings.Join(summaries, "\n\n")
	}

	dayTitle := day.Title
	if dayTitle == "" {
		dayTitle = fmt.Sprintf("Day %d", s.CurrentDay)
	}

	system := fmt.Sprintf(tutorSystemPrompt,
		s.Topic,
		s.CurrentDay, s.TotalDays,
		dayTitle,
		strings.Join(day.Objectives, ", "),
		topicJSON,
		memorySummary,
	)

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, t := range buffer {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}

	if userMessage != "" {
		messages = append(messages, llm.Message{Role: memory.RoleUser, Content: userMessage})
	} else {
		first := day.TopicAt(0)
		firstJSON := "the day's content"
		if first.Name != "" {
			if b, err := json.MarshalIndent(first, "", "  "); err == nil {
				firstJSON = string(b)
			}
		}
		intro := fmt.Sprintf(firstMessagePrompt, s.CurrentDay, firstJSON)
		messages = append(messages, llm.Message{Role: memory.RoleUser, Content: intro})
	}
	return messages
}
