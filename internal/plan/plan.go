package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Plan is the generated curriculum. It is immutable once attached to a
// session; progress is tracked by the session cursor, never by mutating
// the plan.
type Plan struct {
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	LearningOutcomes      []string `json:"learning_outcomes"`
	TotalDays             int      `json:"total_days"`
	TimePerDay            string   `json:"time_per_day"`
	Target                string   `json:"target,omitempty"`
	DifficultyProgression string   `json:"difficulty_progression,omitempty"`
	Days                  []Day    `json:"days"`
}

type Day struct {
	Day                 int      `json:"day"`
	Title               string   `json:"title"`
	Objectives          []string `json:"objectives"`
	EstimatedDuration   string   `json:"estimated_duration,omitempty"`
	Topics              []Topic  `json:"topics"`
	DaySummary          string   `json:"day_summary,omitempty"`
	PracticeSuggestions []string `json:"practice_suggestions,omitempty"`
}

type Topic struct {
	Name             string   `json:"name"`
	Duration         string   `json:"duration,omitempty"`
	KeyConcepts      []string `json:"key_concepts,omitempty"`
	TeachingApproach string   `json:"teaching_approach,omitempty"`
	CheckQuestions   []string `json:"check_questions,omitempty"`
}

// DayContent returns the content for a 1-indexed day, or an empty Day when
// the index falls outside the plan.
func (p *Plan) DayContent(day int) Day {
	if p == nil || day < 1 || day > len(p.Days) {
		return Day{}
	}
	return p.Days[day-1]
}

// TopicAt returns the 0-indexed topic of a day, or an empty Topic when out
// of range.
func (d Day) TopicAt(idx int) Topic {
	if idx < 0 || idx >= len(d.Topics) {
		return Topic{}
	}
	return d.Topics[idx]
}

func (p *Plan) TotalTopics() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, d := range p.Days {
		n += len(d.Topics)
	}
	return n
}

// Parse decodes a plan from raw model output. Models occasionally wrap the
// JSON in markdown fences despite being told not to, so those are stripped
// before decoding.
func Parse(content string) (*Plan, error) {
	raw := strings.TrimSpace(content)
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		raw = raw[idx+len("```json"):]
		if end := strings.Index(raw, "```"); end >= 0 {
			raw = raw[:end]
		}
	} else if idx := strings.Index(raw, "```"); idx >= 0 {
		raw = raw[idx+len("```"):]
		if end := strings.Index(raw, "```"); end >= 0 {
			raw = raw[:end]
		}
	}

	var p Plan
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return nil, fmt.Errorf("failed to decode lesson plan: %w", err)
	}
	if len(p.Days) == 0 {
		return nil, fmt.Errorf("lesson plan has no days")
	}
	if p.TotalDays == 0 {
		p.TotalDays = len(p.Days)
	}
	return &p, nil
}
