package plan

import (
	"context"
	"fmt"
	"log"
	"strings"

	"daytutor/internal/llm"
)

const generatorSystemPrompt = `You are an expert curriculum designer. You create well-structured,
progressive lesson plans for any topic. You always output valid JSON and nothing else:
no markdown, no explanations, just pure JSON.`

const planPromptTemplate = `Create a comprehensive %d-day lesson plan for learning: "%s"

The student can dedicate %s per day to studying.

Output a JSON object with this exact shape:
{
  "title": "Course title",
  "description": "Brief course description (2-3 sentences)",
  "learning_outcomes": ["outcome 1", "outcome 2"],
  "total_days": %d,
  "time_per_day": "%s",
  "days": [
    {
      "day": 1,
      "title": "Day 1 - [Topic Title]",
      "objectives": ["By the end of this day, you will..."],
      "estimated_duration": "X minutes",
      "topics": [
        {
          "name": "Topic name",
          "duration": "15 minutes",
          "key_concepts": ["concept 1", "concept 2"],
          "teaching_approach": "How to teach this",
          "check_questions": ["Question to verify understanding"]
        }
      ],
      "day_summary": "Brief summary of what was covered"
    }
  ]
}

Keep to 3-4 topics per day, each day building on the previous one.`

const quickPlanPromptTemplate = `Create a focused single-session lesson plan for learning: "%s"

TARGET/GOAL: %s

The student wants to learn this in ONE session of approximately %s.
Prioritize the concepts most relevant to the target.

Output a JSON object with the same shape as a multi-day plan but with
"total_days": 1 and exactly one entry in "days".`

// Generator produces lesson plans through the planner model. It is invoked
// once per session, at creation time.
type Generator struct {
	client llm.Client
}

func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client}
}

// Generate builds a multi-day plan for a topic.
func (g *Generator) Generate(ctx context.Context, topic string, totalDays int, timePerDay string) (*Plan, error) {
	prompt := fmt.Sprintf(planPromptTemplate, totalDays, topic, timePerDay, totalDays, timePerDay)
	return g.invoke(ctx, prompt)
}

// GenerateQuick builds a single-day plan targeting a user-supplied goal.
func (g *Generator) GenerateQuick(ctx context.Context, topic, target, timePerDay string) (*Plan, error) {
	prompt := fmt.Sprintf(quickPlanPromptTemplate, topic, target, timePerDay)
	p, err := g.invoke(ctx, prompt)
	if err != nil {
		return nil, err
	}
	p.TotalDays = 1
	p.Days = p.Days[:1]
	if p.Target == "" {
		p.Target = target
	}
	return p, nil
}

func (g *Generator) invoke(ctx context.Context, prompt string) (*Plan, error) {
	messages := []llm.Message{
		{Role: "system", Content: generatorSystemPrompt},
		{Role: "user", Content: prompt},
	}

	resp, err := g.client.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	p, err := Parse(resp.Content)
	if err != nil {
		log.Printf("planner returned unparseable plan: %v", err)
		return nil, err
	}
	return p, nil
}

// WelcomeMessage renders the post-generation greeting shown before the
// first lesson starts.
func WelcomeMessage(topic string, p *Plan) string {
	if p == nil || len(p.Days) == 0 {
		return fmt.Sprintf("I've prepared your learning plan for **%s**. Ready to begin?", topic)
	}

	day1 := p.Days[0]
	var b strings.Builder
	fmt.Fprintf(&b, "🎉 **Your personalized learning plan for %q is ready!**\n\n", topic)
	fmt.Fprintf(&b, "📚 **Course Overview:**\n- **Duration:** %d days\n", p.TotalDays)
	if p.Description != "" {
		fmt.Fprintf(&b, "- **Description:** %s\n", p.Description)
	}
	fmt.Fprintf(&b, "\n📅 **Day 1: %s**\n", day1.Title)
	if len(day1.Objectives) > 0 {
		b.WriteString("\n**Today's objectives:**\n")
		for i, obj := range day1.Objectives {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "• %s\n", obj)
		}
	}
	b.WriteString("\n✨ **Ready to start Day 1?** Just say 'Let's begin!' or ask me anything about the plan.")
	return b.String()
}
