// Package summarizer wraps the language model behind the memory manager's
// Summarizer contract. It is a pure function of its input aside from the
// model call; failures are retryable and leave no state behind.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"daytutor/internal/llm"
	"daytutor/internal/memory"
)

var (
	ErrModelUnavailable = errors.New("summarizer: model unavailable")
	ErrModelTimeout     = errors.New("summarizer: model timeout")
)

const summaryPrompt = `Summarize the following conversation into a concise paragraph that captures:
1. Key topics discussed
2. Concepts the student understood well
3. Areas where the student struggled
4. Current progress in the lesson

Keep the summary under 200 words. Focus on information that would help continue the conversation.

Conversation:
%s`

type Adapter struct {
	client llm.Client
}

func New(client llm.Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Summarize(ctx context.Context, turns []memory.Turn) (string, error) {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}

	messages := []llm.Message{
		{Role: "user", Content: fmt.Sprintf(summaryPrompt, b.String())},
	}

	resp, err := a.client.Generate(ctx, messages)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return "", fmt.Errorf("%w: %v", ErrModelTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return strings.TrimSpace(resp.Content), nil
}
