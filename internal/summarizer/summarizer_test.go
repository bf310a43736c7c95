package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"daytutor/internal/llm"
	"daytutor/internal/memory"
)

type fakeClient struct {
	lastMessages []llm.Message
	response     string
	err          error
}

func (f *fakeClient) Generate(_ context.Context, messages []llm.Message) (llm.Response, error) {
	f.lastMessages = messages
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Content: f.response}, nil
}

func (f *fakeClient) GenerateStream(_ context.Context, _ []llm.Message) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	close(out)
	errc <- f.err
	return out, errc
}

func TestSummarizeRendersConversation(t *testing.T) {
	client := &fakeClient{response: "The student learned about channels."}
	a := New(client)

	summary, err := a.Summarize(context.Background(), []memory.Turn{
		{Role: memory.RoleUser, Content: "What is a channel?"},
		{Role: memory.RoleAssistant, Content: "A typed conduit."},
	})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary != "The student learned about channels." {
		t.Fatalf("summary = %q", summary)
	}

	if len(client.lastMessages) == 0 {
		t.Fatal("no prompt sent")
	}
	prompt := client.lastMessages[len(client.lastMessages)-1].Content
	if !strings.Contains(prompt, "user: What is a channel?") {
		t.Fatalf("conversation missing from prompt: %q", prompt)
	}
	if !strings.Contains(prompt, "assistant: A typed conduit.") {
		t.Fatalf("conversation missing from prompt: %q", prompt)
	}
}

func TestSummarizeMapsErrors(t *testing.T) {
	timeout := &fakeClient{err: llm.ErrTimeout}
	if _, err := New(timeout).Summarize(context.Background(), []memory.Turn{{Role: "user", Content: "x"}}); !errors.Is(err, ErrModelTimeout) {
		t.Fatalf("timeout mapped to %v", err)
	}

	down := &fakeClient{err: llm.ErrUnavailable}
	if _, err := New(down).Summarize(context.Background(), []memory.Turn{{Role: "user", Content: "x"}}); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("unavailable mapped to %v", err)
	}
}
