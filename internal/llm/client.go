package llm

import (
	"context"
	"errors"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Transient failures of the model backend. Both are retryable from the
// caller's point of view.
var (
	ErrUnavailable = errors.New("llm: model unavailable")
	ErrTimeout     = errors.New("llm: model timeout")
)

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)

	// GenerateStream delivers the completion incrementally. Fragments are
	// sent on the returned channel in order; the channel is closed when the
	// stream ends. A non-nil error on the error channel terminates the
	// stream; the fragments received before it remain valid.
	GenerateStream(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
