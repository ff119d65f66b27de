package llm

import (
	"context"
	"time"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is a provider-neutral request payload for one operation.
type Prompt struct {
	Operation string
	Messages  []Message
}

// Options tune a single completion. Zero values mean "provider default".
type Options struct {
	Model       string
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
}

type CompletionRequest struct {
	Prompt  Prompt
	Options Options
}

// Completion is the generated text plus bookkeeping for logs and saved runs.
type Completion struct {
	Text      string
	Model     string
	RequestID string
	Elapsed   time.Duration
}

// Completer is the interface the screening session depends on. Errors are
// always *Failure.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Temperature returns a pointer for Options.Temperature.
func Temperature(t float32) *float32 {
	return &t
}
