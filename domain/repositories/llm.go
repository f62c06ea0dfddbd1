package repositories

import (
	"context"
	"time"
)

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Complete sends a single system+user exchange and returns the raw reply content
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ResponseFormat selects how the provider should shape its output
type ResponseFormat string

const (
	ResponseFormatText ResponseFormat = "text"
	ResponseFormatJSON ResponseFormat = "json_object"
)

// CompletionRequest carries the prompt and sampling parameters for one completion
type CompletionRequest struct {
	SystemPrompt     string
	UserMessage      string
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	MaxTokens        int
	Format           ResponseFormat
	Timeout          time.Duration
}
