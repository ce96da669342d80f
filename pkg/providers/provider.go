// Package providers talks to OpenAI-compatible chat completion APIs. The
// bot only needs plain text in and text out; tool calling and streaming are
// not part of the surface.
package providers

import "context"

// Message is one chat message in API wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UsageInfo is the token accounting a provider reports.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is a completed model reply.
type LLMResponse struct {
	Content      string
	FinishReason string
	Usage        *UsageInfo
}

// Options tunes one request. Zero values fall back to provider defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Provider is a chat completion backend.
type Provider interface {
	Chat(ctx context.Context, messages []Message, opts Options) (*LLMResponse, error)
	DefaultModel() string
}
