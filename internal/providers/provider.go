// Package providers implements clients for vision-capable inference
// services. All clients speak the same LLMClient interface so the vision
// extractor does not care which backend serves a call.
package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient is the interface for vision/chat completion requests.
type LLMClient interface {
	// Chat sends a chat completion request. Messages may carry page images.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g. "openrouter").
	Name() string

	// RequestsPerMinute returns the client's rate limit for worker pools.
	RequestsPerMinute() int

	// MaxRetries returns the maximum retry attempts per call.
	MaxRetries() int
}

// Message represents a chat message.
type Message struct {
	Role    string   `json:"role"` // "system" or "user"
	Content string   `json:"content"`
	Images  [][]byte `json:"-"` // PNG page renderings, base64-encoded in the request
}

// ResponseFormat requests structured output from backends that support it.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is a request to an inference service.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     time.Duration

	// Structured output. Backends that cannot enforce it still receive the
	// schema in the prompt; the caller parses and validates locally.
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an inference call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
