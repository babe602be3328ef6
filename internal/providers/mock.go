package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Per-call responses keyed by request ID; falls back to ResponseText.
	Responses map[string]string

	RPM     int
	Retries int

	// State
	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: "mock response",
		RPM:          600,
		Retries:      3,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string { return MockClientName }

// RequestsPerMinute returns the RPM limit for rate limiting.
func (c *MockClient) RequestsPerMinute() int { return c.RPM }

// MaxRetries returns the maximum retry attempts.
func (c *MockClient) MaxRetries() int { return c.Retries }

// RequestCount returns how many calls the mock has served.
func (c *MockClient) RequestCount() int64 { return c.requestCount.Load() }

// Chat serves a canned chat response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	result := &ChatResult{
		RequestID: req.RequestID,
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}
	if result.RequestID == "" {
		result.RequestID = fmt.Sprintf("mock-%d", count)
	}

	if c.ShouldFail || (c.FailAfter > 0 && count > int64(c.FailAfter)) {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = "mock client configured to fail"
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("mock client configured to fail")
	}

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			result.Success = false
			result.ErrorType = "cancelled"
			result.ErrorMessage = ctx.Err().Error()
			return result, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	content := c.ResponseText
	if c.Responses != nil {
		if r, ok := c.Responses[req.RequestID]; ok {
			content = r
		}
	}
	if len(c.ResponseJSON) > 0 {
		content = string(c.ResponseJSON)
		result.ParsedJSON = c.ResponseJSON
	}

	result.Success = true
	result.Content = content
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
