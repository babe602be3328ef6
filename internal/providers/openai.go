package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/google/uuid"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o"
)

// OpenAIConfig holds configuration for the OpenAI SDK client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // optional, for OpenAI-compatible endpoints
	DefaultModel string
	Timeout      time.Duration
	RPM          int
	MaxRetries   int
}

// OpenAIClient implements LLMClient using the official OpenAI SDK. Useful
// both for OpenAI itself and for any OpenAI-compatible inference gateway.
type OpenAIClient struct {
	defaultModel string
	timeout      time.Duration
	rpm          int
	maxRetries   int
	client       openai.Client
	limiter      *RateLimiter
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM == 0 {
		cfg.RPM = 60
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		defaultModel: cfg.DefaultModel,
		timeout:      cfg.Timeout,
		rpm:          cfg.RPM,
		maxRetries:   cfg.MaxRetries,
		client:       openai.NewClient(opts...),
		limiter:      NewRateLimiter(cfg.RPM),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string { return OpenAIName }

// RequestsPerMinute returns the rate limit for worker pools.
func (c *OpenAIClient) RequestsPerMinute() int { return c.rpm }

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIClient) MaxRetries() int { return c.maxRetries }

// Limiter exposes the client's token bucket so worker pools throttling
// their own calls share it. The client drains it on 429 responses.
func (c *OpenAIClient) Limiter() *RateLimiter { return c.limiter }

// Chat sends a chat completion request. Structured output is enforced by
// the caller via prompt plus local parse/validate rather than the SDK's
// response_format, which keeps behavior identical across backends.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			messages = append(messages, openai.SystemMessage(m.Content))
			continue
		}
		if len(m.Images) == 0 {
			messages = append(messages, openai.UserMessage(m.Content))
			continue
		}

		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Images)+1)
		parts = append(parts, openai.TextContentPart(m.Content))
		for _, img := range m.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
			}))
		}
		messages = append(messages, openai.UserMessage(parts))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		Attempts:  1,
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithRequestTimeout(timeout))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			c.limiter.Record429()
		}
		result.Success = false
		result.ErrorType = "api_error"
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		result.Success = false
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("no choices in response")
	}

	result.Success = true
	result.Content = resp.Choices[0].Message.Content
	result.ModelUsed = resp.Model
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)

	return result, nil
}

// Verify interface
var _ LLMClient = (*OpenAIClient)(nil)
