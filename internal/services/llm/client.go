package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	jsonResponseType      = "json_object"
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
)

// Config captures the runtime settings required to talk to OpenRouter.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// DefaultHTTPTimeout returns the timeout used when TimeoutSeconds is unset.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Client wraps the OpenRouter chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the transport retry count (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Model reports the configured default model.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Image is an inline image attached to the user message.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request describes one chat completion. Zero values fall back to the client's
// model, no token ceiling, and no reasoning budget.
type Request struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	Images          []Image
	Temperature     float64
	MaxTokens       int
	ReasoningTokens int
	JSON            bool
}

// Usage is the token accounting OpenRouter reports for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completion text plus the model that served it.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Complete sends req and returns the first non-empty completion.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Response{}, errors.New("llm complete: api key required")
	}
	userPrompt := strings.TrimSpace(req.UserPrompt)
	if userPrompt == "" && len(req.Images) == 0 {
		return Response{}, errors.New("llm complete: user prompt required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return Response{}, errors.New("llm complete: model required")
	}

	payload := chatCompletionRequest{
		Model:       model,
		Temperature: req.Temperature,
	}
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: userContent(userPrompt, req.Images)})
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if req.ReasoningTokens > 0 {
		payload.Reasoning = &reasoningConfig{MaxTokens: req.ReasoningTokens}
	}
	if req.JSON {
		payload.ResponseFormat = map[string]string{"type": jsonResponseType}
	}
	return c.completionWithRetry(ctx, payload, "llm complete")
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.New("llm health: api key required")
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: "Respond with {\"ok\":true}"},
		},
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	resp, err := c.completionWithRetry(ctx, payload, "llm health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(resp.Content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

// userContent returns a plain string for text-only messages and a part list
// when images are attached.
func userContent(prompt string, images []Image) any {
	if len(images) == 0 {
		return prompt
	}
	parts := make([]contentPart, 0, len(images)+1)
	if prompt != "" {
		parts = append(parts, contentPart{Type: "text", Text: prompt})
	}
	for _, image := range images {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		parts = append(parts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image.Data),
			},
		})
	}
	return parts
}
