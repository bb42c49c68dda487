package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultHTTPTimeout   = 60 * time.Second
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// ErrEmptyResponse marks a reply without candidate text.
var ErrEmptyResponse = errors.New("empty response")

// Config captures the settings needed to reach the Gemini API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps a genai client bound to one API key.
type Client struct {
	cfg    Config
	models *genai.Models

	retryMaxAttempts int
	retryDelay       time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts overrides the transport retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryDelay overrides the fixed delay between transport retries.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a Gemini client. BaseURL is only set for tests and
// proxies.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, errors.New("gemini client: api key required")
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	genaiCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	}
	inner, err := genai.NewClient(ctx, genaiCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	client := &Client{
		cfg:              cfg,
		models:           inner.Models,
		retryMaxAttempts: defaultRetryAttempts,
		retryDelay:       defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Model reports the configured default model.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Image is an inline image attached to the prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request describes one generateContent call.
type Request struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	Images          []Image
	Temperature     float64
	MaxOutputTokens int
	ThinkingBudget  int
	JSON            bool
}

// Usage is the token accounting reported in usage metadata.
type Usage struct {
	PromptTokens    int
	CandidateTokens int
	ThoughtsTokens  int
	TotalTokens     int
}

// Response is the generated text plus the model version that served it.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Generate sends req and returns the concatenated candidate text.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return Response{}, errors.New("gemini generate: model required")
	}
	prompt := strings.TrimSpace(req.UserPrompt)
	if prompt == "" && len(req.Images) == 0 {
		return Response{}, errors.New("gemini generate: user prompt required")
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	if prompt != "" {
		parts = append(parts, genai.NewPartFromText(prompt))
	}
	for _, image := range req.Images {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(image.Data, mimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return c.generateWithRetry(ctx, model, contents, buildConfig(req))
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		cfg.SystemInstruction = genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(system)}, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(req.ThinkingBudget))}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func (c *Client) generateWithRetry(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (Response, error) {
	attempts := max(c.retryMaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			out := Response{Content: strings.TrimSpace(resp.Text()), Model: strings.TrimSpace(resp.ModelVersion)}
			if out.Model == "" {
				out.Model = model
			}
			if meta := resp.UsageMetadata; meta != nil {
				out.Usage = Usage{
					PromptTokens:    int(meta.PromptTokenCount),
					CandidateTokens: int(meta.CandidatesTokenCount),
					ThoughtsTokens:  int(meta.ThoughtsTokenCount),
					TotalTokens:     int(meta.TotalTokenCount),
				}
			}
			if out.Content != "" {
				return out, nil
			}
			err = fmt.Errorf("gemini generate: %w from %s", ErrEmptyResponse, model)
		}
		lastErr = err
		if attempt == attempts || !retryable(ctx, err) {
			break
		}
		if err := c.sleep(ctx); err != nil {
			return Response{}, err
		}
	}
	if attempts > 1 {
		return Response{}, fmt.Errorf("gemini generate: failed after %d attempts: %w", attempts, lastErr)
	}
	return Response{}, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusRequestTimeout ||
			apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

func (c *Client) sleep(ctx context.Context) error {
	if c.retryDelay <= 0 {
		return ctx.Err()
	}
	if c.sleeper != nil {
		c.sleeper(c.retryDelay)
		return ctx.Err()
	}
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HealthCheck verifies the key and model with a one-word prompt.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Generate(ctx, Request{UserPrompt: "Reply with the single word OK."})
	if err != nil {
		return fmt.Errorf("gemini health: %w", err)
	}
	return nil
}
