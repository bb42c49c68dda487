package reconcile

import (
	"context"

	"scriptsync/internal/services/gemini"
	"scriptsync/internal/services/llm"
)

// Oracle performs a single model invocation. Implementations must not retry.
type Oracle interface {
	Generate(ctx context.Context, req OracleRequest) (OracleResponse, error)
}

// OracleRequest is one model invocation.
type OracleRequest struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	ThinkingBudget  int
	MaxOutputTokens int
	JSON            bool
}

// OracleResponse carries the raw reply and the model that produced it.
type OracleResponse struct {
	Text  string
	Model string
	Usage Usage
}

// Usage is provider-neutral token accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Add returns the sum of two usage records.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

type openRouterOracle struct {
	client *llm.Client
}

// NewOpenRouterOracle adapts an OpenRouter client. The client should be built
// with llm.WithRetryMaxAttempts(1).
func NewOpenRouterOracle(client *llm.Client) Oracle {
	return openRouterOracle{client: client}
}

func (o openRouterOracle) Generate(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	resp, err := o.client.Complete(ctx, llm.Request{
		Model:           req.Model,
		SystemPrompt:    req.SystemPrompt,
		UserPrompt:      req.UserPrompt,
		MaxTokens:       req.MaxOutputTokens,
		ReasoningTokens: req.ThinkingBudget,
	})
	if err != nil {
		return OracleResponse{}, err
	}
	return OracleResponse{
		Text:  resp.Content,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

type geminiOracle struct {
	client *gemini.Client
}

// NewGeminiOracle adapts a Gemini client. The client should be built with
// gemini.WithRetryMaxAttempts(1).
func NewGeminiOracle(client *gemini.Client) Oracle {
	return geminiOracle{client: client}
}

func (o geminiOracle) Generate(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	resp, err := o.client.Generate(ctx, gemini.Request{
		Model:           req.Model,
		SystemPrompt:    req.SystemPrompt,
		UserPrompt:      req.UserPrompt,
		MaxOutputTokens: req.MaxOutputTokens,
		ThinkingBudget:  req.ThinkingBudget,
		JSON:            req.JSON,
	})
	if err != nil {
		return OracleResponse{}, err
	}
	return OracleResponse{
		Text:  resp.Content,
		Model: resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CandidateTokens + resp.Usage.ThoughtsTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
