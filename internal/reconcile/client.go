package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scriptsync/internal/alignment"
	"scriptsync/internal/logging"
	"scriptsync/internal/services"
	"scriptsync/internal/transcript"
)

// Config is the invocation policy.
type Config struct {
	PrimaryModel     string
	FallbackModel    string
	FallbackAttempts int
	ThinkingBudget   int
	MaxOutputTokens  int
	Format           alignment.Format
	Delimiter        string
}

// Request carries the two inputs of one reconciliation.
type Request struct {
	Reference  string
	Transcript transcript.Transcript
}

// Attempt records one oracle invocation.
type Attempt struct {
	Model    string
	Usage    Usage
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the attempt produced a reply.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Result is the raw reply of the successful attempt plus accounting for all
// attempts.
type Result struct {
	Raw      string
	Model    string
	Usage    Usage
	Attempts []Attempt
	FellBack bool
}

// Client drives the primary/fallback invocation sequence.
type Client struct {
	oracle Oracle
	cfg    Config
	logger *slog.Logger
}

// NewClient builds a reconciliation client. A negative FallbackAttempts is
// treated as zero.
func NewClient(oracle Oracle, cfg Config, logger *slog.Logger) *Client {
	cfg.PrimaryModel = strings.TrimSpace(cfg.PrimaryModel)
	cfg.FallbackModel = strings.TrimSpace(cfg.FallbackModel)
	cfg.FallbackAttempts = max(cfg.FallbackAttempts, 0)
	if cfg.Format == "" {
		cfg.Format = alignment.FormatDelimited
	}
	return &Client{
		oracle: oracle,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Reconcile invokes the oracle and returns its raw reply. Every failed
// attempt is listed in the returned *InvocationError.
func (c *Client) Reconcile(ctx context.Context, req Request) (Result, error) {
	if c.oracle == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "reconcile", "invoke", "no oracle configured", nil)
	}
	if c.cfg.PrimaryModel == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "reconcile", "invoke", "primary model not configured", nil)
	}
	if strings.TrimSpace(req.Reference) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "reconcile", "invoke", "reference text is empty", nil)
	}
	if req.Transcript.Len() == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "reconcile", "invoke", "transcript has no segments", nil)
	}

	system, user := BuildPrompts(req, c.cfg.Format, c.cfg.Delimiter)
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("reconciliation request prepared",
		logging.String(logging.FieldEventType, "oracle_request"),
		logging.Int("segments", req.Transcript.Len()),
		logging.Int("reference_chars", len([]rune(req.Reference))),
		logging.Int("prompt_chars", len([]rune(user))),
		logging.String("format", c.cfg.Format.String()),
	)

	var result Result
	for _, model := range c.sequence() {
		if err := ctx.Err(); err != nil {
			break
		}
		fallback := len(result.Attempts) > 0
		attemptCtx := services.WithRequestID(ctx, fmt.Sprintf("oracle-%d", len(result.Attempts)+1))
		logger := logging.WithContext(attemptCtx, c.logger)
		attempt := c.invoke(attemptCtx, model, system, user)
		result.Attempts = append(result.Attempts, attempt.Attempt)
		result.Usage = result.Usage.Add(attempt.Usage)
		if attempt.Err == nil {
			result.Raw = attempt.text
			result.Model = attempt.servedModel
			result.FellBack = fallback
			logger.Info("oracle call succeeded",
				logging.String(logging.FieldEventType, "oracle_complete"),
				logging.String(logging.FieldModel, result.Model),
				logging.Int(logging.FieldAttempt, len(result.Attempts)),
				logging.Bool("fell_back", fallback),
				logging.Int("input_tokens", attempt.Usage.InputTokens),
				logging.Int("output_tokens", attempt.Usage.OutputTokens),
				logging.Int("total_tokens", attempt.Usage.TotalTokens),
				logging.Duration("duration", attempt.Duration),
			)
			return result, nil
		}
		logging.WarnWithContext(logger, "oracle call failed",
			"oracle_attempt_failed",
			logging.String(logging.FieldModel, model),
			logging.Int(logging.FieldAttempt, len(result.Attempts)),
			logging.Error(attempt.Err),
			logging.String(logging.FieldErrorHint, "check oracle credentials, model name, and provider status"),
			logging.String(logging.FieldImpact, c.impact(len(result.Attempts))),
		)
		if errors.Is(attempt.Err, context.Canceled) || ctx.Err() != nil {
			break
		}
	}

	if len(result.Attempts) == 0 {
		return result, fmt.Errorf("reconcile: %w", ctx.Err())
	}
	return result, &InvocationError{Attempts: result.Attempts}
}

// sequence lists the models to try in order: the primary once, then the
// fallback up to FallbackAttempts times.
func (c *Client) sequence() []string {
	models := []string{c.cfg.PrimaryModel}
	fallback := c.cfg.FallbackModel
	if fallback == "" {
		fallback = c.cfg.PrimaryModel
	}
	for i := 0; i < c.cfg.FallbackAttempts; i++ {
		models = append(models, fallback)
	}
	return models
}

func (c *Client) impact(attempts int) string {
	if attempts < len(c.sequence()) {
		return "retrying with fallback model"
	}
	return "reconciliation failed"
}

type invocation struct {
	Attempt
	text        string
	servedModel string
}

func (c *Client) invoke(ctx context.Context, model, system, user string) invocation {
	started := time.Now()
	resp, err := c.oracle.Generate(ctx, OracleRequest{
		Model:           model,
		SystemPrompt:    system,
		UserPrompt:      user,
		ThinkingBudget:  c.cfg.ThinkingBudget,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
		JSON:            c.cfg.Format == alignment.FormatStructured,
	})
	out := invocation{Attempt: Attempt{Model: model, Duration: time.Since(started)}}
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errors.New("oracle returned an empty response")
	}
	if err != nil {
		out.Err = err
		return out
	}
	out.Usage = resp.Usage
	out.text = resp.Text
	out.servedModel = resp.Model
	if out.servedModel == "" {
		out.servedModel = model
	}
	return out
}
