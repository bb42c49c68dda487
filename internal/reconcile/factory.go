package reconcile

import (
	"context"
	"fmt"

	"scriptsync/internal/alignment"
	"scriptsync/internal/config"
	"scriptsync/internal/services"
	"scriptsync/internal/services/gemini"
	"scriptsync/internal/services/llm"
)

// NewOracleFromConfig builds the configured provider's oracle with transport
// retries disabled.
func NewOracleFromConfig(ctx context.Context, cfg *config.Config) (Oracle, error) {
	if err := cfg.RequireOracleCredentials(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "build oracle", "", err)
	}
	oc := cfg.Oracle
	switch oc.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:         oc.APIKey,
			BaseURL:        oc.BaseURL,
			Model:          oc.Model,
			TimeoutSeconds: oc.TimeoutSeconds,
		}, gemini.WithRetryMaxAttempts(1))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "reconcile", "build oracle", "", err)
		}
		return NewGeminiOracle(client), nil
	case config.ProviderOpenRouter:
		client := llm.NewClient(llm.Config{
			APIKey:         oc.APIKey,
			BaseURL:        oc.BaseURL,
			Model:          oc.Model,
			Referer:        oc.Referer,
			Title:          oc.Title,
			TimeoutSeconds: oc.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1))
		return NewOpenRouterOracle(client), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "build oracle", fmt.Sprintf("unknown provider %q", oc.Provider), nil)
	}
}

// ConfigFromSettings derives the invocation policy from the loaded config.
func ConfigFromSettings(cfg *config.Config) (Config, error) {
	format, err := alignment.ParseFormat(cfg.Oracle.ResponseFormat)
	if err != nil {
		return Config{}, services.Wrap(services.ErrConfiguration, "reconcile", "config", "", err)
	}
	return Config{
		PrimaryModel:     cfg.Oracle.Model,
		FallbackModel:    cfg.Oracle.FallbackModel,
		FallbackAttempts: cfg.Oracle.FallbackAttempts,
		ThinkingBudget:   cfg.Oracle.ThinkingBudget,
		MaxOutputTokens:  cfg.Oracle.MaxOutputTokens,
		Format:           format,
		Delimiter:        cfg.Oracle.Delimiter,
	}, nil
}
