package extraction

import (
	"context"
	"fmt"

	"scriptsync/internal/config"
	"scriptsync/internal/language"
	"scriptsync/internal/reference"
	"scriptsync/internal/services"
	"scriptsync/internal/services/gemini"
	"scriptsync/internal/services/llm"
	"scriptsync/internal/services/visionocr"
)

// NewPageExtractorFromConfig builds the configured extractor. The returned
// close function releases provider connections and is never nil.
func NewPageExtractorFromConfig(ctx context.Context, cfg *config.Config) (PageExtractor, func() error, error) {
	noop := func() error { return nil }
	ref := cfg.Reference
	switch ref.Extractor {
	case config.ExtractorVision:
		client, err := visionocr.NewClient(ctx, visionocr.Config{
			CredentialsFile: ref.VisionCredentialsFile,
			LanguageHints:   language.Hints(cfg.Transcript.Language),
		})
		if err != nil {
			return nil, noop, services.Wrap(services.ErrConfiguration, "extract", "vision client", "", err)
		}
		return NewVisionExtractor(client), client.Close, nil
	case config.ExtractorLLM:
		if err := cfg.RequireOracleCredentials(); err != nil {
			return nil, noop, services.Wrap(services.ErrConfiguration, "extract", "llm client", "", err)
		}
		oc := cfg.Oracle
		if oc.Provider == config.ProviderGemini {
			client, err := gemini.NewClient(ctx, gemini.Config{
				APIKey:         oc.APIKey,
				BaseURL:        oc.BaseURL,
				Model:          ref.ExtractorModel,
				TimeoutSeconds: oc.TimeoutSeconds,
			}, gemini.WithRetryMaxAttempts(1))
			if err != nil {
				return nil, noop, services.Wrap(services.ErrConfiguration, "extract", "gemini client", "", err)
			}
			return NewGeminiExtractor(client, ref.ExtractorModel, ref.MaxOutputTokens), noop, nil
		}
		client := llm.NewClient(llm.Config{
			APIKey:         oc.APIKey,
			BaseURL:        oc.BaseURL,
			Model:          ref.ExtractorModel,
			Referer:        oc.Referer,
			Title:          oc.Title,
			TimeoutSeconds: oc.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1))
		return NewOpenRouterExtractor(client, ref.ExtractorModel, ref.MaxOutputTokens), noop, nil
	default:
		return nil, noop, services.Wrap(services.ErrConfiguration, "extract", "config", fmt.Sprintf("unknown extractor %q", ref.Extractor), nil)
	}
}

// OptionsFromConfig maps reference settings onto runner options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Concurrency:       cfg.Reference.Concurrency,
		RequestsPerMinute: cfg.Reference.RequestsPerMinute,
		Collector: reference.Options{
			SuppressDuplicates: cfg.Reference.SuppressDuplicates,
			NormalizeSpeakers:  cfg.Reference.NormalizeSpeakers,
		},
	}
}
