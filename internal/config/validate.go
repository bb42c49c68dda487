package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. API keys are checked separately
// by RequireOracleCredentials so offline commands work without one.
func (c *Config) Validate() error {
	if err := c.validateOracle(); err != nil {
		return err
	}
	if err := c.validateTranscript(); err != nil {
		return err
	}
	if err := c.validateReference(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOracle() error {
	switch c.Oracle.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("oracle.provider must be %q or %q, got %q", ProviderOpenRouter, ProviderGemini, c.Oracle.Provider)
	}
	switch c.Oracle.ResponseFormat {
	case ResponseDelimited, ResponseStructured:
	default:
		return fmt.Errorf("oracle.response_format must be %q or %q, got %q", ResponseDelimited, ResponseStructured, c.Oracle.ResponseFormat)
	}
	if c.Oracle.FallbackAttempts < 0 {
		return errors.New("oracle.fallback_attempts must be >= 0")
	}
	if c.Oracle.ThinkingBudget < 0 {
		return errors.New("oracle.thinking_budget must be >= 0")
	}
	if strings.TrimSpace(c.Oracle.Delimiter) == "" {
		return errors.New("oracle.delimiter must not be blank")
	}
	if c.Oracle.Model == "" {
		return errors.New("oracle.model must be set")
	}
	return nil
}

func (c *Config) validateTranscript() error {
	if c.Transcript.TimePrecision < 0 || c.Transcript.TimePrecision > 6 {
		return errors.New("transcript.time_precision must be between 0 and 6")
	}
	switch c.Transcript.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcript.vad_method must be silero or pyannote, got %q", c.Transcript.VADMethod)
	}
	if lang := c.Transcript.Language; lang != "" && len(lang) != 2 {
		return fmt.Errorf("transcript.language must be an ISO 639-1 code or a known language name, got %q", lang)
	}
	return nil
}

func (c *Config) validateReference() error {
	switch c.Reference.Extractor {
	case ExtractorLLM, ExtractorVision:
	default:
		return fmt.Errorf("reference.extractor must be %q or %q, got %q", ExtractorLLM, ExtractorVision, c.Reference.Extractor)
	}
	switch c.Reference.RotateDegrees {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("reference.rotate_degrees must be a quarter turn (0, 90, 180, 270), got %d", c.Reference.RotateDegrees)
	}
	if c.Reference.PageLimit < 0 {
		return errors.New("reference.page_limit must be >= 0")
	}
	if c.Reference.RequestsPerMinute < 0 {
		return errors.New("reference.requests_per_minute must be >= 0")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	switch c.Subtitles.Format {
	case FormatASS, FormatSRT:
	default:
		return fmt.Errorf("subtitles.format must be %q or %q, got %q", FormatASS, FormatSRT, c.Subtitles.Format)
	}
	return nil
}
