package config

import (
	"fmt"
	"os"
	"strings"

	"scriptsync/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOracle()
	c.normalizeTranscript()
	if err := c.normalizeReference(); err != nil {
		return err
	}
	c.normalizeSubtitles()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReviewDir) == "" {
		c.Paths.ReviewDir = defaultReviewDir
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOracle() {
	c.Oracle.Provider = strings.ToLower(strings.TrimSpace(c.Oracle.Provider))
	if c.Oracle.Provider == "" {
		c.Oracle.Provider = defaultProvider
	}
	c.Oracle.BaseURL = strings.TrimSpace(c.Oracle.BaseURL)
	c.Oracle.Model = strings.TrimSpace(c.Oracle.Model)
	c.Oracle.FallbackModel = strings.TrimSpace(c.Oracle.FallbackModel)
	c.Oracle.APIKey = strings.TrimSpace(c.Oracle.APIKey)

	switch c.Oracle.Provider {
	case ProviderGemini:
		if c.Oracle.Model == "" {
			c.Oracle.Model = defaultGeminiModel
		}
		if c.Oracle.FallbackModel == "" {
			c.Oracle.FallbackModel = defaultGeminiFallbackModel
		}
		if c.Oracle.APIKey == "" {
			c.Oracle.APIKey = lookupEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		}
	case ProviderOpenRouter:
		if c.Oracle.BaseURL == "" {
			c.Oracle.BaseURL = defaultOpenRouterBaseURL
		}
		if c.Oracle.Model == "" {
			c.Oracle.Model = defaultOpenRouterModel
		}
		if c.Oracle.FallbackModel == "" {
			c.Oracle.FallbackModel = defaultOpenRouterFallbackModel
		}
		if c.Oracle.APIKey == "" {
			c.Oracle.APIKey = lookupEnv("OPENROUTER_API_KEY")
		}
	}

	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = defaultOracleTimeoutSeconds
	}
	if c.Oracle.MaxOutputTokens <= 0 {
		c.Oracle.MaxOutputTokens = defaultOracleMaxOutputTokens
	}
	c.Oracle.ResponseFormat = strings.ToLower(strings.TrimSpace(c.Oracle.ResponseFormat))
	if c.Oracle.ResponseFormat == "" {
		c.Oracle.ResponseFormat = defaultResponseFormat
	}
	if c.Oracle.Delimiter == "" {
		c.Oracle.Delimiter = defaultDelimiter
	}
	c.Oracle.Referer = strings.TrimSpace(c.Oracle.Referer)
	c.Oracle.Title = strings.TrimSpace(c.Oracle.Title)
	if c.Oracle.Title == "" {
		c.Oracle.Title = defaultOracleTitle
	}
}

func (c *Config) normalizeTranscript() {
	c.Transcript.WhisperXModel = strings.TrimSpace(c.Transcript.WhisperXModel)
	if c.Transcript.WhisperXModel == "" {
		c.Transcript.WhisperXModel = defaultWhisperXModel
	}
	c.Transcript.Language = strings.ToLower(strings.TrimSpace(c.Transcript.Language))
	if iso := language.ToISO2(c.Transcript.Language); iso != "" {
		c.Transcript.Language = iso
	}
	c.Transcript.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcript.VADMethod))
	if c.Transcript.VADMethod == "" {
		c.Transcript.VADMethod = defaultVADMethod
	}
	c.Transcript.HFToken = strings.TrimSpace(c.Transcript.HFToken)
	if c.Transcript.HFToken == "" {
		c.Transcript.HFToken = lookupEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}
}

func (c *Config) normalizeReference() error {
	c.Reference.Extractor = strings.ToLower(strings.TrimSpace(c.Reference.Extractor))
	if c.Reference.Extractor == "" {
		c.Reference.Extractor = defaultExtractor
	}
	c.Reference.ExtractorModel = strings.TrimSpace(c.Reference.ExtractorModel)
	if c.Reference.ExtractorModel == "" {
		c.Reference.ExtractorModel = c.Oracle.Model
	}
	c.Reference.VisionCredentialsFile = strings.TrimSpace(c.Reference.VisionCredentialsFile)
	if c.Reference.VisionCredentialsFile == "" {
		c.Reference.VisionCredentialsFile = lookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if c.Reference.VisionCredentialsFile != "" {
		var err error
		if c.Reference.VisionCredentialsFile, err = expandPath(c.Reference.VisionCredentialsFile); err != nil {
			return fmt.Errorf("reference.vision_credentials_file: %w", err)
		}
	}
	if c.Reference.DPI <= 0 {
		c.Reference.DPI = defaultDPI
	}
	if c.Reference.Concurrency <= 0 {
		c.Reference.Concurrency = defaultConcurrency
	}
	if c.Reference.MaxOutputTokens <= 0 {
		c.Reference.MaxOutputTokens = defaultExtractorMaxOutput
	}
	return nil
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Format = strings.ToLower(strings.TrimSpace(c.Subtitles.Format))
	if c.Subtitles.Format == "" {
		c.Subtitles.Format = defaultSubtitleFormat
	}
	c.Subtitles.FontName = strings.TrimSpace(c.Subtitles.FontName)
	if c.Subtitles.FontName == "" {
		c.Subtitles.FontName = defaultSubtitleFontName
	}
	if c.Subtitles.FontSize <= 0 {
		c.Subtitles.FontSize = defaultSubtitleFontSize
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
