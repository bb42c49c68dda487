package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	ReviewDir string `toml:"review_dir"`
	StateDir  string `toml:"state_dir"`
}

// Oracle contains connection and policy settings for the reconciliation model.
type Oracle struct {
	Provider         string `toml:"provider"`
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	Model            string `toml:"model"`
	FallbackModel    string `toml:"fallback_model"`
	FallbackAttempts int    `toml:"fallback_attempts"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	ThinkingBudget   int    `toml:"thinking_budget"`
	MaxOutputTokens  int    `toml:"max_output_tokens"`
	ResponseFormat   string `toml:"response_format"`
	Delimiter        string `toml:"delimiter"`
	Referer          string `toml:"referer"`
	Title            string `toml:"title"`
}

// Transcript contains recogniser and normalisation settings.
type Transcript struct {
	TimePrecision int    `toml:"time_precision"`
	WhisperXModel string `toml:"whisperx_model"`
	Language      string `toml:"language"`
	CUDAEnabled   bool   `toml:"cuda_enabled"`
	VADMethod     string `toml:"vad_method"`
	HFToken       string `toml:"hf_token"`
}

// Reference contains script extraction and collection settings.
type Reference struct {
	SuppressDuplicates bool   `toml:"suppress_duplicates"`
	NormalizeSpeakers  bool   `toml:"normalize_speakers"`
	Extractor          string `toml:"extractor"`
	ExtractorModel     string `toml:"extractor_model"`
	// VisionCredentialsFile is a service account JSON used by the vision
	// extractor. Empty means application default credentials.
	VisionCredentialsFile string `toml:"vision_credentials_file"`
	DPI                   int    `toml:"dpi"`
	RotateDegrees         int    `toml:"rotate_degrees"`
	PageLimit             int    `toml:"page_limit"`
	Concurrency           int    `toml:"concurrency"`
	RequestsPerMinute     int    `toml:"requests_per_minute"`
	MaxOutputTokens       int    `toml:"max_output_tokens"`
}

// Subtitles contains output serialization settings.
type Subtitles struct {
	Format   string `toml:"format"`
	FontName string `toml:"font_name"`
	FontSize int    `toml:"font_size"`
}

// Notifications contains ntfy settings. An empty topic disables them.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for scriptsync.
//
// Configuration sections by subsystem:
//   - Paths: intermediates, logs, review artifacts, and the run ledger
//   - Oracle: reconciliation model provider, models, and fallback policy
//   - Transcript: WhisperX recognition and timestamp normalisation
//   - Reference: page rasterisation, extraction, and the line collector
//   - Subtitles: output format and styling
//   - Notifications: ntfy push on run completion
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Oracle        Oracle        `toml:"oracle"`
	Transcript    Transcript    `toml:"transcript"`
	Reference     Reference     `toml:"reference"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories every pipeline run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.ReviewDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite run ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

// OracleTimeout returns the per-invocation oracle timeout.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// RequireOracleCredentials reports whether an oracle API key is available.
// Commands that never call the oracle skip this check.
func (c *Config) RequireOracleCredentials() error {
	if strings.TrimSpace(c.Oracle.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	env := "OPENROUTER_API_KEY"
	if c.Oracle.Provider == ProviderGemini {
		env = "GEMINI_API_KEY"
	}
	return fmt.Errorf("oracle.api_key is required. Set %s env var or edit %s (create with 'scriptsync config init')", env, defaultPath)
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// PdftoppmBinary returns the poppler rasteriser executable name.
func (c *Config) PdftoppmBinary() string {
	return "pdftoppm"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
