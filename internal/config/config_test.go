package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scriptsync/internal/config"
)

func clearOracleEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENROUTER_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPathsAndResolvesProviderDefaults(t *testing.T) {
	clearOracleEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "scriptsync", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Oracle.Provider != config.ProviderOpenRouter {
		t.Fatalf("unexpected provider: %q", cfg.Oracle.Provider)
	}
	if cfg.Oracle.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Oracle.APIKey)
	}
	if cfg.Oracle.Model != "google/gemini-2.5-flash" {
		t.Fatalf("unexpected primary model: %q", cfg.Oracle.Model)
	}
	if cfg.Oracle.FallbackModel == "" || cfg.Oracle.FallbackModel == cfg.Oracle.Model {
		t.Fatalf("expected distinct fallback model, got %q", cfg.Oracle.FallbackModel)
	}
	if cfg.Oracle.FallbackAttempts != 1 {
		t.Fatalf("expected fallback attempts 1, got %d", cfg.Oracle.FallbackAttempts)
	}
	if cfg.Oracle.ThinkingBudget != 20000 {
		t.Fatalf("expected thinking budget 20000, got %d", cfg.Oracle.ThinkingBudget)
	}
	if cfg.Oracle.BaseURL == "" {
		t.Fatal("expected OpenRouter base URL default")
	}
	if cfg.Transcript.TimePrecision != 2 {
		t.Fatalf("expected time precision 2, got %d", cfg.Transcript.TimePrecision)
	}
	if !cfg.Reference.SuppressDuplicates {
		t.Fatal("expected duplicate suppression on by default")
	}
	if cfg.Reference.NormalizeSpeakers {
		t.Fatal("expected speaker normalisation off by default")
	}
	if cfg.Reference.RotateDegrees != 270 {
		t.Fatalf("expected rotation 270, got %d", cfg.Reference.RotateDegrees)
	}
	if cfg.Reference.ExtractorModel != cfg.Oracle.Model {
		t.Fatalf("expected extractor model to follow oracle model, got %q", cfg.Reference.ExtractorModel)
	}
	if cfg.Subtitles.Format != config.FormatASS || cfg.Subtitles.FontName != "Arial" || cfg.Subtitles.FontSize != 22 {
		t.Fatalf("unexpected subtitle defaults: %+v", cfg.Subtitles)
	}
	if err := cfg.RequireOracleCredentials(); err != nil {
		t.Fatalf("expected credentials present: %v", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Paths.ReviewDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if filepath.Dir(cfg.LedgerPath()) != cfg.Paths.StateDir {
		t.Fatalf("expected ledger under state dir, got %q", cfg.LedgerPath())
	}
}

func TestLoadCustomPathGeminiProvider(t *testing.T) {
	clearOracleEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "scriptsync.toml")

	type payload struct {
		Oracle struct {
			Provider         string `toml:"provider"`
			FallbackAttempts int    `toml:"fallback_attempts"`
			ResponseFormat   string `toml:"response_format"`
		} `toml:"oracle"`
		Subtitles struct {
			Format string `toml:"format"`
		} `toml:"subtitles"`
	}
	custom := payload{}
	custom.Oracle.Provider = "Gemini"
	custom.Oracle.FallbackAttempts = 2
	custom.Oracle.ResponseFormat = "STRUCTURED"
	custom.Subtitles.Format = "srt"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Oracle.Provider != config.ProviderGemini {
		t.Fatalf("expected gemini provider, got %q", cfg.Oracle.Provider)
	}
	if cfg.Oracle.Model != "gemini-2.5-flash" || cfg.Oracle.FallbackModel != "gemini-2.0-flash" {
		t.Fatalf("unexpected gemini models: %q / %q", cfg.Oracle.Model, cfg.Oracle.FallbackModel)
	}
	if cfg.Oracle.BaseURL != "" {
		t.Fatalf("expected SDK default base URL for gemini, got %q", cfg.Oracle.BaseURL)
	}
	if cfg.Oracle.APIKey != "google-key" {
		t.Fatalf("expected GOOGLE_API_KEY fallback, got %q", cfg.Oracle.APIKey)
	}
	if cfg.Oracle.FallbackAttempts != 2 {
		t.Fatalf("expected fallback attempts 2, got %d", cfg.Oracle.FallbackAttempts)
	}
	if cfg.Oracle.ResponseFormat != config.ResponseStructured {
		t.Fatalf("expected structured response format, got %q", cfg.Oracle.ResponseFormat)
	}
	if cfg.Subtitles.Format != config.FormatSRT {
		t.Fatalf("expected srt format, got %q", cfg.Subtitles.Format)
	}
}

func TestConfigFileKeyWinsOverEnv(t *testing.T) {
	clearOracleEnv(t)
	configPath := filepath.Join(t.TempDir(), "scriptsync.toml")
	contents := "[oracle]\napi_key = \"file-key\"\n\n[transcript]\nhf_token = \"file-hf\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Setenv("HF_TOKEN", "env-hf")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Oracle.APIKey != "file-key" {
		t.Errorf("expected API key from file, got %q", cfg.Oracle.APIKey)
	}
	if cfg.Transcript.HFToken != "file-hf" {
		t.Errorf("expected HF token from file, got %q", cfg.Transcript.HFToken)
	}
}

func TestLoadNormalizesTranscriptLanguage(t *testing.T) {
	clearOracleEnv(t)
	dir := t.TempDir()
	for input, want := range map[string]string{"Japanese": "ja", "jpn": "ja", "EN": "en"} {
		configPath := filepath.Join(dir, input+".toml")
		if err := os.WriteFile(configPath, []byte("[transcript]\nlanguage = \""+input+"\"\n"), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		cfg, _, _, err := config.Load(configPath)
		if err != nil {
			t.Fatalf("Load(%s) returned error: %v", input, err)
		}
		if cfg.Transcript.Language != want {
			t.Errorf("language %q normalised to %q, want %q", input, cfg.Transcript.Language, want)
		}
	}

	configPath := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(configPath, []byte("[transcript]\nlanguage = \"klingon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "transcript.language") {
		t.Fatalf("expected language validation error, got %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearOracleEnv(t)
	configPath := filepath.Join(t.TempDir(), "scriptsync.toml")
	if err := os.WriteFile(configPath, []byte("[oracle]\nmodle = \"typo\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestRequireOracleCredentialsNamesEnvVar(t *testing.T) {
	cfg := config.Default()
	cfg.Oracle.Provider = config.ProviderGemini
	err := cfg.RequireOracleCredentials()
	if err == nil {
		t.Fatal("expected missing key error")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected env var hint, got %q", err.Error())
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.WorkDir, "scriptsync") {
		t.Fatalf("expected work dir to contain scriptsync, got %q", cfg.Paths.WorkDir)
	}
	if cfg.Oracle.FallbackAttempts != 1 {
		t.Fatalf("expected sample fallback attempts 1, got %d", cfg.Oracle.FallbackAttempts)
	}
	if cfg.Reference.RotateDegrees != 270 {
		t.Fatalf("expected sample rotation 270, got %d", cfg.Reference.RotateDegrees)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Oracle.Model = "model"
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"provider", func(c *config.Config) { c.Oracle.Provider = "openai" }},
		{"response format", func(c *config.Config) { c.Oracle.ResponseFormat = "xml" }},
		{"negative attempts", func(c *config.Config) { c.Oracle.FallbackAttempts = -1 }},
		{"blank delimiter", func(c *config.Config) { c.Oracle.Delimiter = " " }},
		{"precision", func(c *config.Config) { c.Transcript.TimePrecision = 7 }},
		{"extractor", func(c *config.Config) { c.Reference.Extractor = "tesseract" }},
		{"rotation", func(c *config.Config) { c.Reference.RotateDegrees = 45 }},
		{"subtitle format", func(c *config.Config) { c.Subtitles.Format = "vtt" }},
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected base config to validate: %v", err)
	}
	for _, tc := range cases {
		cfg := base()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
