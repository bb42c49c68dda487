package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"scriptsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ReviewDir = filepath.Join(base, "review")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Oracle.APIKey = "test"
	cfgVal.Oracle.Model = "primary-model"
	cfgVal.Oracle.FallbackModel = "fallback-model"
	cfgVal.Reference.ExtractorModel = "extractor-model"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOracleBaseURL points the oracle transport at a test server.
func WithOracleBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Oracle.BaseURL = url
	}
}

// WithResponseFormat selects the oracle response shape.
func WithResponseFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Oracle.ResponseFormat = format
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default scriptsync external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "uvx", "pdftoppm"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
