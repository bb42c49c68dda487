package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriptsync/internal/config"
	"scriptsync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

// setupCLITestEnv writes a config file rooted in a temp dir. The returned cfg
// mirrors what the CLI loads, so tests can seed the ledger directly.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nwork_dir = %q\nlog_dir = %q\nreview_dir = %q\nstate_dir = %q\n\n",
		cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Paths.ReviewDir, cfg.Paths.StateDir)
	fmt.Fprintf(&b, "[oracle]\napi_key = %q\nmodel = %q\nfallback_model = %q\n",
		cfg.Oracle.APIKey, cfg.Oracle.Model, cfg.Oracle.FallbackModel)
	if cfg.Oracle.BaseURL != "" {
		fmt.Fprintf(&b, "base_url = %q\n", cfg.Oracle.BaseURL)
	}
	fmt.Fprintf(&b, "\n[logging]\nlevel = %q\n", "error")
	testsupport.WriteText(t, path, b.String())
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
