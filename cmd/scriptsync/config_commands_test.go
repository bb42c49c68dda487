package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndPath(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "path"}, env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if strings.TrimSpace(out) != env.configPath {
		t.Fatalf("expected %s, got %q", env.configPath, out)
	}

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigPathReportsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(env.baseDir, "absent.toml")

	out, _, err := runCLI(t, []string{"config", "path"}, missing)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, "not present; defaults in use")
}

func TestInvalidConfigFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[oracle]\nunknown_key = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"runs"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown config key")
	}
}
