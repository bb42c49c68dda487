package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"scriptsync/internal/config"
	"scriptsync/internal/deps"
	"scriptsync/internal/services/gemini"
	"scriptsync/internal/services/llm"
	"scriptsync/internal/services/whisperx"
)

const oracleCheckTimeout = 30 * time.Second

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckOracle verifies that the oracle API is reachable and the key and
// primary model are accepted. It makes a single attempt with a 30-second
// timeout.
func CheckOracle(ctx context.Context, cfg *config.Config) Result {
	name := "Oracle (" + cfg.Oracle.Provider + ")"
	if err := cfg.RequireOracleCredentials(); err != nil {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, oracleCheckTimeout)
	defer cancel()

	var checker healthChecker
	switch cfg.Oracle.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(checkCtx, gemini.Config{
			APIKey:         cfg.Oracle.APIKey,
			BaseURL:        cfg.Oracle.BaseURL,
			Model:          cfg.Oracle.Model,
			TimeoutSeconds: int(oracleCheckTimeout / time.Second),
		}, gemini.WithRetryMaxAttempts(1))
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		checker = client
	default:
		checker = llm.NewClient(llm.Config{
			APIKey:  cfg.Oracle.APIKey,
			BaseURL: cfg.Oracle.BaseURL,
			Model:   cfg.Oracle.Model,
			Referer: cfg.Oracle.Referer,
			Title:   cfg.Oracle.Title,
		}, llm.WithRetryMaxAttempts(1))
	}
	if err := checker.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeOracleError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", cfg.Oracle.Model)}
}

// CheckVisionCredentials verifies that the Cloud Vision credentials file, when
// configured, is readable. Application default credentials are not probed.
func CheckVisionCredentials(cfg *config.Config) Result {
	const name = "Vision credentials"
	path := strings.TrimSpace(cfg.Reference.VisionCredentialsFile)
	if path == "" {
		if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON") != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
			return Result{Name: name, Passed: true, Detail: "from environment"}
		}
		return Result{Name: name, Passed: true, Detail: "application default credentials"}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries needed by the stages a
// command runs.
func CheckSystemDeps(cfg *config.Config, transcribe, extract bool) []deps.Status {
	tools := deps.ToolSet{
		FFmpeg:   cfg.FFmpegBinary(),
		UVX:      whisperx.UVXCommand,
		Pdftoppm: cfg.PdftoppmBinary(),
	}
	return deps.CheckBinaries(tools.Requirements(transcribe, extract))
}

// summarizeOracleError produces a human-readable summary for health check failures.
func summarizeOracleError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (oracle API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (oracle API unreachable)"
	}
	return err.Error()
}
