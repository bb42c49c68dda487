package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneRunLogs removes per-run log files in dir older than retentionDays.
// Paths listed in keep are never removed. A retentionDays value of 0 disables
// pruning. It returns the number of files removed.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, keep ...string) int {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	exclusions := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			exclusions[abs] = struct{}{}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matched, _ := filepath.Match(RunLogPattern, entry.Name()); !matched {
			continue
		}
		fullPath, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if _, skip := exclusions[fullPath]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "run log removal failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old run log remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("run log pruned", String("path", fullPath), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

// RunLogPattern matches per-run log file names.
const RunLogPattern = "run-*.log"

// RunLogPath returns the per-run log location inside dir.
func RunLogPath(dir, runID string) string {
	return filepath.Join(dir, "run-"+runID+".log")
}
