// Package logging assembles structured slog loggers and formatting helpers used
// across scriptsync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code automatically tags
// log lines with run IDs, stages, and correlation IDs. Per-run JSON log files
// are teed from the main logger and pruned by age. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
