// Package logs reads per-run log files for the CLI: the last N lines of a
// run, and follow mode that polls for appended lines until the run finishes
// or the caller cancels.
package logs
