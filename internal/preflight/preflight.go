package preflight

import (
	"context"

	"scriptsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects the optional checks RunAll performs.
type Options struct {
	// Oracle issues a live health request against the configured provider.
	Oracle bool
}

// RunAll executes directory, binary, credential and (optionally) oracle
// checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Review directory", cfg.Paths.ReviewDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	for _, status := range CheckSystemDeps(cfg, true, true) {
		detail := status.Path
		if !status.Available {
			detail = status.Detail
		}
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: detail,
		})
	}
	if cfg.Reference.Extractor == config.ExtractorVision {
		results = append(results, CheckVisionCredentials(cfg))
	}
	if opts.Oracle {
		results = append(results, CheckOracle(ctx, cfg))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
