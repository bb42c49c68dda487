// Package services defines shared utilities consumed by the pipeline stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent run statuses (failed vs review).
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
