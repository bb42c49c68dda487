// Package reconcile asks a language model to merge the timed recogniser
// transcript with the speaker-labelled reference script.
//
// The model is treated as an untrusted oracle. Client builds one request that
// carries both inputs and an explicit output format, invokes the primary model
// once, and on failure falls back to a second model a bounded number of times.
// Attempts are sequential; cancellation stops the sequence. The raw reply is
// returned untouched for the alignment parser to validate.
package reconcile
