// Package llm provides an OpenRouter chat-completions client.
//
// The client carries both workloads that go through OpenRouter: the
// reconciliation request (one large text prompt, reasoning budget, token
// ceiling) and per-page reference extraction (a short instruction plus one
// rendered page image). Every response reports the served model and token
// usage so callers can account for cost.
//
// # Retry Behaviour
//
// Transport retries cover HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, 5 attempts by default).
// Reconciliation constructs its client with WithRetryMaxAttempts(1) so model
// fallback stays the only retry for that call. Context cancellation aborts
// retries immediately.
package llm
