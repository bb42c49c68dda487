// Package extraction turns rendered script pages into reference text.
//
// Pages are sent to a PageExtractor (a vision-capable LLM or Cloud Vision OCR)
// with bounded concurrency and a request rate limit. Results are folded through
// a reference.Collector strictly in page order as soon as each prefix of pages
// is complete, so callers can persist progress while later pages are still in
// flight. A page that keeps failing contributes nothing and is reported.
package extraction
