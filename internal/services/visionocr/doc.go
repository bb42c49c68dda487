// Package visionocr extracts page text with Google Cloud Vision
// DOCUMENT_TEXT_DETECTION. It is the non-LLM alternative for reference
// extraction: faster and cheaper, but it returns every line on the page rather
// than only the dialogue table.
package visionocr
