// Package gemini talks to the Gemini API through google.golang.org/genai.
//
// It mirrors the llm package's request/response surface so the reconciliation
// and extraction layers can treat both providers alike: text prompts, inline
// page images, thinking budget, output ceiling, and usage metadata.
package gemini
