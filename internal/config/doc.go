// Package config loads, normalizes, and validates scriptsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY, GEMINI_API_KEY and HF_TOKEN. Provider dependent defaults
// (base URL, primary and fallback models) are resolved once the provider is
// known.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical formats, and clear validation errors.
package config
