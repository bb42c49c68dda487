// Package language normalises the language names and codes accepted in the
// configuration to the ISO 639-1 codes WhisperX and Cloud Vision expect.
package language
