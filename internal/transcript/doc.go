// Package transcript loads, validates, and normalises speech recogniser
// output before it is embedded in an oracle request.
//
// Decode accepts either a bare JSON array of segments or a WhisperX style
// {"segments": [...]} envelope. Validate rejects segments missing start, end,
// or text. Normalize rounds timestamps, trims and NFC-normalises text, and
// blanks punctuation-only segments without reordering, merging, or dropping
// anything.
package transcript
