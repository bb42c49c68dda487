// Package whisperx runs the speech recogniser that produces the timed
// transcript.
//
// Transcribe extracts the first audio stream of a video as mono 16 kHz WAV
// with ffmpeg, runs WhisperX through uvx with sentence-level segmentation, and
// loads the resulting JSON as validated transcript segments.
//
// Configuration options (model, CUDA, VAD method, HF token) are passed via
// Config.
package whisperx
