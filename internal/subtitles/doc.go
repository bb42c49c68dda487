// Package subtitles serializes aligned events to subtitle files.
//
// ASS output carries the speaker in the Dialogue Name field under a single
// bottom-centre Default style. SRT output has no speaker field, so the
// speaker is written as a "SPEAKER: " prefix on the cue text. Writers go
// through fileutil.WriteFileAtomic so a crashed run never leaves a truncated
// subtitle next to the video.
package subtitles
