// Package pipeline runs the scriptsync stages against the run ledger.
//
// A run acquires the workspace lock, records itself in the ledger, tees its
// log into a per-run file and then executes transcribe, extract, align and
// write in order. Transcribe and extract results are cached by content
// address: the marker key digests the stage name, the input file contents and
// every setting that changes the artifact, so editing the config or the input
// invalidates the cache without any bookkeeping. The raw oracle reply is kept
// in the run directory so a parse can be repeated with Reparse without paying
// for another oracle call.
package pipeline
