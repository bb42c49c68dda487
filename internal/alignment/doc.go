// Package alignment validates the oracle's raw reconciliation response and
// turns it into timed, speaker-attributed events.
//
// Two response shapes share one parser: the delimited shape
// (START; END; ACTOR; TEXT per line) and the structured shape (a JSON array of
// {start,end,speaker,text} records, optionally inside a markdown code fence).
// Malformed records are dropped and counted; only a broken structured envelope
// fails the whole batch. Event order is always the oracle's order.
package alignment
