// Package reference folds extracted page texts into the clean, speaker
// labelled reference script handed to the reconciliation oracle.
//
// Pages are split into trimmed non-empty lines and folded in page order
// through a Collector that remembers the last emitted line across the whole
// document, so OCR double detections and running headers repeated at a page
// boundary collapse to one line. Pages may be extracted concurrently but must
// be folded sequentially in their original order.
package reference
