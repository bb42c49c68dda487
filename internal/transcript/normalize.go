package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultPrecision is the number of decimal places kept on timestamps.
const DefaultPrecision = 2

// Options controls normalisation.
type Options struct {
	Precision int
}

// DefaultOptions returns the normaliser defaults.
func DefaultOptions() Options {
	return Options{Precision: DefaultPrecision}
}

// Transcript is the normalised, ordered segment list sent to the oracle.
type Transcript struct {
	Segments []Segment
}

// Normalize rounds times and cleans text for every segment, preserving count
// and order. Punctuation-only text becomes the empty string.
func Normalize(segments []Segment, opts Options) (Transcript, error) {
	if opts.Precision < 0 || opts.Precision > 6 {
		return Transcript{}, fmt.Errorf("precision %d out of range 0..6", opts.Precision)
	}
	scale := math.Pow10(opts.Precision)
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		out[i] = Segment{
			ID:    seg.ID,
			Start: math.Round(seg.Start*scale) / scale,
			End:   math.Round(seg.End*scale) / scale,
			Text:  cleanText(seg.Text),
		}
	}
	return Transcript{Segments: out}, nil
}

// Render produces the compact embedding: one JSON object per line, in order.
func (t Transcript) Render() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, seg := range t.Segments {
		// Segment holds only numbers and a string; encoding cannot fail.
		_ = enc.Encode(seg)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Len returns the number of segments.
func (t Transcript) Len() int {
	return len(t.Segments)
}

// Duration returns the end time of the last segment.
func (t Transcript) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

func cleanText(text string) string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return ""
	}
	if strings.IndexFunc(text, func(r rune) bool {
		return !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r)
	}) < 0 {
		return ""
	}
	return text
}
