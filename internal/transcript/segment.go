package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"scriptsync/internal/fileutil"
	"scriptsync/internal/services"
)

// Segment is one validated recogniser segment. ID is opaque.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// RawSegment is the decoded wire form; nil fields were absent in the input.
type RawSegment struct {
	ID    *int     `json:"id"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  *string  `json:"text"`
}

type envelope struct {
	Segments []RawSegment `json:"segments"`
}

// ValidationError reports a malformed recogniser segment.
type ValidationError struct {
	Index int
	Field string
	Issue string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("segment %d: %s %s", e.Index, e.Field, e.Issue)
}

// Unwrap lets errors.Is match services.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

// Decode reads recogniser output: a JSON array of segments or an object with
// a "segments" array.
func Decode(r io.Reader) ([]RawSegment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: transcript is empty", services.ErrValidation)
	}

	switch trimmed[0] {
	case '[':
		var raw []RawSegment
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: decode transcript array: %w", services.ErrValidation, err)
		}
		return raw, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: decode transcript envelope: %w", services.ErrValidation, err)
		}
		if env.Segments == nil {
			return nil, fmt.Errorf("%w: transcript object has no segments array", services.ErrValidation)
		}
		return env.Segments, nil
	default:
		return nil, fmt.Errorf("%w: transcript must be a JSON array or object", services.ErrValidation)
	}
}

// LoadFile decodes recogniser output from path.
func LoadFile(path string) ([]RawSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: transcript %s", services.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Validate converts raw segments into Segments. A segment missing start, end,
// or text, or carrying a non-finite time, fails the whole transcript. A
// missing id is replaced by the segment's position.
func Validate(raw []RawSegment) ([]Segment, error) {
	segments := make([]Segment, 0, len(raw))
	for i, r := range raw {
		switch {
		case r.Start == nil:
			return nil, &ValidationError{Index: i, Field: "start", Issue: "is missing"}
		case r.End == nil:
			return nil, &ValidationError{Index: i, Field: "end", Issue: "is missing"}
		case r.Text == nil:
			return nil, &ValidationError{Index: i, Field: "text", Issue: "is missing"}
		case !finite(*r.Start):
			return nil, &ValidationError{Index: i, Field: "start", Issue: "is not a finite number"}
		case !finite(*r.End):
			return nil, &ValidationError{Index: i, Field: "end", Issue: "is not a finite number"}
		}
		id := i
		if r.ID != nil {
			id = *r.ID
		}
		segments = append(segments, Segment{ID: id, Start: *r.Start, End: *r.End, Text: *r.Text})
	}
	return segments, nil
}

// SaveFile writes segments as an indented JSON array.
func SaveFile(path string, segments []Segment) error {
	if segments == nil {
		segments = []Segment{}
	}
	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Clean(path), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
