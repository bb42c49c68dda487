package alignment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parser turns a raw oracle response into events for one response shape.
type Parser struct {
	Format    Format
	Delimiter string
}

// NewParser returns a parser for format. A blank delimiter selects ";".
func NewParser(format Format, delimiter string) Parser {
	if format == "" {
		format = FormatDelimited
	}
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return Parser{Format: format, Delimiter: delimiter}
}

// Parse validates raw and returns the surviving events in response order.
// Only a broken structured envelope returns an error.
func (p Parser) Parse(raw string) (Result, error) {
	switch p.Format {
	case FormatStructured:
		return parseStructured(raw)
	case FormatDelimited, "":
		delimiter := p.Delimiter
		if delimiter == "" {
			delimiter = DefaultDelimiter
		}
		return parseDelimited(raw, delimiter), nil
	default:
		return Result{}, fmt.Errorf("unknown response format %q", p.Format)
	}
}

func parseDelimited(raw, delimiter string) Result {
	var result Result
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		// The text keeps any further delimiters it contains.
		fields := strings.SplitN(line, delimiter, 4)
		if len(fields) < 4 {
			result.drop(lineNo, fmt.Sprintf("expected 4 fields, got %d", len(fields)))
			continue
		}
		for j := range fields {
			fields[j] = strings.TrimSpace(fields[j])
		}
		start, err := parseTime(fields[0])
		if err != nil {
			result.drop(lineNo, "start "+err.Error())
			continue
		}
		end, err := parseTime(fields[1])
		if err != nil {
			result.drop(lineNo, "end "+err.Error())
			continue
		}
		result.accept(lineNo, Event{Start: start, End: end, Speaker: fields[2], Text: fields[3]})
	}
	return result
}

func parseTime(value string) (float64, error) {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", value)
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("%q is not finite", value)
	}
	return parsed, nil
}

// accept applies the checks shared by both shapes.
func (r *Result) accept(record int, event Event) {
	switch {
	case strings.TrimSpace(event.Text) == "":
		r.drop(record, "empty text")
	case event.Start < 0:
		r.drop(record, "negative start")
	case event.End <= event.Start:
		r.drop(record, fmt.Sprintf("end %.3f is not after start %.3f", event.End, event.Start))
	default:
		r.Events = append(r.Events, event)
	}
}

type structuredEnvelope struct {
	Events []json.RawMessage `json:"events"`
}

func parseStructured(raw string) (Result, error) {
	payload := bytes.TrimSpace([]byte(stripFence(raw)))
	if len(payload) == 0 {
		return Result{}, &StructuredParseError{Raw: raw, Err: errors.New("response is empty")}
	}

	var records []json.RawMessage
	switch payload[0] {
	case '[':
		if err := json.Unmarshal(payload, &records); err != nil {
			return Result{}, &StructuredParseError{Raw: raw, Err: err}
		}
	case '{':
		var env structuredEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return Result{}, &StructuredParseError{Raw: raw, Err: err}
		}
		if env.Events == nil {
			return Result{}, &StructuredParseError{Raw: raw, Err: errors.New(`object has no "events" array`)}
		}
		records = env.Events
	default:
		return Result{}, &StructuredParseError{Raw: raw, Err: errors.New("response is not a JSON array")}
	}

	var result Result
	for i, record := range records {
		event, err := decodeRecord(record)
		if err != nil {
			result.drop(i, err.Error())
			continue
		}
		result.accept(i, event)
	}
	return result, nil
}

func decodeRecord(record json.RawMessage) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil || fields == nil {
		return Event{}, errors.New("record is not an object")
	}
	start, err := numberField(fields, "start")
	if err != nil {
		return Event{}, err
	}
	end, err := numberField(fields, "end")
	if err != nil {
		return Event{}, err
	}
	speaker, err := stringField(fields, "speaker")
	if err != nil {
		return Event{}, err
	}
	text, err := stringField(fields, "text")
	if err != nil {
		return Event{}, err
	}
	return Event{Start: start, End: end, Speaker: strings.TrimSpace(speaker), Text: strings.TrimSpace(text)}, nil
}

func numberField(fields map[string]json.RawMessage, name string) (float64, error) {
	value, ok := fields[name]
	if !ok || isNull(value) {
		return 0, fmt.Errorf("%s is missing", name)
	}
	var number float64
	if err := json.Unmarshal(value, &number); err != nil {
		return 0, fmt.Errorf("%s is not a number", name)
	}
	return number, nil
}

// stringField returns "" for a missing or null field.
func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	value, ok := fields[name]
	if !ok || isNull(value) {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return "", fmt.Errorf("%s is not a string", name)
	}
	return text, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// stripFence removes one leading fence line and one trailing fence marker.
// Fences elsewhere in the payload are left alone.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
	}
	text = strings.TrimSpace(text)
	if strings.HasSuffix(text, "```") {
		text = strings.TrimSuffix(text, "```")
	}
	return text
}
