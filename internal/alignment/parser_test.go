package alignment

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"scriptsync/internal/services"
)

func TestParseDelimitedScenario(t *testing.T) {
	raw := "1.0; 2.4; NARUTO; お前は誰だ\n2.5; 3.9; SASUKE; 知らない\n"
	result, err := NewParser(FormatDelimited, "").Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := []Event{
		{Start: 1.0, End: 2.4, Speaker: "NARUTO", Text: "お前は誰だ"},
		{Start: 2.5, End: 3.9, Speaker: "SASUKE", Text: "知らない"},
	}
	if len(result.Events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(result.Events), result.Events)
	}
	for i := range want {
		if result.Events[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, result.Events[i], want[i])
		}
	}
	if result.Dropped != 0 {
		t.Fatalf("expected no dropped records, got %d", result.Dropped)
	}
}

func TestParseStructuredScenario(t *testing.T) {
	raw := "```json\n[{\"start\":1.0,\"end\":2.4,\"speaker\":\"NARUTO\",\"text\":\"お前は誰だ\"}," +
		"{\"start\":2.5,\"end\":3.9,\"speaker\":\"SASUKE\",\"text\":\"知らない\"}]\n```"
	result, err := NewParser(FormatStructured, "").Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %+v", result.Events)
	}
	if result.Events[0] != (Event{Start: 1.0, End: 2.4, Speaker: "NARUTO", Text: "お前は誰だ"}) {
		t.Fatalf("unexpected first event %+v", result.Events[0])
	}
	if result.Events[1] != (Event{Start: 2.5, End: 3.9, Speaker: "SASUKE", Text: "知らない"}) {
		t.Fatalf("unexpected second event %+v", result.Events[1])
	}
}

func TestParseDelimitedDropsMalformedLine(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%d.0; %d.5; A; line %d\n", i, i, i)
		if i == 4 {
			b.WriteString("this line has no fields\n")
		}
	}
	result, err := NewParser(FormatDelimited, ";").Parse(b.String())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Events) != 10 {
		t.Fatalf("expected 10 events, got %d", len(result.Events))
	}
	if result.Dropped != 1 || len(result.Defects) != 1 {
		t.Fatalf("expected one dropped record, got %d (%+v)", result.Dropped, result.Defects)
	}
	if result.Defects[0].Record != 6 {
		t.Fatalf("expected defect on line 6, got %d", result.Defects[0].Record)
	}
}

func TestParseDelimitedSkipsBlankLinesWithoutCounting(t *testing.T) {
	result, err := NewParser(FormatDelimited, "").Parse("\n\n1; 2; A; hi\n   \n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Events) != 1 || result.Dropped != 0 {
		t.Fatalf("expected 1 event and no drops, got %d/%d", len(result.Events), result.Dropped)
	}
}

func TestParseDelimitedFieldRules(t *testing.T) {
	raw := strings.Join([]string{
		"abc; 2; A; bad start",
		"1; NaN; A; bad end",
		"1; Inf; A; infinite end",
		"3; 3; A; zero length",
		"5; 4; A; reversed",
		"-1; 2; A; negative",
		"6; 7; A;   ",
		"8; 9; ; no speaker",
		"10; 11; B; a; b",
	}, "\n")
	result, err := NewParser(FormatDelimited, "").Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.Dropped != 7 {
		t.Fatalf("expected 7 dropped records, got %d (%+v)", result.Dropped, result.Defects)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %+v", result.Events)
	}
	if result.Events[0].Speaker != "" || result.Events[0].Text != "no speaker" {
		t.Fatalf("unexpected event %+v", result.Events[0])
	}
	if result.Events[1].Text != "a; b" {
		t.Fatalf("expected extra fields to stay in text, got %q", result.Events[1].Text)
	}
}

func TestParseDelimitedCustomDelimiter(t *testing.T) {
	result, err := NewParser(FormatDelimited, "|").Parse("1 | 2 | A | x;y")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Text != "x;y" {
		t.Fatalf("unexpected events %+v", result.Events)
	}
}

func TestParsePreservesOrder(t *testing.T) {
	delimited := "5; 6; A; third\n1; 2; B; first\n3; 4; C; second\n"
	structured := `[{"start":5,"end":6,"speaker":"A","text":"third"},` +
		`{"start":1,"end":2,"speaker":"B","text":"first"},` +
		`{"start":3,"end":4,"speaker":"C","text":"second"}]`

	for _, tc := range []struct {
		format Format
		raw    string
	}{
		{FormatDelimited, delimited},
		{FormatStructured, structured},
	} {
		result, err := NewParser(tc.format, "").Parse(tc.raw)
		if err != nil {
			t.Fatalf("%s: Parse returned error: %v", tc.format, err)
		}
		got := make([]string, 0, len(result.Events))
		for _, event := range result.Events {
			got = append(got, event.Text)
		}
		if strings.Join(got, ",") != "third,first,second" {
			t.Fatalf("%s: order changed: %v", tc.format, got)
		}
		if violations := OrderViolations(result.Events); violations != 1 {
			t.Fatalf("%s: expected 1 order violation, got %d", tc.format, violations)
		}
	}
}

func TestParseDropsInvalidTimingAndEmptyTextBothShapes(t *testing.T) {
	delimited := "2; 2; A; same\n3; 1; A; reversed\n4; 5; A; \n6; 7; A; kept\n"
	structured := `[{"start":2,"end":2,"speaker":"A","text":"same"},` +
		`{"start":3,"end":1,"speaker":"A","text":"reversed"},` +
		`{"start":4,"end":5,"speaker":"A","text":"  "},` +
		`{"start":6,"end":7,"speaker":"A","text":"kept"}]`

	for _, tc := range []struct {
		format Format
		raw    string
	}{
		{FormatDelimited, delimited},
		{FormatStructured, structured},
	} {
		result, err := NewParser(tc.format, "").Parse(tc.raw)
		if err != nil {
			t.Fatalf("%s: Parse returned error: %v", tc.format, err)
		}
		if len(result.Events) != 1 || result.Events[0].Text != "kept" {
			t.Fatalf("%s: unexpected events %+v", tc.format, result.Events)
		}
		if result.Dropped != 3 {
			t.Fatalf("%s: expected 3 dropped, got %d", tc.format, result.Dropped)
		}
	}
}

func TestParseStructuredBrokenEnvelopeIsFatal(t *testing.T) {
	raw := `[{"start":1,"end":2,"speaker":"A","text":"valid"},{"start":3,"end":4,"speaker":"B","text":"also valid"}`
	result, err := NewParser(FormatStructured, "").Parse(raw)
	if err == nil {
		t.Fatal("expected error for truncated envelope")
	}
	if !errors.Is(err, services.ErrStructuredParse) {
		t.Fatalf("expected ErrStructuredParse, got %v", err)
	}
	var parseErr *StructuredParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *StructuredParseError, got %T", err)
	}
	if parseErr.Raw != raw {
		t.Fatalf("expected raw response to be retained, got %q", parseErr.Raw)
	}
	if len(result.Events) != 0 {
		t.Fatalf("expected zero events, got %d", len(result.Events))
	}
}

func TestParseStructuredRejectsNonJSON(t *testing.T) {
	for _, raw := range []string{"", "   ", "1; 2; A; text", `{"items":[]}`} {
		if _, err := NewParser(FormatStructured, "").Parse(raw); !errors.Is(err, services.ErrStructuredParse) {
			t.Fatalf("raw %q: expected ErrStructuredParse, got %v", raw, err)
		}
	}
}

func TestParseStructuredRecordDefects(t *testing.T) {
	raw := `{"events":[` +
		`{"start":"1.0","end":2,"speaker":"A","text":"string start"},` +
		`{"start":1,"end":2,"speaker":7,"text":"numeric speaker"},` +
		`{"end":2,"speaker":"A","text":"no start"},` +
		`"not an object",` +
		`{"start":1,"end":2,"speaker":null,"text":"null speaker"},` +
		`{"start":3,"end":4,"text":"missing speaker"}` +
		`]}`
	result, err := NewParser(FormatStructured, "").Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.Dropped != 4 {
		t.Fatalf("expected 4 defects, got %d (%+v)", result.Dropped, result.Defects)
	}
	if result.Defects[0].Record != 0 || !strings.Contains(result.Defects[0].Reason, "start") {
		t.Fatalf("unexpected first defect %+v", result.Defects[0])
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %+v", result.Events)
	}
	for _, event := range result.Events {
		if event.Speaker != "" {
			t.Fatalf("expected empty speaker, got %q", event.Speaker)
		}
	}
}

func TestParseStructuredFenceOnlyAtEnds(t *testing.T) {
	raw := "```\n[{\"start\":1,\"end\":2,\"speaker\":\"A\",\"text\":\"see ``` here\"}]\n```\n"
	result, err := NewParser(FormatStructured, "").Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Text != "see ``` here" {
		t.Fatalf("unexpected events %+v", result.Events)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":             FormatDelimited,
		"delimited":    FormatDelimited,
		" Structured ": FormatStructured,
	}
	for input, want := range cases {
		got, err := ParseFormat(input)
		if err != nil {
			t.Fatalf("ParseFormat(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
