package transcript_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriptsync/internal/services"
	"scriptsync/internal/transcript"
)

func mustValidate(t *testing.T, payload string) []transcript.Segment {
	t.Helper()
	raw, err := transcript.Decode(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	segments, err := transcript.Validate(raw)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	return segments
}

func TestDecodeArrayAndEnvelope(t *testing.T) {
	array := `[{"id":7,"start":1.0,"end":2.4,"text":"行くぞ"},{"id":9,"start":2.5,"end":3.1,"text":"遅い"}]`
	segments := mustValidate(t, array)
	if len(segments) != 2 || segments[0].ID != 7 || segments[1].ID != 9 {
		t.Fatalf("unexpected segments: %+v", segments)
	}

	envelope := `{"segments":[{"start":0.5,"end":1.5,"text":"a","words":[]},{"start":2,"end":3,"text":"b"}],"language":"ja"}`
	segments = mustValidate(t, envelope)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].ID != 0 || segments[1].ID != 1 {
		t.Fatalf("expected positional ids when absent, got %+v", segments)
	}
}

func TestDecodeRejectsUnknownShapes(t *testing.T) {
	for _, payload := range []string{"", "   ", `"text"`, `{"language":"ja"}`, `[{"start":"x"}]`, `[`} {
		_, err := transcript.Decode(strings.NewReader(payload))
		if err == nil {
			t.Fatalf("expected error for %q", payload)
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation marker for %q, got %v", payload, err)
		}
	}
}

func TestValidateReportsMissingFields(t *testing.T) {
	cases := []struct {
		payload string
		field   string
		index   int
	}{
		{`[{"start":0,"end":1,"text":"ok"},{"end":2,"text":"x"}]`, "start", 1},
		{`[{"start":0,"text":"x"}]`, "end", 0},
		{`[{"start":0,"end":1}]`, "text", 0},
		{`[{"start":0,"end":1,"text":null}]`, "text", 0},
	}
	for _, tc := range cases {
		raw, err := transcript.Decode(strings.NewReader(tc.payload))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		_, err = transcript.Validate(raw)
		var vErr *transcript.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError for %s, got %v", tc.payload, err)
		}
		if vErr.Field != tc.field || vErr.Index != tc.index {
			t.Fatalf("unexpected error detail for %s: %+v", tc.payload, vErr)
		}
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected ErrValidation marker, got %v", err)
		}
	}
}

func TestNormalizeRoundsTrimsAndPreservesOrder(t *testing.T) {
	segments := []transcript.Segment{
		{ID: 3, Start: 1.004, End: 2.4449, Text: "  行くぞ!  "},
		{ID: 1, Start: 0.5, End: 0.9, Text: "……"},
		{ID: 2, Start: 2.555, End: 3.0, Text: "遅い"},
	}
	got, err := transcript.Normalize(segments, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("expected no segments dropped, got %d", got.Len())
	}
	first := got.Segments[0]
	if first.ID != 3 || first.Start != 1.0 || first.End != 2.44 || first.Text != "行くぞ!" {
		t.Fatalf("unexpected first segment: %+v", first)
	}
	if got.Segments[1].Text != "" {
		t.Fatalf("expected punctuation-only text blanked, got %q", got.Segments[1].Text)
	}
	if got.Segments[2].ID != 2 {
		t.Fatalf("expected original order kept, got %+v", got.Segments)
	}
	if segments[0].Text != "  行くぞ!  " {
		t.Fatal("expected input slice untouched")
	}
}

func TestNormalizeAppliesNFC(t *testing.T) {
	decomposed := "\u304b\u3099"
	got, err := transcript.Normalize([]transcript.Segment{{Text: decomposed}}, transcript.DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Segments[0].Text != "\u304c" {
		t.Fatalf("expected composed form, got %q", got.Segments[0].Text)
	}
}

func TestNormalizeRejectsBadPrecision(t *testing.T) {
	if _, err := transcript.Normalize(nil, transcript.Options{Precision: 9}); err == nil {
		t.Fatal("expected precision error")
	}
}

func TestRenderOneObjectPerLine(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		{ID: 0, Start: 1, End: 2.4, Text: "行くぞ!"},
		{ID: 1, Start: 2.5, End: 3.1, Text: "<遅い>"},
	}}
	want := `{"id":0,"start":1,"end":2.4,"text":"行くぞ!"}` + "\n" + `{"id":1,"start":2.5,"end":3.1,"text":"<遅い>"}`
	if got := tr.Render(); got != want {
		t.Fatalf("unexpected render:\n%s\nwant\n%s", got, want)
	}
	if tr.Duration() != 3.1 {
		t.Fatalf("unexpected duration %v", tr.Duration())
	}
	if (transcript.Transcript{}).Render() != "" {
		t.Fatal("expected empty render for empty transcript")
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whisper.json")
	segments := []transcript.Segment{{ID: 4, Start: 0, End: 1.25, Text: "a"}}
	if err := transcript.SaveFile(path, segments); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	raw, err := transcript.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	got, err := transcript.Validate(raw)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(got) != 1 || got[0] != segments[0] {
		t.Fatalf("unexpected round trip: %+v", got)
	}

	_, err = transcript.LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found marker, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected file present: %v", statErr)
	}
}
