package reference_test

import (
	"reflect"
	"testing"

	"scriptsync/internal/reference"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		input string
		want  reference.Line
	}{
		{"NARUTO:行くぞ", reference.Line{Speaker: "NARUTO", Text: "行くぞ"}},
		{" SASUKE : 遅い ", reference.Line{Speaker: "SASUKE", Text: "遅い"}},
		{"サクラ：待って", reference.Line{Speaker: "サクラ", Text: "待って"}},
		{"(効果音)", reference.Line{Text: "(効果音)"}},
		{":no speaker", reference.Line{Text: ":no speaker"}},
		{"two words: text", reference.Line{Text: "two words: text"}},
		{"NAME:", reference.Line{Text: "NAME:"}},
	}
	for _, tc := range cases {
		if got := reference.ParseLine(tc.input); got != tc.want {
			t.Fatalf("ParseLine(%q) = %+v, want %+v", tc.input, got, tc.want)
		}
	}
}

func TestLineString(t *testing.T) {
	if got := (reference.Line{Speaker: "A", Text: "b"}).String(); got != "A:b" {
		t.Fatalf("unexpected %q", got)
	}
	if got := (reference.Line{Text: "b"}).String(); got != "b" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestNormalizeSpeakerLeavesDialogueAlone(t *testing.T) {
	got := reference.NormalizeSpeaker("ＡＢＣ ： ＦＵＬＬ　width")
	if got != "ABC:ＦＵＬＬ　width" {
		t.Fatalf("unexpected normalisation %q", got)
	}
	if got := reference.NormalizeSpeaker("no label here"); got != "no label here" {
		t.Fatalf("expected untouched line, got %q", got)
	}
}

func TestSpeakersFirstSeenOrder(t *testing.T) {
	text := "SASUKE:a\nNARUTO:b\nSASUKE:c\n\n(sfx)\nＮＡＲＵＴＯ:d"
	got := reference.Speakers(text)
	if !reflect.DeepEqual(got, []string{"SASUKE", "NARUTO"}) {
		t.Fatalf("unexpected speakers %v", got)
	}
}
