package reference_test

import (
	"reflect"
	"testing"

	"scriptsync/internal/reference"
)

func TestCollectSuppressesBoundaryDuplicate(t *testing.T) {
	pages := []reference.Page{
		{Index: 0, Text: "NARUTO:行くぞ!\nSASUKE:遅い"},
		{Index: 1, Text: "SASUKE:遅い\nSAKURA:待って"},
	}
	text, stats := reference.Collect(pages, reference.DefaultOptions())

	want := "NARUTO:行くぞ!\nSASUKE:遅い\n\nSAKURA:待って"
	if text != want {
		t.Fatalf("unexpected reference text:\n%q\nwant\n%q", text, want)
	}
	if stats.DuplicatesDropped != 1 || stats.LinesKept != 3 || stats.Pages != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCollectCollapsesWithinPageAndTrims(t *testing.T) {
	pages := []reference.Page{
		{Text: "  A:one  \r\n\n A:one\nB:two\n\tA:one"},
	}
	text, stats := reference.Collect(pages, reference.DefaultOptions())
	if text != "A:one\nB:two\nA:one" {
		t.Fatalf("unexpected text %q", text)
	}
	if stats.DuplicatesDropped != 1 {
		t.Fatalf("expected one duplicate dropped, got %+v", stats)
	}
}

func TestCollectSkipsSeparatorForEmptyPages(t *testing.T) {
	pages := []reference.Page{
		{Text: "HEADER"},
		{Text: "   \n\n"},
		{Text: "HEADER"},
		{Text: "A:line"},
	}
	text, stats := reference.Collect(pages, reference.DefaultOptions())
	if text != "HEADER\n\nA:line" {
		t.Fatalf("unexpected text %q", text)
	}
	if stats.EmptyPages != 2 {
		t.Fatalf("expected two empty pages (blank and all-duplicate), got %+v", stats)
	}
}

func TestCollectWithoutSuppressionKeepsRepeats(t *testing.T) {
	pages := []reference.Page{{Text: "A:x\nA:x"}, {Text: "A:x"}}
	text, stats := reference.Collect(pages, reference.Options{})
	if text != "A:x\nA:x\n\nA:x" {
		t.Fatalf("unexpected text %q", text)
	}
	if stats.DuplicatesDropped != 0 {
		t.Fatalf("expected no drops, got %+v", stats)
	}
}

func TestCollectorIncrementalMatchesCollect(t *testing.T) {
	pages := []reference.Page{
		{Text: "A:1\nB:2"},
		{Text: "B:2"},
		{Text: "C:3"},
	}
	collector := reference.NewCollector(reference.DefaultOptions())
	var contributions []string
	for _, page := range pages {
		contributions = append(contributions, collector.Add(page))
	}
	if !reflect.DeepEqual(contributions, []string{"A:1\nB:2", "", "C:3"}) {
		t.Fatalf("unexpected contributions %q", contributions)
	}
	batch, _ := reference.Collect(pages, reference.DefaultOptions())
	if collector.Text() != batch {
		t.Fatalf("incremental %q != batch %q", collector.Text(), batch)
	}
}

func TestCollectNormalizesSpeakersBeforeComparison(t *testing.T) {
	pages := []reference.Page{
		{Text: "ＮＡＲＵＴＯ：行くぞ"},
		{Text: "NARUTO : 行くぞ"},
	}
	opts := reference.DefaultOptions()
	opts.NormalizeSpeakers = true
	text, stats := reference.Collect(pages, opts)
	if text != "NARUTO:行くぞ" {
		t.Fatalf("unexpected text %q", text)
	}
	if stats.DuplicatesDropped != 1 {
		t.Fatalf("expected normalised duplicate dropped, got %+v", stats)
	}
}

func TestCollectEmptyInput(t *testing.T) {
	text, stats := reference.Collect(nil, reference.DefaultOptions())
	if text != "" || stats.Pages != 0 {
		t.Fatalf("expected empty result, got %q %+v", text, stats)
	}
}
