package reference

import (
	"strings"
)

// Page is the extracted text of one document page. Index is zero based.
type Page struct {
	Index int
	Text  string
}

// Lines returns the page's non-empty trimmed lines in source order.
func (p Page) Lines() []string {
	raw := strings.Split(strings.ReplaceAll(p.Text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// Options controls the fold.
type Options struct {
	// SuppressDuplicates drops a line equal to the previously emitted line.
	SuppressDuplicates bool
	// NormalizeSpeakers canonicalises "NAME : text" and full-width speaker
	// labels to "NAME:text" before comparison.
	NormalizeSpeakers bool
}

// DefaultOptions returns the collector defaults.
func DefaultOptions() Options {
	return Options{SuppressDuplicates: true}
}

// Stats summarises a fold.
type Stats struct {
	Pages             int
	EmptyPages        int
	LinesKept         int
	DuplicatesDropped int
}

// Collector folds pages incrementally. The zero value is not usable; call
// NewCollector. A Collector is not safe for concurrent use.
type Collector struct {
	opts     Options
	last     string
	hasLast  bool
	sections []string
	stats    Stats
}

// NewCollector returns an empty collector.
func NewCollector(opts Options) *Collector {
	return &Collector{opts: opts}
}

// Add folds the next page and returns the text it contributed, which is empty
// when every line was blank or a duplicate.
func (c *Collector) Add(page Page) string {
	c.stats.Pages++
	kept := make([]string, 0, 16)
	for _, line := range page.Lines() {
		if c.opts.NormalizeSpeakers {
			line = NormalizeSpeaker(line)
		}
		if c.opts.SuppressDuplicates && c.hasLast && line == c.last {
			c.stats.DuplicatesDropped++
			continue
		}
		kept = append(kept, line)
		c.last = line
		c.hasLast = true
	}
	if len(kept) == 0 {
		c.stats.EmptyPages++
		return ""
	}
	c.stats.LinesKept += len(kept)
	section := strings.Join(kept, "\n")
	c.sections = append(c.sections, section)
	return section
}

// Text returns the reference text folded so far. Pages that contributed lines
// are separated by one blank line.
func (c *Collector) Text() string {
	return strings.Join(c.sections, "\n\n")
}

// Stats returns counters for the fold so far.
func (c *Collector) Stats() Stats {
	return c.stats
}

// Collect folds pages in slice order and returns the reference text.
func Collect(pages []Page, opts Options) (string, Stats) {
	collector := NewCollector(opts)
	for _, page := range pages {
		collector.Add(page)
	}
	return collector.Text(), collector.Stats()
}
