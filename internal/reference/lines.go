package reference

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/width"
)

const maxSpeakerRunes = 32

// Line is one logical reference line.
type Line struct {
	Speaker string
	Text    string
}

// String renders the line as SPEAKER:TEXT, or the bare text when no speaker is known.
func (l Line) String() string {
	if l.Speaker == "" {
		return l.Text
	}
	return l.Speaker + ":" + l.Text
}

// ParseLine splits a SPEAKER:TEXT line. Lines without a plausible speaker
// label come back with an empty Speaker and the whole trimmed line as Text.
func ParseLine(line string) Line {
	line = strings.TrimSpace(line)
	speaker, text, ok := splitSpeaker(line)
	if !ok {
		return Line{Text: line}
	}
	return Line{Speaker: speaker, Text: text}
}

// NormalizeSpeaker folds the speaker label and separator of a SPEAKER:TEXT
// line to their narrow forms and removes spacing around the separator. The
// dialogue text itself is left untouched.
func NormalizeSpeaker(line string) string {
	speaker, text, ok := splitSpeaker(line)
	if !ok {
		return line
	}
	return width.Fold.String(speaker) + ":" + text
}

// Speakers lists the distinct speakers of a reference text in first-seen order.
func Speakers(reference string) []string {
	seen := make(map[string]struct{})
	var speakers []string
	for _, raw := range strings.Split(reference, "\n") {
		line := ParseLine(raw)
		if line.Speaker == "" {
			continue
		}
		key := width.Fold.String(line.Speaker)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		speakers = append(speakers, line.Speaker)
	}
	return speakers
}

// splitSpeaker finds the first ASCII or full-width colon. The label before it
// must be short and free of inner whitespace to count as a speaker.
func splitSpeaker(line string) (string, string, bool) {
	idx, size := -1, 0
	for i, r := range line {
		if r == ':' || r == '：' {
			idx, size = i, utf8.RuneLen(r)
			break
		}
	}
	if idx <= 0 {
		return "", "", false
	}
	speaker := strings.TrimSpace(line[:idx])
	if speaker == "" || utf8.RuneCountInString(speaker) > maxSpeakerRunes {
		return "", "", false
	}
	if strings.IndexFunc(speaker, unicode.IsSpace) >= 0 {
		return "", "", false
	}
	text := strings.TrimSpace(line[idx+size:])
	if text == "" {
		return "", "", false
	}
	return speaker, text, true
}
