package subtitles

import (
	"fmt"
	"os"
	"strings"

	"scriptsync/internal/alignment"
)

// Cue is one parsed SRT block.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

func renderSRT(events []alignment.Event) string {
	var sb strings.Builder
	for i, ev := range events {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d\n", i+1)
		fmt.Fprintf(&sb, "%s --> %s\n", formatSRTTimestamp(ev.Start), formatSRTTimestamp(ev.End))
		sb.WriteString(srtText(ev))
		sb.WriteString("\n")
	}
	return sb.String()
}

func srtText(ev alignment.Event) string {
	text := strings.TrimSpace(strings.ReplaceAll(ev.Text, "\r\n", "\n"))
	if speaker := strings.TrimSpace(ev.Speaker); speaker != "" {
		return speaker + ": " + text
	}
	return text
}

func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	msTotal := int(seconds*1000 + 0.5)
	hours := msTotal / 3_600_000
	msTotal %= 3_600_000
	minutes := msTotal / 60_000
	msTotal %= 60_000
	secs := msTotal / 1_000
	millis := msTotal % 1_000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// ReadSRT parses an SRT file. Blocks without an index or timing line are
// skipped.
func ReadSRT(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if content == "" {
		return nil, nil
	}

	var cues []Cue
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		var index int
		if _, err := fmt.Sscanf(lines[0], "%d", &index); err != nil {
			continue
		}
		parts := strings.Split(lines[1], "-->")
		if len(parts) != 2 {
			continue
		}
		start, err := parseSRTTimestamp(parts[0])
		if err != nil {
			continue
		}
		end, err := parseSRTTimestamp(parts[1])
		if err != nil {
			continue
		}
		cues = append(cues, Cue{
			Index: index,
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}
	return cues, nil
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	var h, m, s, ms int
	if _, err := fmt.Sscanf(hms[0]+" "+hms[1]+" "+hms[2]+" "+timeParts[1], "%d %d %d %d", &h, &m, &s, &ms); err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}
