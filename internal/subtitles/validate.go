package subtitles

import (
	"fmt"
	"os"
	"strings"
)

// Validate re-reads a written subtitle file and reports format problems.
// An empty slice means the file passed.
func Validate(path string, format Format, expectedEvents int) []string {
	var issues []string
	switch format {
	case FormatSRT:
		cues, err := ReadSRT(path)
		if err != nil {
			return []string{fmt.Sprintf("read_error: %v", err)}
		}
		if expectedEvents > 0 && len(cues) == 0 {
			return []string{"empty_subtitle_file"}
		}
		if len(cues) != expectedEvents {
			issues = append(issues, fmt.Sprintf("cue_count_mismatch: want=%d got=%d", expectedEvents, len(cues)))
		}
		for _, cue := range cues {
			if cue.End <= cue.Start {
				issues = append(issues, fmt.Sprintf("non_positive_duration: cue=%d", cue.Index))
			}
		}
	case FormatASS:
		data, err := os.ReadFile(path)
		if err != nil {
			return []string{fmt.Sprintf("read_error: %v", err)}
		}
		content := string(data)
		if !strings.Contains(content, "[Events]") {
			issues = append(issues, "missing_events_section")
		}
		if got := strings.Count(content, "\nDialogue: "); got != expectedEvents {
			issues = append(issues, fmt.Sprintf("cue_count_mismatch: want=%d got=%d", expectedEvents, got))
		}
	default:
		issues = append(issues, fmt.Sprintf("unsupported_format: %s", format))
	}
	return issues
}
