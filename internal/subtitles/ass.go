package subtitles

import (
	"fmt"
	"strings"

	"scriptsync/internal/alignment"
)

const assStyleFormat = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, " +
	"Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, " +
	"Alignment, MarginL, MarginR, MarginV, Encoding"

const assEventFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"

// renderASS writes one Dialogue line per event in input order. Alignment 2 is
// bottom centre.
func renderASS(events []alignment.Event, opts Options) string {
	var sb strings.Builder
	sb.WriteString("[Script Info]\n")
	sb.WriteString("; Script generated by scriptsync\n")
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("Collisions: Normal\n\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString(assStyleFormat + "\n")
	fmt.Fprintf(&sb, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H00000000,0,0,0,0,100,100,0,0,1,2,2,2,10,10,10,1\n\n",
		assField(opts.FontName), opts.FontSize)

	sb.WriteString("[Events]\n")
	sb.WriteString(assEventFormat + "\n")
	for _, ev := range events {
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,Default,%s,0,0,0,,%s\n",
			formatASSTimestamp(ev.Start),
			formatASSTimestamp(ev.End),
			assField(ev.Speaker),
			assText(ev.Text),
		)
	}
	return sb.String()
}

// assField keeps a value inside its comma separated column.
func assField(value string) string {
	value = strings.ReplaceAll(value, ",", " ")
	return strings.Join(strings.Fields(value), " ")
}

func assText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", `\N`)
}

// formatASSTimestamp renders H:MM:SS.cc, rounding to the nearest centisecond.
func formatASSTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	csTotal := int(seconds*100 + 0.5)
	hours := csTotal / 360_000
	csTotal %= 360_000
	minutes := csTotal / 6_000
	csTotal %= 6_000
	secs := csTotal / 100
	centis := csTotal % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centis)
}
