package reconcile

import (
	"fmt"
	"strings"

	"scriptsync/internal/alignment"
)

const systemPrompt = `You are an expert in Japanese script analysis and transcription.
Your task is to align an automatic transcription with a golden reference script.

The automatic transcription is a list of dialogue segments, one JSON object per line, each with id, start, end and text.
The golden reference script lists each dialogue line as ACTOR:TEXT (or TEXT alone when no actor is known).

Fix or replace the text of each transcription segment using the golden reference, and work out which actor speaks it.
Keep the start and end times of the transcription, in seconds. Keep the order of the transcription.`

// BuildPrompts returns the system and user prompts for one reconciliation.
func BuildPrompts(req Request, format alignment.Format, delimiter string) (string, string) {
	var b strings.Builder
	b.WriteString("Output format:\n")
	b.WriteString(formatInstruction(format, delimiter))
	b.WriteString("\n\nGolden Reference:\n")
	b.WriteString(strings.TrimSpace(req.Reference))
	b.WriteString("\n\nWhisper Transcriptions:\n")
	b.WriteString(req.Transcript.Render())
	b.WriteString("\n\nDo not output comments or anything else.")
	return systemPrompt, b.String()
}

func formatInstruction(format alignment.Format, delimiter string) string {
	if format == alignment.FormatStructured {
		return `A JSON array of objects {"start": <seconds>, "end": <seconds>, "speaker": "<actor>", "text": "<text>"}. ` +
			`Use an empty string for speaker when the actor is unknown.`
	}
	if delimiter == "" {
		delimiter = alignment.DefaultDelimiter
	}
	sep := delimiter + " "
	return fmt.Sprintf("One line per dialogue:\nSTART%sEND%sACTOR%sTEXT", sep, sep, sep)
}
