package deps

// ToolSet names the binaries each pipeline stage needs.
type ToolSet struct {
	FFmpeg   string
	UVX      string
	Pdftoppm string
}

// Requirements lists the external tools in stage order. needTranscribe and
// needExtract drop tools for stages a command does not run.
func (t ToolSet) Requirements(needTranscribe, needExtract bool) []Requirement {
	var reqs []Requirement
	if needTranscribe {
		reqs = append(reqs,
			Requirement{
				Name:        "FFmpeg",
				Command:     t.FFmpeg,
				Description: "Extracts mono 16 kHz audio for transcription",
			},
			Requirement{
				Name:        "uvx",
				Command:     t.UVX,
				Description: "Runs WhisperX for speech recognition",
			},
		)
	}
	if needExtract {
		reqs = append(reqs, Requirement{
			Name:        "pdftoppm",
			Command:     t.Pdftoppm,
			Description: "Rasterises script pages (poppler-utils)",
		})
	}
	return reqs
}
