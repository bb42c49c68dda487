package pipeline

import (
	"context"
	"os"
	"strings"

	"scriptsync/internal/fileutil"
	"scriptsync/internal/runstore"
	"scriptsync/internal/services"
)

// Run executes every stage: transcribe the video, extract the script, align
// and write subtitles.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	if err := requireInput("video", req.Video); err != nil {
		return nil, err
	}
	if err := requireInput("script", req.Script); err != nil {
		return nil, err
	}
	output := req.Output
	if strings.TrimSpace(output) == "" {
		output = p.defaultSubtitlePath(req.Video)
	}
	format, err := p.responseFormat("")
	if err != nil {
		return nil, err
	}

	ctx, s, err := p.begin(ctx, &runstore.Run{VideoPath: req.Video, ScriptPath: req.Script, OutputPath: output}, req.Force)
	if err != nil {
		return nil, err
	}
	runErr := func() error {
		segments, err := p.transcribe(ctx, s, req.Video)
		if err != nil {
			return err
		}
		reference, err := p.extract(ctx, s, req.Script, req.PageLimit)
		if err != nil {
			return err
		}
		raw, err := p.align(ctx, s, segments, reference)
		if err != nil {
			return err
		}
		return p.write(ctx, s, raw, format, output)
	}()
	return p.finish(ctx, s, runErr)
}

// Transcribe runs the recogniser stage and copies the transcript to
// req.Output (default: <video>.transcript.json).
func (p *Pipeline) Transcribe(ctx context.Context, req Request) (*Outcome, error) {
	if err := requireInput("video", req.Video); err != nil {
		return nil, err
	}
	output := req.Output
	if strings.TrimSpace(output) == "" {
		output = defaultOutput(req.Video, ".transcript.json")
	}

	ctx, s, err := p.begin(ctx, &runstore.Run{VideoPath: req.Video, OutputPath: output}, req.Force)
	if err != nil {
		return nil, err
	}
	runErr := func() error {
		if _, err := p.transcribe(ctx, s, req.Video); err != nil {
			return err
		}
		return p.publish(s, s.outcome.TranscriptPath, output)
	}()
	return p.finish(ctx, s, runErr)
}

// Extract runs page extraction and the collector and copies the reference
// text to req.Output (default: <script>.reference.txt).
func (p *Pipeline) Extract(ctx context.Context, req Request) (*Outcome, error) {
	if err := requireInput("script", req.Script); err != nil {
		return nil, err
	}
	output := req.Output
	if strings.TrimSpace(output) == "" {
		output = defaultOutput(req.Script, ".reference.txt")
	}

	ctx, s, err := p.begin(ctx, &runstore.Run{ScriptPath: req.Script, OutputPath: output}, req.Force)
	if err != nil {
		return nil, err
	}
	runErr := func() error {
		if _, err := p.extract(ctx, s, req.Script, req.PageLimit); err != nil {
			return err
		}
		return p.publish(s, s.outcome.ReferencePath, output)
	}()
	return p.finish(ctx, s, runErr)
}

// Align runs the core on an existing recogniser JSON and reference text.
func (p *Pipeline) Align(ctx context.Context, req Request) (*Outcome, error) {
	if err := requireInput("transcript", req.TranscriptPath); err != nil {
		return nil, err
	}
	if err := requireInput("reference", req.ReferencePath); err != nil {
		return nil, err
	}
	output := req.Output
	if strings.TrimSpace(output) == "" {
		output = p.defaultSubtitlePath(req.TranscriptPath)
	}
	format, err := p.responseFormat("")
	if err != nil {
		return nil, err
	}

	ctx, s, err := p.begin(ctx, &runstore.Run{OutputPath: output}, req.Force)
	if err != nil {
		return nil, err
	}
	runErr := func() error {
		segments, err := loadTranscript(req.TranscriptPath)
		if err != nil {
			return services.Wrap(services.ErrValidation, StageAlign, "load transcript", req.TranscriptPath, err)
		}
		data, err := os.ReadFile(req.ReferencePath)
		if err != nil {
			return services.Wrap(services.ErrNotFound, StageAlign, "read reference", req.ReferencePath, err)
		}
		s.outcome.TranscriptPath = req.TranscriptPath
		s.outcome.ReferencePath = req.ReferencePath
		s.outcome.Segments = len(segments)
		raw, err := p.align(ctx, s, segments, string(data))
		if err != nil {
			return err
		}
		return p.write(ctx, s, raw, format, output)
	}()
	return p.finish(ctx, s, runErr)
}

// Reparse parses a retained raw oracle response and writes subtitles without
// invoking the oracle. An empty format uses oracle.response_format.
func (p *Pipeline) Reparse(ctx context.Context, rawPath, format, output string) (*Outcome, error) {
	if err := requireInput("raw response", rawPath); err != nil {
		return nil, err
	}
	shape, err := p.responseFormat(format)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(output) == "" {
		output = p.defaultSubtitlePath(rawPath)
	}

	ctx, s, err := p.begin(ctx, &runstore.Run{OutputPath: output}, false)
	if err != nil {
		return nil, err
	}
	runErr := func() error {
		data, err := os.ReadFile(rawPath)
		if err != nil {
			return services.Wrap(services.ErrNotFound, StageWrite, "read raw response", rawPath, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return services.Wrap(services.ErrValidation, StageWrite, "read raw response", rawPath, errNoRawResponse)
		}
		s.outcome.RawPath = rawPath
		return p.write(ctx, s, string(data), shape, output)
	}()
	return p.finish(ctx, s, runErr)
}

// publish copies a stage artifact to the user-facing output path.
func (p *Pipeline) publish(s *session, artifact, output string) error {
	if artifact == output {
		s.outcome.OutputPath = output
		return nil
	}
	if err := fileutil.CopyFile(artifact, output); err != nil {
		return services.Wrap(services.ErrTransient, "pipeline", "publish artifact", output, err)
	}
	s.outcome.OutputPath = output
	s.run.OutputPath = output
	return nil
}

func requireInput(name, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "inputs", name+" path is required", nil)
	}
	if !fileutil.Exists(path) {
		return services.Wrap(services.ErrNotFound, "pipeline", "inputs", name+" not found: "+path, nil)
	}
	return nil
}
