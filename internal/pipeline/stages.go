package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scriptsync/internal/extraction"
	"scriptsync/internal/fileutil"
	"scriptsync/internal/logging"
	"scriptsync/internal/services"
	"scriptsync/internal/services/pdfpages"
	"scriptsync/internal/transcript"
)

// transcribe returns validated recogniser segments for video, from the
// marker cache when possible.
func (p *Pipeline) transcribe(ctx context.Context, s *session, video string) ([]transcript.Segment, error) {
	var segments []transcript.Segment
	err := p.stage(ctx, s, StageTranscribe, func(ctx context.Context, logger *slog.Logger) error {
		digest, err := fileutil.HashFile(video)
		if err != nil {
			return services.Wrap(services.ErrNotFound, StageTranscribe, "hash video", video, err)
		}
		tc := p.cfg.Transcript
		key := fileutil.HashKey(StageTranscribe, digest, tc.WhisperXModel, tc.Language, tc.VADMethod, strconv.FormatBool(tc.CUDAEnabled))
		artifact := p.artifactPath(StageTranscribe, key, "transcript.json")

		if cached, ok := p.cachedArtifact(ctx, s, logger, StageTranscribe, key); ok {
			segments, err = loadTranscript(cached)
			if err == nil {
				s.outcome.TranscriptPath = cached
				return nil
			}
			logger.Warn("cached transcript unreadable; transcribing again", logging.Error(err))
		}

		result, err := p.transcriber.Transcribe(ctx, video, s.runDir, tc.Language)
		if err != nil {
			return err
		}
		if err := transcript.SaveFile(artifact, result.Segments); err != nil {
			return services.Wrap(services.ErrTransient, StageTranscribe, "save transcript", artifact, err)
		}
		p.markComplete(ctx, s, logger, StageTranscribe, key, artifact)
		segments = result.Segments
		s.outcome.TranscriptPath = artifact
		return nil
	})
	if err == nil {
		s.outcome.Segments = len(segments)
	}
	return segments, err
}

func loadTranscript(path string) ([]transcript.Segment, error) {
	raw, err := transcript.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return transcript.Validate(raw)
}

// extract renders the script and folds the per-page text into the reference.
func (p *Pipeline) extract(ctx context.Context, s *session, script string, pageLimit int) (string, error) {
	var reference string
	err := p.stage(ctx, s, StageExtract, func(ctx context.Context, logger *slog.Logger) error {
		digest, err := fileutil.HashFile(script)
		if err != nil {
			return services.Wrap(services.ErrNotFound, StageExtract, "hash script", script, err)
		}
		rc := p.cfg.Reference
		if pageLimit <= 0 {
			pageLimit = rc.PageLimit
		}
		key := fileutil.HashKey(StageExtract, digest,
			rc.Extractor, p.cfg.Oracle.Provider, rc.ExtractorModel,
			strconv.Itoa(rc.DPI), strconv.Itoa(rc.RotateDegrees), strconv.Itoa(pageLimit),
			strconv.FormatBool(rc.SuppressDuplicates), strconv.FormatBool(rc.NormalizeSpeakers),
		)
		artifact := p.artifactPath(StageExtract, key, "reference.txt")

		if cached, ok := p.cachedArtifact(ctx, s, logger, StageExtract, key); ok {
			data, err := os.ReadFile(cached)
			if err == nil {
				reference = string(data)
				s.outcome.ReferencePath = cached
				return nil
			}
			logger.Warn("cached reference unreadable; extracting again", logging.Error(err))
		}

		pages, err := p.renderer.Render(ctx, script, filepath.Join(s.runDir, "pages"), pdfpages.Options{
			DPI:           rc.DPI,
			RotateDegrees: rc.RotateDegrees,
			PageLimit:     pageLimit,
		})
		if err != nil {
			return err
		}

		extractor, closeExtractor, err := p.newExtractor(ctx, p.cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeExtractor(); err != nil {
				logger.Debug("close extractor", logging.Error(err))
			}
		}()

		partial := filepath.Join(s.runDir, "reference.partial.txt")
		opts := extraction.OptionsFromConfig(p.cfg)
		opts.OnProgress = func(text string) {
			if err := fileutil.WriteFileAtomic(partial, []byte(text+"\n"), 0o644); err != nil {
				logger.Debug("write partial reference", logging.Error(err))
			}
		}
		result, err := extraction.NewRunner(extractor, opts, s.logger).Run(ctx, pages)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("%s: %w", StageExtract, err)
		}
		s.outcome.Pages = result.Stats.Pages
		s.outcome.FailedPages = result.FailedPages
		if strings.TrimSpace(result.Reference) == "" {
			return services.Wrap(services.ErrValidation, StageExtract, "collect",
				fmt.Sprintf("no dialogue lines found in %d page(s)", result.Stats.Pages), nil)
		}

		reference = result.Reference
		if err := fileutil.WriteFileAtomic(artifact, []byte(reference+"\n"), 0o644); err != nil {
			return services.Wrap(services.ErrTransient, StageExtract, "save reference", artifact, err)
		}
		s.outcome.ReferencePath = artifact
		// A reference with failed pages is incomplete; leave it uncached so
		// the next run retries those pages.
		if len(result.FailedPages) == 0 {
			p.markComplete(ctx, s, logger, StageExtract, key, artifact)
		}
		return nil
	})
	return reference, err
}
