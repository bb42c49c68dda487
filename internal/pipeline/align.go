package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"scriptsync/internal/alignment"
	"scriptsync/internal/fileutil"
	"scriptsync/internal/logging"
	"scriptsync/internal/reconcile"
	"scriptsync/internal/runstore"
	"scriptsync/internal/services"
	"scriptsync/internal/subtitles"
	"scriptsync/internal/transcript"
)

const rawResponseName = "oracle-response.txt"

// align normalises the transcript, invokes the oracle and keeps the raw reply
// in the run directory.
func (p *Pipeline) align(ctx context.Context, s *session, segments []transcript.Segment, reference string) (string, error) {
	var raw string
	err := p.stage(ctx, s, StageAlign, func(ctx context.Context, logger *slog.Logger) error {
		normalized, err := transcript.Normalize(segments, transcript.Options{Precision: p.cfg.Transcript.TimePrecision})
		if err != nil {
			return services.Wrap(services.ErrConfiguration, StageAlign, "normalize transcript", "", err)
		}
		logger.Info("transcript normalized",
			logging.String(logging.FieldEventType, "transcript_normalized"),
			logging.Int("segments", normalized.Len()),
			logging.Float64("duration_seconds", normalized.Duration()),
		)

		settings, err := reconcile.ConfigFromSettings(p.cfg)
		if err != nil {
			return err
		}
		oracle, err := p.newOracle(ctx, p.cfg)
		if err != nil {
			return err
		}
		result, err := reconcile.NewClient(oracle, settings, s.logger).Reconcile(ctx, reconcile.Request{
			Reference:  reference,
			Transcript: normalized,
		})
		p.recordOracleCalls(ctx, s, logger, result.Attempts)
		s.outcome.Usage = result.Usage
		if err != nil {
			return err
		}

		s.outcome.Model = result.Model
		s.outcome.FellBack = result.FellBack
		s.run.Model = result.Model
		s.run.FellBack = result.FellBack
		logger.Info("oracle usage",
			logging.String(logging.FieldEventType, "oracle_usage"),
			logging.String(logging.FieldModel, result.Model),
			logging.Int("attempts", len(result.Attempts)),
			logging.Int("input_tokens", result.Usage.InputTokens),
			logging.Int("output_tokens", result.Usage.OutputTokens),
			logging.Int("total_tokens", result.Usage.TotalTokens),
		)

		rawPath := filepath.Join(s.runDir, rawResponseName)
		if err := fileutil.WriteFileAtomic(rawPath, []byte(result.Raw), 0o644); err != nil {
			logging.WarnWithContext(logger, "failed to save raw oracle response", "raw_response_save_failed",
				logging.String("path", rawPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check work_dir permissions"),
				logging.String(logging.FieldImpact, "reparse is unavailable for this run"),
			)
		} else {
			s.outcome.RawPath = rawPath
		}
		raw = result.Raw
		return nil
	})
	return raw, err
}

func (p *Pipeline) recordOracleCalls(ctx context.Context, s *session, logger *slog.Logger, attempts []reconcile.Attempt) {
	persistCtx := context.WithoutCancel(ctx)
	for i, attempt := range attempts {
		call := runstore.OracleCall{
			RunID:        s.run.ID,
			Attempt:      i + 1,
			Model:        attempt.Model,
			Succeeded:    attempt.Succeeded(),
			InputTokens:  attempt.Usage.InputTokens,
			OutputTokens: attempt.Usage.OutputTokens,
			TotalTokens:  attempt.Usage.TotalTokens,
			Duration:     attempt.Duration,
		}
		if attempt.Err != nil {
			call.ErrorMessage = attempt.Err.Error()
		}
		if err := p.store.RecordOracleCall(persistCtx, call); err != nil {
			logger.Warn("failed to record oracle call", logging.Int(logging.FieldAttempt, i+1), logging.Error(err))
		}
	}
}

// write parses raw and serializes the accepted events to output.
func (p *Pipeline) write(ctx context.Context, s *session, raw string, format alignment.Format, output string) error {
	return p.stage(ctx, s, StageWrite, func(ctx context.Context, logger *slog.Logger) error {
		parsed, err := alignment.NewParser(format, p.cfg.Oracle.Delimiter).Parse(raw)
		if err != nil {
			reviewPath := p.retainForReview(s, logger, raw)
			s.run.ReviewReason = fmt.Sprintf("oracle response is not a valid %s envelope; raw response kept at %s", format, reviewPath)
			return services.Wrap(services.ErrStructuredParse, StageWrite, "parse oracle response", "", err)
		}

		s.outcome.Events = len(parsed.Events)
		s.outcome.Dropped = parsed.Dropped
		s.run.EventCount = len(parsed.Events)
		s.run.DroppedCount = parsed.Dropped
		if parsed.Dropped > 0 {
			logging.WarnWithContext(logger, "oracle records dropped", "records_dropped",
				logging.Int("dropped", parsed.Dropped),
				logging.Int("accepted", len(parsed.Events)),
				logging.String(logging.FieldErrorHint, "inspect the raw oracle response in the run directory"),
				logging.String(logging.FieldImpact, "dropped lines are missing from the subtitles"),
			)
			for _, defect := range parsed.Defects {
				logger.Debug("record dropped",
					logging.Int("record", defect.Record),
					logging.String("reason", defect.Reason),
				)
			}
		}
		if violations := alignment.OrderViolations(parsed.Events); violations > 0 {
			logger.Info("events out of start order; order kept as returned",
				logging.Int("violations", violations),
			)
		}
		if len(parsed.Events) == 0 {
			reviewPath := p.retainForReview(s, logger, raw)
			s.run.ReviewReason = "oracle response contained no usable events; raw response kept at " + reviewPath
			return services.Wrap(services.ErrValidation, StageWrite, "parse oracle response",
				fmt.Sprintf("no usable events (%d dropped)", parsed.Dropped), nil)
		}

		written, err := subtitles.Write(output, parsed.Events, p.subtitleOptions())
		if err != nil {
			return err
		}
		s.outcome.OutputPath = written.Path
		s.outcome.Format = written.Format
		s.run.OutputPath = written.Path
		if issues := subtitles.Validate(written.Path, written.Format, written.Events); len(issues) > 0 {
			logging.WarnWithContext(logger, "subtitle validation reported issues", "subtitle_validation",
				logging.String("path", written.Path),
				logging.String("issues", strings.Join(issues, "; ")),
				logging.String(logging.FieldErrorHint, "open the file in a subtitle editor"),
				logging.String(logging.FieldImpact, "subtitle file may not load cleanly"),
			)
		}
		logger.Info("subtitles written",
			logging.String(logging.FieldEventType, "subtitles_written"),
			logging.String("path", written.Path),
			logging.String("format", string(written.Format)),
			logging.Int("events", written.Events),
			logging.Int("dropped", parsed.Dropped),
		)
		return nil
	})
}

// retainForReview copies raw into the review directory and returns its path.
func (p *Pipeline) retainForReview(s *session, logger *slog.Logger, raw string) string {
	reviewPath := filepath.Join(p.cfg.Paths.ReviewDir, s.run.ID+"-"+rawResponseName)
	if err := fileutil.WriteFileAtomic(reviewPath, []byte(raw), 0o644); err != nil {
		logging.WarnWithContext(logger, "failed to retain oracle response for review", "review_retain_failed",
			logging.String("path", reviewPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check review_dir permissions"),
			logging.String(logging.FieldImpact, "raw response only available in the run directory"),
		)
		return filepath.Join(s.runDir, rawResponseName)
	}
	s.outcome.ReviewPath = reviewPath
	logger.Info("oracle response retained for review",
		logging.String(logging.FieldEventType, "review_retained"),
		logging.String("path", reviewPath),
	)
	return reviewPath
}

func (p *Pipeline) responseFormat(override string) (alignment.Format, error) {
	value := p.cfg.Oracle.ResponseFormat
	if strings.TrimSpace(override) != "" {
		value = override
	}
	format, err := alignment.ParseFormat(value)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "pipeline", "response format", "", err)
	}
	return format, nil
}

var errNoRawResponse = errors.New("raw response is empty")
