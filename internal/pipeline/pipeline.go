package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"scriptsync/internal/config"
	"scriptsync/internal/extraction"
	"scriptsync/internal/logging"
	"scriptsync/internal/notifications"
	"scriptsync/internal/reconcile"
	"scriptsync/internal/runstore"
	"scriptsync/internal/services"
	"scriptsync/internal/services/pdfpages"
	"scriptsync/internal/services/whisperx"
	"scriptsync/internal/subtitles"
)

// Stage names recorded in the ledger and in log context.
const (
	StageTranscribe = "transcribe"
	StageExtract    = "extract"
	StageAlign      = "align"
	StageWrite      = "write"
)

const lockFileName = "scriptsync.lock"

// ErrWorkspaceBusy is returned when another process holds the workspace lock.
var ErrWorkspaceBusy = errors.New("another scriptsync run holds the workspace lock")

// Transcriber produces recogniser segments for a video.
type Transcriber interface {
	Transcribe(ctx context.Context, video, workDir, language string) (whisperx.Result, error)
}

// PageRenderer rasterises a script document into page images.
type PageRenderer interface {
	Render(ctx context.Context, document, outDir string, opts pdfpages.Options) ([]pdfpages.Page, error)
}

// ExtractorFactory builds the page extractor for a run.
type ExtractorFactory func(ctx context.Context, cfg *config.Config) (extraction.PageExtractor, func() error, error)

// OracleFactory builds the reconciliation oracle for a run.
type OracleFactory func(ctx context.Context, cfg *config.Config) (reconcile.Oracle, error)

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithTranscriber replaces the WhisperX service.
func WithTranscriber(t Transcriber) Option {
	return func(p *Pipeline) { p.transcriber = t }
}

// WithPageRenderer replaces the pdftoppm renderer.
func WithPageRenderer(r PageRenderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithExtractorFactory replaces the configured page extractor.
func WithExtractorFactory(f ExtractorFactory) Option {
	return func(p *Pipeline) { p.newExtractor = f }
}

// WithOracleFactory replaces the configured oracle.
func WithOracleFactory(f OracleFactory) Option {
	return func(p *Pipeline) { p.newOracle = f }
}

// WithNotifier replaces the ntfy notifier.
func WithNotifier(n notifications.Service) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// Pipeline executes runs against one workspace.
type Pipeline struct {
	cfg          *config.Config
	store        *runstore.Store
	logger       *slog.Logger
	transcriber  Transcriber
	renderer     PageRenderer
	newExtractor ExtractorFactory
	newOracle    OracleFactory
	notifier     notifications.Service
	newRunID     func() string
}

// New builds a pipeline wired to the real collaborators.
func New(cfg *config.Config, store *runstore.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		transcriber: whisperx.NewService(whisperx.Config{
			Model:       cfg.Transcript.WhisperXModel,
			CUDAEnabled: cfg.Transcript.CUDAEnabled,
			VADMethod:   cfg.Transcript.VADMethod,
			HFToken:     cfg.Transcript.HFToken,
		}, cfg.FFmpegBinary()),
		renderer:     pdfpages.NewRenderer(cfg.PdftoppmBinary()),
		newExtractor: extraction.NewPageExtractorFromConfig,
		newOracle:    reconcile.NewOracleFromConfig,
		notifier:     notifications.NewService(cfg),
		newRunID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request names the inputs of one run. Commands fill only the fields their
// stages consume.
type Request struct {
	Video          string
	Script         string
	TranscriptPath string
	ReferencePath  string
	Output         string
	// Force ignores completion markers.
	Force bool
	// PageLimit overrides reference.page_limit when positive.
	PageLimit int
}

// Outcome summarises a finished run.
type Outcome struct {
	RunID          string
	Status         runstore.Status
	TranscriptPath string
	ReferencePath  string
	RawPath        string
	ReviewPath     string
	OutputPath     string
	Format         subtitles.Format
	Segments       int
	Pages          int
	FailedPages    []int
	Events         int
	Dropped        int
	Model          string
	FellBack       bool
	Usage          reconcile.Usage
	// Cached lists stages satisfied by a completion marker.
	Cached  []string
	LogPath string
}

type session struct {
	run      *runstore.Run
	outcome  *Outcome
	logger   *slog.Logger
	runDir   string
	force    bool
	closeLog func() error
	lock     *flock.Flock
}

func (p *Pipeline) begin(ctx context.Context, run *runstore.Run, force bool) (context.Context, *session, error) {
	workDir := p.cfg.Paths.WorkDir
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return ctx, nil, services.Wrap(services.ErrConfiguration, "pipeline", "prepare workspace", workDir, err)
	}
	lockPath := filepath.Join(workDir, lockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return ctx, nil, fmt.Errorf("%w (%s)", ErrWorkspaceBusy, lockPath)
	}

	// Holding the lock means no other run is alive; anything still marked
	// running was interrupted.
	if stale, err := p.store.FailStaleRuns(ctx, "interrupted before completion"); err != nil {
		p.logger.Warn("stale run sweep failed", logging.Error(err))
	} else if stale > 0 {
		p.logger.Info("marked interrupted runs failed",
			logging.String(logging.FieldEventType, "stale_runs_failed"),
			logging.Int64("count", stale),
		)
	}

	run.ID = p.newRunID()
	run.WorkDir = filepath.Join(workDir, "runs", run.ID)
	if err := os.MkdirAll(run.WorkDir, 0o755); err != nil {
		_ = lock.Unlock()
		return ctx, nil, services.Wrap(services.ErrConfiguration, "pipeline", "prepare run directory", run.WorkDir, err)
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		_ = lock.Unlock()
		return ctx, nil, fmt.Errorf("record run: %w", err)
	}

	s := &session{
		run:      run,
		outcome:  &Outcome{RunID: run.ID, Status: runstore.StatusRunning},
		logger:   p.logger,
		runDir:   run.WorkDir,
		force:    force,
		closeLog: func() error { return nil },
		lock:     lock,
	}
	logPath := logging.RunLogPath(p.cfg.Paths.LogDir, run.ID)
	if runLogger, closeLog, err := logging.OpenRunLog(p.logger, logPath); err != nil {
		logging.WarnWithContext(p.logger, "run log unavailable", "run_log_failed",
			logging.String("path", logPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "run continues with console logging only"),
		)
	} else {
		s.logger = runLogger
		s.closeLog = closeLog
		s.outcome.LogPath = logPath
	}
	logging.PruneRunLogs(p.logger, p.cfg.Paths.LogDir, p.cfg.Logging.RetentionDays, logPath)

	ctx = services.WithRunID(ctx, run.ID)
	logging.WithContext(ctx, s.logger).Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("video", run.VideoPath),
		logging.String("script", run.ScriptPath),
		logging.String("work_dir", run.WorkDir),
	)
	return ctx, s, nil
}

func (p *Pipeline) finish(ctx context.Context, s *session, runErr error) (*Outcome, error) {
	persistCtx := context.WithoutCancel(ctx)
	logger := logging.WithContext(ctx, s.logger)

	switch {
	case runErr == nil:
		s.run.Status = runstore.StatusCompleted
		s.run.ErrorMessage = ""
	case errors.Is(runErr, context.Canceled):
		s.run.Status = runstore.StatusFailed
		s.run.ErrorMessage = "cancelled"
	default:
		s.run.Status = services.FailureStatus(runErr)
		s.run.ErrorMessage = runErr.Error()
		if s.run.Status == runstore.StatusReview && s.run.ReviewReason == "" {
			s.run.ReviewReason = runErr.Error()
		}
	}
	s.outcome.Status = s.run.Status

	if err := p.store.UpdateRun(persistCtx, s.run); err != nil {
		logger.Error("failed to persist run outcome", logging.Error(err))
	}

	if runErr == nil {
		logger.Info("run completed",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("output", s.outcome.OutputPath),
			logging.Int("events", s.outcome.Events),
			logging.Int("dropped", s.outcome.Dropped),
			logging.String("cached_stages", strings.Join(s.outcome.Cached, ",")),
		)
	} else {
		logging.ErrorWithContext(logger, "run failed", "run_failed",
			logging.String("status", string(s.run.Status)),
			logging.String(logging.FieldStage, s.run.Stage),
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, failureHint(runErr)),
			logging.String(logging.FieldImpact, "no subtitle file was written for this run"),
			logging.Alert(string(s.run.Status)),
		)
	}

	p.notify(persistCtx, logger, s)

	if err := s.closeLog(); err != nil {
		p.logger.Debug("close run log", logging.Error(err))
	}
	if err := s.lock.Unlock(); err != nil {
		p.logger.Warn("failed to release workspace lock", logging.Error(err))
	}
	return s.outcome, runErr
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, s *session) {
	input := s.run.VideoPath
	if input == "" {
		input = s.run.ScriptPath
	}
	reason := s.run.ReviewReason
	if reason == "" {
		reason = s.run.ErrorMessage
	}
	err := p.notifier.NotifyRunFinished(ctx, notifications.RunSummary{
		RunID:   s.run.ID,
		Status:  string(s.run.Status),
		Input:   input,
		Output:  s.outcome.OutputPath,
		Events:  s.outcome.Events,
		Dropped: s.outcome.Dropped,
		Reason:  reason,
	})
	if err != nil {
		logger.Warn("run notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldImpact, "the run outcome is only in the ledger and logs"),
		)
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrStructuredParse):
		return "inspect the retained oracle response, then rerun with 'scriptsync reparse'"
	case errors.Is(err, services.ErrOracle):
		return "check oracle credentials, model names, and provider status"
	case errors.Is(err, services.ErrValidation):
		return "check the input files"
	case errors.Is(err, services.ErrConfiguration):
		return "run 'scriptsync doctor' and review the config file"
	case errors.Is(err, services.ErrExternalTool):
		return "check that ffmpeg, uvx, and pdftoppm run on their own"
	default:
		return "see the run log for details"
	}
}

// stage runs fn with stage context, ledger bookkeeping and start/finish logs.
func (p *Pipeline) stage(ctx context.Context, s *session, name string, fn func(context.Context, *slog.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stageCtx := services.WithStage(ctx, name)
	s.run.Stage = name
	if err := p.store.SetStage(ctx, s.run.ID, name); err != nil {
		p.logger.Warn("failed to record stage", logging.String(logging.FieldStage, name), logging.Error(err))
	}
	logger := logging.WithContext(stageCtx, s.logger)
	started := time.Now()
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	if err := fn(stageCtx, logger); err != nil {
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(started)),
	)
	return nil
}

func (p *Pipeline) subtitleOptions() subtitles.Options {
	return subtitles.OptionsFromConfig(p.cfg.Subtitles)
}

// defaultOutput derives an output path next to source with a new suffix.
func defaultOutput(source, suffix string) string {
	ext := filepath.Ext(source)
	return strings.TrimSuffix(source, ext) + suffix
}

func (p *Pipeline) defaultSubtitlePath(source string) string {
	format, err := subtitles.ResolveFormat("", subtitles.Format(p.cfg.Subtitles.Format))
	if err != nil {
		format = subtitles.FormatASS
	}
	return defaultOutput(source, format.Extension())
}
