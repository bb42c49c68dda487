package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"scriptsync/internal/config"
	"scriptsync/internal/extraction"
	"scriptsync/internal/logging"
	"scriptsync/internal/notifications"
	"scriptsync/internal/reconcile"
	"scriptsync/internal/runstore"
	"scriptsync/internal/services"
	"scriptsync/internal/services/pdfpages"
	"scriptsync/internal/services/whisperx"
	"scriptsync/internal/testsupport"
	"scriptsync/internal/transcript"
)

const delimitedReply = "10.0; 12.5; NARUTO; お前は誰だ\n13.0; 14.0; SASUKE; 知らない\nnot a record"

type fakeTranscriber struct {
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, video, workDir, language string) (whisperx.Result, error) {
	f.calls++
	return whisperx.Result{Segments: []transcript.Segment{
		{ID: 0, Start: 10.004, End: 12.5, Text: "お前は誰だ"},
		{ID: 1, Start: 13.0, End: 14.0, Text: "知らない"},
	}}, nil
}

type fakeRenderer struct {
	calls int
	pages []string
}

func (f *fakeRenderer) Render(_ context.Context, document, outDir string, opts pdfpages.Options) ([]pdfpages.Page, error) {
	f.calls++
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	pages := make([]pdfpages.Page, len(f.pages))
	for i, content := range f.pages {
		path := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i+1))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
		pages[i] = pdfpages.Page{Index: i, Path: path}
	}
	return pages, nil
}

type fakeExtractor struct{}

var pageTexts = map[string]string{
	"p1": "NARUTO : お前は誰だ",
	"p2": "NARUTO : お前は誰だ\nSASUKE : 知らない",
	"p3": "",
}

func (fakeExtractor) Name() string { return "fake" }

func (fakeExtractor) ExtractPage(_ context.Context, image []byte) (extraction.PageText, error) {
	return extraction.PageText{Text: pageTexts[string(image)]}, nil
}

type scriptedOracle struct {
	mu      sync.Mutex
	replies []error
	text    string
	models  []string
}

func (o *scriptedOracle) Generate(_ context.Context, req reconcile.OracleRequest) (reconcile.OracleResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.models = append(o.models, req.Model)
	if n := len(o.models) - 1; n < len(o.replies) && o.replies[n] != nil {
		return reconcile.OracleResponse{}, o.replies[n]
	}
	return reconcile.OracleResponse{
		Text:  o.text,
		Model: req.Model,
		Usage: reconcile.Usage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120},
	}, nil
}

type recordingNotifier struct {
	summaries []notifications.RunSummary
}

func (n *recordingNotifier) NotifyRunFinished(_ context.Context, s notifications.RunSummary) error {
	n.summaries = append(n.summaries, s)
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

type harness struct {
	cfg         *config.Config
	store       *runstore.Store
	pipeline    *Pipeline
	transcriber *fakeTranscriber
	renderer    *fakeRenderer
	oracle      *scriptedOracle
	notifier    *recordingNotifier
	video       string
	script      string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Reference.RequestsPerMinute = 0
	store := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		cfg:         cfg,
		store:       store,
		transcriber: &fakeTranscriber{},
		renderer:    &fakeRenderer{pages: []string{"p1", "p2", "p3"}},
		oracle:      &scriptedOracle{text: delimitedReply},
		notifier:    &recordingNotifier{},
	}
	base := testsupport.BaseDir(cfg)
	h.video = filepath.Join(base, "inputs", "episode01.mkv")
	h.script = filepath.Join(base, "inputs", "episode01.pdf")
	testsupport.WriteFile(t, h.video, 64)
	testsupport.WriteText(t, h.script, "%PDF-1.4 script")

	h.pipeline = New(cfg, store, logging.NewNop(),
		WithTranscriber(h.transcriber),
		WithPageRenderer(h.renderer),
		WithExtractorFactory(func(context.Context, *config.Config) (extraction.PageExtractor, func() error, error) {
			return fakeExtractor{}, func() error { return nil }, nil
		}),
		WithOracleFactory(func(context.Context, *config.Config) (reconcile.Oracle, error) {
			return h.oracle, nil
		}),
		WithNotifier(h.notifier),
	)
	return h
}

func (h *harness) output(name string) string {
	return filepath.Join(testsupport.BaseDir(h.cfg), "out", name)
}

func TestRunWritesSubtitlesAndRecordsLedger(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	outcome, err := h.pipeline.Run(ctx, Request{Video: h.video, Script: h.script, Output: h.output("episode01.ass")})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Status != runstore.StatusCompleted || outcome.Events != 2 || outcome.Dropped != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	data, err := os.ReadFile(outcome.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "Dialogue: 0,0:00:10.00,0:00:12.50,Default,NARUTO,0,0,0,,お前は誰だ") {
		t.Fatalf("unexpected subtitle content:\n%s", data)
	}

	reference, err := os.ReadFile(outcome.ReferencePath)
	if err != nil {
		t.Fatalf("read reference artifact: %v", err)
	}
	if string(reference) != "NARUTO : お前は誰だ\n\nSASUKE : 知らない\n" {
		t.Fatalf("unexpected reference %q", reference)
	}
	if raw, err := os.ReadFile(outcome.RawPath); err != nil || string(raw) != delimitedReply {
		t.Fatalf("expected raw response retained, got %q (%v)", raw, err)
	}
	if _, err := os.Stat(outcome.LogPath); err != nil {
		t.Fatalf("expected run log: %v", err)
	}

	run, err := h.store.GetRun(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != runstore.StatusCompleted || run.Model != "primary-model" || run.FellBack {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.EventCount != 2 || run.DroppedCount != 1 || run.Stage != StageWrite {
		t.Fatalf("unexpected run counters %+v", run)
	}
	usage, err := h.store.Usage(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if usage.Calls != 1 || usage.TotalTokens != 120 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	want := notifications.RunSummary{RunID: outcome.RunID, Status: "completed", Input: h.video, Output: outcome.OutputPath, Events: 2, Dropped: 1}
	if len(h.notifier.summaries) != 1 || h.notifier.summaries[0] != want {
		t.Fatalf("unexpected notifications %+v", h.notifier.summaries)
	}
}

func TestRunReusesCompletionMarkers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := Request{Video: h.video, Script: h.script, Output: h.output("episode01.ass")}

	if _, err := h.pipeline.Run(ctx, req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := h.pipeline.Run(ctx, req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if h.transcriber.calls != 1 || h.renderer.calls != 1 {
		t.Fatalf("expected cached stages, transcriber=%d renderer=%d", h.transcriber.calls, h.renderer.calls)
	}
	if strings.Join(second.Cached, ",") != "transcribe,extract" {
		t.Fatalf("unexpected cached stages %v", second.Cached)
	}
	if len(h.oracle.models) != 2 {
		t.Fatalf("expected the oracle to run every time, got %d calls", len(h.oracle.models))
	}

	req.Force = true
	forced, err := h.pipeline.Run(ctx, req)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if h.transcriber.calls != 2 || h.renderer.calls != 2 || len(forced.Cached) != 0 {
		t.Fatalf("expected force to bypass markers, transcriber=%d renderer=%d cached=%v",
			h.transcriber.calls, h.renderer.calls, forced.Cached)
	}
}

func TestStaleMarkerIsRecomputed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.pipeline.Transcribe(ctx, Request{Video: h.video})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if first.OutputPath != strings.TrimSuffix(h.video, ".mkv")+".transcript.json" {
		t.Fatalf("unexpected default output %q", first.OutputPath)
	}
	if err := os.Remove(first.TranscriptPath); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	second, err := h.pipeline.Transcribe(ctx, Request{Video: h.video})
	if err != nil {
		t.Fatalf("second Transcribe: %v", err)
	}
	if h.transcriber.calls != 2 || len(second.Cached) != 0 {
		t.Fatalf("expected recompute, calls=%d cached=%v", h.transcriber.calls, second.Cached)
	}
	segments, err := loadTranscript(second.OutputPath)
	if err != nil || len(segments) != 2 {
		t.Fatalf("expected published transcript, got %d segments (%v)", len(segments), err)
	}
}

func TestStructuredParseFailureIsRetainedForReview(t *testing.T) {
	h := newHarness(t, testsupport.WithResponseFormat(config.ResponseStructured))
	h.oracle.text = `{"events": [{"start": 1, "end": 2, "speaker": "A", "text": "x"}`
	ctx := context.Background()

	outcome, err := h.pipeline.Run(ctx, Request{Video: h.video, Script: h.script, Output: h.output("episode01.ass")})
	if !errors.Is(err, services.ErrStructuredParse) {
		t.Fatalf("expected structured parse error, got %v", err)
	}
	if outcome.Status != runstore.StatusReview {
		t.Fatalf("expected review status, got %s", outcome.Status)
	}
	reviewPath := filepath.Join(h.cfg.Paths.ReviewDir, outcome.RunID+"-oracle-response.txt")
	if data, err := os.ReadFile(reviewPath); err != nil || string(data) != h.oracle.text {
		t.Fatalf("expected raw response in review dir, got %q (%v)", data, err)
	}
	run, err := h.store.GetRun(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != runstore.StatusReview || !strings.Contains(run.ReviewReason, reviewPath) {
		t.Fatalf("unexpected run %+v", run)
	}
	if _, err := os.Stat(h.output("episode01.ass")); !os.IsNotExist(err) {
		t.Fatalf("expected no subtitle output, stat err=%v", err)
	}
	if len(h.notifier.summaries) != 1 {
		t.Fatalf("expected one notification, got %d", len(h.notifier.summaries))
	}
	if got := h.notifier.summaries[0]; got.Status != "review" || got.Input != h.video || !strings.Contains(got.Reason, reviewPath) {
		t.Fatalf("unexpected notification %+v", got)
	}
}

func TestOracleExhaustionFailsRun(t *testing.T) {
	h := newHarness(t)
	h.oracle.replies = []error{errors.New("503 from provider"), errors.New("timeout")}
	ctx := context.Background()

	outcome, err := h.pipeline.Run(ctx, Request{Video: h.video, Script: h.script})
	if !errors.Is(err, services.ErrOracle) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	if outcome.Status != runstore.StatusFailed {
		t.Fatalf("expected failed status, got %s", outcome.Status)
	}
	if strings.Join(h.oracle.models, ",") != "primary-model,fallback-model" {
		t.Fatalf("unexpected invocation sequence %v", h.oracle.models)
	}
	calls, err := h.store.OracleCalls(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("OracleCalls: %v", err)
	}
	if len(calls) != 2 || calls[0].Succeeded || calls[1].Succeeded || calls[1].ErrorMessage != "timeout" {
		t.Fatalf("unexpected oracle calls %+v", calls)
	}
	run, err := h.store.GetRun(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Stage != StageAlign || run.ErrorMessage == "" {
		t.Fatalf("expected failure recorded at align stage, got %+v", run)
	}
}

func TestFallbackSuccessIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.oracle.replies = []error{errors.New("rate limited")}

	outcome, err := h.pipeline.Run(context.Background(), Request{Video: h.video, Script: h.script})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !outcome.FellBack || outcome.Model != "fallback-model" {
		t.Fatalf("expected fallback model to serve, got %+v", outcome)
	}
	if outcome.OutputPath != strings.TrimSuffix(h.video, ".mkv")+".ass" {
		t.Fatalf("unexpected default output %q", outcome.OutputPath)
	}
}

func TestWorkspaceLockRejectsConcurrentRun(t *testing.T) {
	h := newHarness(t)
	if err := os.MkdirAll(h.cfg.Paths.WorkDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	lock := flock.New(filepath.Join(h.cfg.Paths.WorkDir, lockFileName))
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("acquire test lock: %v", err)
	}
	defer lock.Unlock()

	if _, err := h.pipeline.Run(context.Background(), Request{Video: h.video, Script: h.script}); !errors.Is(err, ErrWorkspaceBusy) {
		t.Fatalf("expected ErrWorkspaceBusy, got %v", err)
	}
	if h.transcriber.calls != 0 {
		t.Fatal("expected no stage to run without the lock")
	}
}

func TestBeginFailsStaleRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stale := testsupport.NewRun(t, h.store, h.video, h.script)

	if _, err := h.pipeline.Extract(ctx, Request{Script: h.script}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	run, err := h.store.GetRun(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != runstore.StatusFailed {
		t.Fatalf("expected stale run failed, got %s", run.Status)
	}
}

func TestExtractPublishesReference(t *testing.T) {
	h := newHarness(t)
	outcome, err := h.pipeline.Extract(context.Background(), Request{Script: h.script, Output: h.output("reference.txt")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := os.ReadFile(h.output("reference.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "NARUTO : お前は誰だ\n\nSASUKE : 知らない\n" || outcome.Pages != 3 {
		t.Fatalf("unexpected reference %q pages=%d", data, outcome.Pages)
	}
}

func TestExtractWithoutDialogueNeedsReview(t *testing.T) {
	h := newHarness(t)
	h.renderer.pages = []string{"p3"}

	outcome, err := h.pipeline.Extract(context.Background(), Request{Script: h.script})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if outcome.Status != runstore.StatusReview {
		t.Fatalf("expected review status, got %s", outcome.Status)
	}
}

func TestAlignUsesSuppliedInputs(t *testing.T) {
	h := newHarness(t)
	base := testsupport.BaseDir(h.cfg)
	transcriptPath := filepath.Join(base, "inputs", "whisper.json")
	referencePath := filepath.Join(base, "inputs", "reference.txt")
	testsupport.WriteText(t, transcriptPath, `{"segments":[{"start":10.0,"end":12.5,"text":"お前は誰だ"},{"start":13.0,"end":14.0,"text":"知らない"}]}`)
	testsupport.WriteText(t, referencePath, "NARUTO : お前は誰だ\nSASUKE : 知らない\n")

	outcome, err := h.pipeline.Align(context.Background(), Request{
		TranscriptPath: transcriptPath,
		ReferencePath:  referencePath,
		Output:         h.output("aligned.srt"),
	})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if outcome.Events != 2 || outcome.Segments != 2 || h.transcriber.calls != 0 || h.renderer.calls != 0 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	data, err := os.ReadFile(outcome.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "NARUTO: お前は誰だ") {
		t.Fatalf("expected speaker-prefixed srt, got:\n%s", data)
	}
}

func TestAlignRejectsMalformedTranscript(t *testing.T) {
	h := newHarness(t)
	base := testsupport.BaseDir(h.cfg)
	transcriptPath := filepath.Join(base, "inputs", "whisper.json")
	referencePath := filepath.Join(base, "inputs", "reference.txt")
	testsupport.WriteText(t, transcriptPath, `[{"id":0,"start":1.0,"text":"no end"}]`)
	testsupport.WriteText(t, referencePath, "A : line\n")

	outcome, err := h.pipeline.Align(context.Background(), Request{TranscriptPath: transcriptPath, ReferencePath: referencePath})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if outcome.Status != runstore.StatusReview || len(h.oracle.models) != 0 {
		t.Fatalf("expected review without oracle call, got %s and %d calls", outcome.Status, len(h.oracle.models))
	}
}

func TestReparseWithoutOracle(t *testing.T) {
	h := newHarness(t)
	base := testsupport.BaseDir(h.cfg)
	rawPath := filepath.Join(base, "inputs", "oracle-response.txt")
	testsupport.WriteText(t, rawPath, "```json\n[{\"start\":1,\"end\":2,\"speaker\":\"A\",\"text\":\"one\"},{\"start\":2,\"end\":1,\"speaker\":\"B\",\"text\":\"bad\"}]\n```")

	outcome, err := h.pipeline.Reparse(context.Background(), rawPath, "structured", h.output("fixed.srt"))
	if err != nil {
		t.Fatalf("Reparse: %v", err)
	}
	if outcome.Events != 1 || outcome.Dropped != 1 || len(h.oracle.models) != 0 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	if _, err := h.pipeline.Reparse(context.Background(), rawPath, "yaml", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown format, got %v", err)
	}
}

func TestRunRequiresInputs(t *testing.T) {
	h := newHarness(t)
	if _, err := h.pipeline.Run(context.Background(), Request{Script: h.script}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.pipeline.Run(context.Background(), Request{Video: h.video + ".missing", Script: h.script}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
