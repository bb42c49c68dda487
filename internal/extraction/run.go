package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"scriptsync/internal/logging"
	"scriptsync/internal/reference"
	"scriptsync/internal/services"
	"scriptsync/internal/services/pdfpages"
)

const (
	defaultConcurrency = 4
	defaultAttempts    = 3
	defaultRetryDelay  = time.Second
)

// Options controls the extraction run.
type Options struct {
	Concurrency       int
	RequestsPerMinute int
	// Attempts per page before the page is given up as empty.
	Attempts   int
	RetryDelay time.Duration
	Collector  reference.Options
	// OnProgress receives the reference text folded so far each time the
	// in-order prefix grows.
	OnProgress func(text string)
}

// Result is the folded reference text plus accounting.
type Result struct {
	Reference   string
	Stats       reference.Stats
	Usage       Usage
	FailedPages []int
}

// AverageTokens is the mean total tokens per extracted page.
func (r Result) AverageTokens() float64 {
	pages := r.Stats.Pages - len(r.FailedPages)
	if pages <= 0 {
		return 0
	}
	return float64(r.Usage.TotalTokens) / float64(pages)
}

// Runner drives a PageExtractor over rendered pages.
type Runner struct {
	extractor PageExtractor
	opts      Options
	logger    *slog.Logger
	sleeper   func(context.Context, time.Duration) error
}

// NewRunner builds a runner with defaults filled in.
func NewRunner(extractor PageExtractor, opts Options, logger *slog.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Runner{
		extractor: extractor,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "extraction"),
		sleeper:   sleepContext,
	}
}

type pageOutcome struct {
	done   bool
	text   string
	usage  Usage
	failed bool
}

// Run extracts every page and folds the results in page order.
func (r *Runner) Run(ctx context.Context, pages []pdfpages.Page) (Result, error) {
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("page extraction started",
		logging.String(logging.FieldEventType, "extraction_start"),
		logging.String("extractor", r.extractor.Name()),
		logging.Int("pages", len(pages)),
		logging.Int("concurrency", r.opts.Concurrency),
		logging.Int("requests_per_minute", r.opts.RequestsPerMinute),
	)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(r.opts.RequestsPerMinute)/60.0), 1)
	}

	var (
		mu        sync.Mutex
		outcomes  = make([]pageOutcome, len(pages))
		next      int
		completed int
		collector = reference.NewCollector(r.opts.Collector)
		result    Result
		sampler   = logging.NewProgressSampler(10)
	)

	// fold advances the in-order prefix. Callers hold mu.
	fold := func() {
		advanced := false
		for next < len(outcomes) && outcomes[next].done {
			o := outcomes[next]
			collector.Add(reference.Page{Index: pages[next].Index, Text: o.text})
			result.Usage = result.Usage.add(o.usage)
			if o.failed {
				result.FailedPages = append(result.FailedPages, pages[next].Index)
			}
			next++
			advanced = true
		}
		if advanced && r.opts.OnProgress != nil {
			r.opts.OnProgress(collector.Text())
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, page := range pages {
		g.Go(func() error {
			outcome, err := r.extractPage(gctx, limiter, page)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			outcomes[i] = outcome
			completed++
			if sampler.ShouldLog(completed, len(pages)) {
				logger.Info("page extraction progress",
					logging.String(logging.FieldEventType, "extraction_progress"),
					logging.Int("done", completed),
					logging.Int("total", len(pages)),
				)
			}
			fold()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result.Reference = collector.Text()
	result.Stats = collector.Stats()
	logger.Info("page extraction finished",
		logging.String(logging.FieldEventType, "extraction_complete"),
		logging.Int("pages", result.Stats.Pages),
		logging.Int("empty_pages", result.Stats.EmptyPages),
		logging.Int("failed_pages", len(result.FailedPages)),
		logging.Int("lines", result.Stats.LinesKept),
		logging.Int("duplicates_dropped", result.Stats.DuplicatesDropped),
		logging.Int("total_tokens", result.Usage.TotalTokens),
		logging.Float64("avg_tokens_per_page", result.AverageTokens()),
	)
	return result, nil
}

// extractPage returns an error only for cancellation or unreadable input;
// extractor failures degrade to an empty page.
func (r *Runner) extractPage(ctx context.Context, limiter *rate.Limiter, page pdfpages.Page) (pageOutcome, error) {
	image, err := os.ReadFile(page.Path)
	if err != nil {
		return pageOutcome{}, services.Wrap(services.ErrNotFound, "extract", "read page", fmt.Sprintf("page %d", page.Index+1), err)
	}

	var lastErr error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return pageOutcome{}, fmt.Errorf("rate limiter: %w", err)
		}
		text, err := r.extractor.ExtractPage(ctx, image)
		if err == nil {
			r.logger.Debug("page extracted",
				logging.Int("page", page.Index+1),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int("chars", len([]rune(text.Text))),
				logging.Int("total_tokens", text.Usage.TotalTokens),
			)
			return pageOutcome{done: true, text: text.Text, usage: text.Usage}, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return pageOutcome{}, ctx.Err()
		}
		lastErr = err
		if attempt < r.opts.Attempts {
			r.logger.Debug("page extraction failed, retrying",
				logging.Int("page", page.Index+1),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Error(err),
			)
			if err := r.sleeper(ctx, r.opts.RetryDelay*time.Duration(attempt)); err != nil {
				return pageOutcome{}, err
			}
		}
	}

	logging.WarnWithContext(r.logger, "page extraction failed",
		"extraction_page_failed",
		logging.Int("page", page.Index+1),
		logging.Int("attempts", r.opts.Attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "check extractor credentials or rerun extract for this script"),
		logging.String(logging.FieldImpact, "page contributes no reference lines"),
	)
	return pageOutcome{done: true, failed: true}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
