// Package crawler orchestrates a resumable scrape of one or more datasets.
//
// A run warms up the browser session, loads stored progress, plans the pages still
// to fetch, drives them through the scheduler (or the sequential walker), folds each
// result into progress on a single goroutine, checkpoints periodically, and finally
// saves progress and the exported result. Page failures are data; only storage and
// export failures are returned as errors.
package crawler

import (
	"context"
	"fmt"
	"time"

	"archivescraper/internal/scheduler"
	"archivescraper/pkg/browser"
	"archivescraper/pkg/checkpoint"
	"archivescraper/pkg/config"
	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/export"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
	"archivescraper/pkg/models"
	"archivescraper/pkg/ratelimit"
	"archivescraper/pkg/retry"
	"archivescraper/pkg/ui"
)

const maxReportedGaps = 5

// Fetcher is the page source a Crawler drives
type Fetcher interface {
	scheduler.PageFetcher
	Warmup(ctx context.Context, baseURL string) error
	WalkSequential(ctx context.Context, baseURL string, maxPages int, completed models.PageSet, onResult func(models.PageOutcome)) error
}

var _ Fetcher = (*browser.Fetcher)(nil)

// Publisher receives every saved result
type Publisher interface {
	Publish(ctx context.Context, r *models.DatasetResult) (export.Stats, error)
}

// Options selects the behavior of one dataset run
type Options struct {
	// MaxPages caps the target page count; 0 means the dataset estimate
	MaxPages      int
	RetryFailed   bool
	ClearProgress bool
	Sequential    bool
}

// RunStats describes what one dataset run did
type RunStats struct {
	DatasetID      int
	Target         int
	Pending        int
	NewPages       int
	NewFailures    int
	Links          int
	Completed      int
	FailedPages    []int
	PagesPerSecond float64
	Duration       time.Duration
	CircuitBroken  bool
	Interrupted    bool
	Exported       *export.Stats
}

// Summary converts stats for the end-of-run display
func (s *RunStats) Summary() ui.DatasetSummary {
	return ui.DatasetSummary{
		DatasetID:      s.DatasetID,
		CompletedPages: s.Completed,
		TargetPages:    s.Target,
		Links:          s.Links,
		NewPages:       s.NewPages,
		NewFailures:    s.NewFailures,
		PagesPerSecond: s.PagesPerSecond,
		Duration:       s.Duration,
		FailedPages:    s.FailedPages,
		CircuitBroken:  s.CircuitBroken,
	}
}

// Crawler runs datasets against one Fetcher and Store
type Crawler struct {
	fetcher   Fetcher
	store     checkpoint.Store
	cfg       config.ScrapeConfig
	reporter  ui.Reporter
	publisher Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger
	retry     *retry.Config
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// Option customizes a Crawler
type Option func(*Crawler)

// WithReporter sets the progress reporter
func WithReporter(r ui.Reporter) Option {
	return func(c *Crawler) { c.reporter = r }
}

// WithPublisher exports every saved result
func WithPublisher(p Publisher) Option {
	return func(c *Crawler) { c.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// WithRetry sets the retry policy for final checkpoint and result writes
func WithRetry(cfg *retry.Config) Option {
	return func(c *Crawler) { c.retry = cfg }
}

// New creates a crawler
func New(fetcher Fetcher, store checkpoint.Store, cfg config.ScrapeConfig, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:  fetcher,
		store:    store,
		cfg:      cfg,
		reporter: ui.NopReporter{},
		logger:   logger.GetLogger(),
		sleep:    retry.Wait,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry == nil {
		c.retry = retry.DefaultConfig()
		c.retry.Logger = c.logger
	}
	return c
}

// RunDatasets runs each dataset in order and stops at the first storage or export
// error, or when ctx is done.
func (c *Crawler) RunDatasets(ctx context.Context, datasets []models.Dataset, opts Options) ([]*RunStats, error) {
	var all []*RunStats
	for _, ds := range datasets {
		if ctx.Err() != nil {
			break
		}
		_, stats, err := c.RunDataset(ctx, ds, opts)
		if stats != nil {
			all = append(all, stats)
		}
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// RunDataset scrapes one dataset and returns the saved result
func (c *Crawler) RunDataset(ctx context.Context, ds models.Dataset, opts Options) (*models.DatasetResult, *RunStats, error) {
	log := c.logger.WithField("dataset", ds.ID)
	start := c.now()
	// storage writes still happen after the caller cancels
	saveCtx := context.WithoutCancel(ctx)

	if opts.ClearProgress {
		if err := c.store.ClearProgress(saveCtx, ds.ID); err != nil {
			return nil, nil, errs.New(errs.ErrorTypeStorage, "clear progress", err)
		}
		log.Info("Progress cleared, starting fresh")
	}

	c.warmup(ctx, ds, log)

	progress, err := c.store.LoadProgress(saveCtx, ds.ID)
	if err != nil {
		return nil, nil, errs.New(errs.ErrorTypeStorage, "load progress", err)
	}

	target := ds.EstimatedPages
	if opts.MaxPages > 0 {
		target = min(opts.MaxPages, target)
	}
	if progress == nil {
		progress = models.NewDatasetProgress(ds.ID, target)
	}
	progress.TargetPageCount = target

	pending := progress.PendingPages(target)
	if opts.RetryFailed {
		pending = progress.RetryPages(target)
	}

	stats := &RunStats{DatasetID: ds.ID, Target: target, Pending: len(pending)}
	completedBefore := len(progress.CompletedPages)
	failedBefore := len(progress.FailedPages)

	log.InfoWithFields("Dataset planned", map[string]interface{}{
		"target":    target,
		"completed": completedBefore,
		"failed":    failedBefore,
		"pending":   len(pending),
		"retry":     opts.RetryFailed,
	})

	if len(pending) == 0 {
		c.reporter.Notice(fmt.Sprintf("Dataset %d: nothing to fetch", ds.ID))
		result, err := c.saveResult(saveCtx, progress, stats)
		c.finishStats(stats, progress, completedBefore, start, nil)
		return result, stats, err
	}

	if gaps := checkpoint.FindGaps(progress.CompletedPages.Sorted(), target); len(gaps) > 0 && len(gaps) <= maxReportedGaps {
		c.reporter.Notice(fmt.Sprintf("Missing ranges: %s", checkpoint.FormatRanges(gaps)))
	}

	c.reporter.StartDataset(ds.ID, len(pending), completedBefore, target)
	tracker := ui.NewStatusTracker()
	cp := checkpoint.NewCheckpointer(c.store, c.cfg.CheckpointInterval, log,
		checkpoint.WithMetrics(c.metrics), checkpoint.WithRetry(c.retry))

	fold := func(o models.PageOutcome, done, total int) {
		progress.Apply(o)
		tracker.Record(o.OK(), len(o.Links))
		c.reporter.PageDone(ui.PageUpdate{
			DatasetID: ds.ID,
			Outcome:   o,
			Done:      done,
			Total:     total,
			Completed: len(progress.CompletedPages),
			Target:    target,
			Links:     len(progress.Links),
		})
		cp.MaybeSave(progress)
	}

	if opts.Sequential {
		c.runSequential(ctx, ds, target, progress, fold, log)
	} else {
		res := scheduler.New(c.fetcher, scheduler.Options{
			Concurrency:          c.cfg.Concurrency,
			MaxConsecutiveErrors: c.cfg.MaxConsecutiveErrors,
			Stagger:              ratelimit.NewStagger(c.cfg.StaggerDelay),
			DatasetID:            ds.ID,
			Metrics:              c.metrics,
			Logger:               log,
		}).Run(ctx, ds.BaseURL, pending, fold)
		stats.CircuitBroken = res.CircuitBroken
		stats.Interrupted = res.Interrupted
		if res.CircuitBroken {
			broken := errs.New(errs.ErrorTypeCircuitBroken, "too many consecutive failures", nil)
			log.WithError(broken).Warn("Dataset run stopped early")
			c.reporter.Notice(fmt.Sprintf("Dataset %d stopped early: %s", ds.ID, broken))
		}
	}
	c.reporter.EndDataset()

	if err := cp.Flush(saveCtx, progress); err != nil {
		c.finishStats(stats, progress, completedBefore, start, tracker)
		return nil, stats, errs.New(errs.ErrorTypeStorage, "save progress", err)
	}

	result, err := c.saveResult(saveCtx, progress, stats)
	c.finishStats(stats, progress, completedBefore, start, tracker)
	return result, stats, err
}

func (c *Crawler) warmup(ctx context.Context, ds models.Dataset, log logger.Logger) {
	log.Debug("Warming up session")
	if err := c.fetcher.Warmup(ctx, ds.BaseURL); err != nil {
		log.WithError(err).Warn("Warmup failed, continuing")
		c.reporter.Notice(fmt.Sprintf("Warmup failed: %s", errs.Reason(err)))
	}
	_ = c.sleep(ctx, c.cfg.WarmupDelay)
}

func (c *Crawler) runSequential(ctx context.Context, ds models.Dataset, target int, progress *models.DatasetProgress, fold scheduler.ResultFunc, log logger.Logger) {
	remaining := len(progress.PendingPages(target))
	done := 0
	completed := progress.Clone().CompletedPages

	err := c.fetcher.WalkSequential(ctx, ds.BaseURL, target, completed, func(o models.PageOutcome) {
		done++
		c.metrics.ObserveFetch(ds.ID, o.OK(), len(o.Links), o.Duration)
		fold(o, done, remaining)
	})
	if err != nil {
		log.WithError(err).Warn("Sequential walk stopped")
	}
}

func (c *Crawler) saveResult(ctx context.Context, progress *models.DatasetProgress, stats *RunStats) (*models.DatasetResult, error) {
	result := models.NewDatasetResult(progress, c.now().UTC())

	cfg := *c.retry
	cfg.Context = ctx
	if err := retry.Do(func() error { return c.store.SaveResult(ctx, result) }, &cfg); err != nil {
		return nil, errs.New(errs.ErrorTypeStorage, "save result", err)
	}

	if c.publisher != nil {
		exported, err := c.publisher.Publish(ctx, result)
		if err != nil {
			return result, err
		}
		stats.Exported = &exported
	}
	return result, nil
}

func (c *Crawler) finishStats(stats *RunStats, progress *models.DatasetProgress, completedBefore int, start time.Time, tracker *ui.StatusTracker) {
	stats.Duration = c.now().Sub(start)
	stats.Completed = len(progress.CompletedPages)
	stats.NewPages = stats.Completed - completedBefore
	stats.Links = len(progress.Links)
	stats.FailedPages = progress.FailedPages.Sorted()
	if tracker != nil {
		// every failed fetch of this run counts, including pages that were already failed
		_, stats.NewFailures, _ = tracker.Counts()
		stats.PagesPerSecond = tracker.PagesPerSecond()
	}

	c.logger.InfoWithFields("Dataset run finished", map[string]interface{}{
		"dataset":        stats.DatasetID,
		"new_pages":      stats.NewPages,
		"new_failures":   stats.NewFailures,
		"links":          stats.Links,
		"pages_per_sec":  stats.PagesPerSecond,
		"duration":       stats.Duration,
		"circuit_broken": stats.CircuitBroken,
	})
}
