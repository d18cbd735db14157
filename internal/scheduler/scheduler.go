// Package scheduler runs bounded concurrent page fetches with a staggered ramp-up
// and a consecutive-failure circuit breaker.
package scheduler

import (
	"context"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
	"archivescraper/pkg/models"
	"archivescraper/pkg/ratelimit"
)

// PageFetcher loads one listing page. It reports failures in the outcome, never as an error.
type PageFetcher interface {
	Fetch(ctx context.Context, baseURL string, page int) models.PageOutcome
}

// ResultFunc is called once per finished fetch with the running count of handled results
type ResultFunc func(outcome models.PageOutcome, done, total int)

// Options configures a Scheduler
type Options struct {
	Concurrency          int
	MaxConsecutiveErrors int
	// Stagger spaces the initial launches; nil means none
	Stagger   ratelimit.Limiter
	DatasetID int
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Result summarizes one Run
type Result struct {
	Outcomes []models.PageOutcome
	Launched int
	// CircuitBroken is set when the consecutive failure limit stopped new launches
	CircuitBroken bool
	// Interrupted is set when the caller's context stopped new launches
	Interrupted bool
}

// Scheduler drives a PageFetcher over a list of pages
type Scheduler struct {
	fetcher PageFetcher
	opts    Options
	logger  logger.Logger
}

// New creates a scheduler. State lives in each Run, so a Scheduler may be reused.
func New(fetcher PageFetcher, opts Options) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxConsecutiveErrors <= 0 {
		opts.MaxConsecutiveErrors = 15
	}
	if opts.Stagger == nil {
		opts.Stagger = ratelimit.Unlimited{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Scheduler{fetcher: fetcher, opts: opts, logger: opts.Logger}
}

// run holds the state of a single Run
type run struct {
	s        *Scheduler
	baseURL  string
	pages    []int
	next     int
	inFlight int
	handled  int
	// consecutive failures since the last success
	consecutive int
	results     chan models.PageOutcome
	fetchCtx    context.Context
	result      Result
}

// Run fetches pages with at most Concurrency fetches in flight and calls onResult for
// each outcome in completion order, one call at a time. Once MaxConsecutiveErrors
// failures arrive in a row, or ctx is done, no new fetches start; fetches already in
// flight always run to completion and are reported.
func (s *Scheduler) Run(ctx context.Context, baseURL string, pages []int, onResult ResultFunc) Result {
	r := &run{
		s:       s,
		baseURL: baseURL,
		pages:   pages,
		results: make(chan models.PageOutcome, s.opts.Concurrency),
		// in-flight fetches are never interrupted by the caller
		fetchCtx: context.WithoutCancel(ctx),
		result:   Result{Outcomes: make([]models.PageOutcome, 0, len(pages))},
	}

	logger.LogComponentStart(s.logger, "scheduler", map[string]interface{}{
		"dataset":     s.opts.DatasetID,
		"pages":       len(pages),
		"concurrency": s.opts.Concurrency,
	})

	s.opts.Stagger.Reset()
	ramp := min(s.opts.Concurrency, len(pages))
	for i := 0; i < ramp; i++ {
		if err := s.opts.Stagger.Wait(ctx); err != nil {
			r.result.Interrupted = true
			break
		}
		r.launch()
	}

	for r.inFlight > 0 {
		outcome := <-r.results
		r.inFlight--
		r.handle(outcome, onResult)

		if ctx.Err() != nil {
			r.result.Interrupted = true
		}
		r.fill()
	}

	reason := "completed"
	switch {
	case r.result.CircuitBroken:
		reason = "circuit broken"
		s.opts.Metrics.IncCircuitBreaks(s.opts.DatasetID)
	case r.result.Interrupted:
		reason = "interrupted"
	}
	logger.LogComponentStop(s.logger, "scheduler", reason)

	return r.result
}

// canLaunch reports whether another page may start
func (r *run) canLaunch() bool {
	return r.next < len(r.pages) &&
		r.inFlight < r.s.opts.Concurrency &&
		!r.result.CircuitBroken &&
		!r.result.Interrupted
}

func (r *run) fill() {
	for r.canLaunch() {
		r.launch()
	}
}

func (r *run) launch() {
	if !r.canLaunch() {
		return
	}
	page := r.pages[r.next]
	r.next++
	r.inFlight++
	r.result.Launched++

	r.s.opts.Metrics.FetchStarted()
	go func() {
		outcome := r.s.fetcher.Fetch(r.fetchCtx, r.baseURL, page)
		r.s.opts.Metrics.FetchFinished()
		r.results <- outcome
	}()
}

func (r *run) handle(outcome models.PageOutcome, onResult ResultFunc) {
	r.handled++
	r.result.Outcomes = append(r.result.Outcomes, outcome)
	r.s.opts.Metrics.ObserveFetch(r.s.opts.DatasetID, outcome.OK(), len(outcome.Links), outcome.Duration)

	if outcome.OK() {
		r.consecutive = 0
	} else {
		r.consecutive++
		if r.consecutive >= r.s.opts.MaxConsecutiveErrors && !r.result.CircuitBroken {
			r.result.CircuitBroken = true
			r.s.logger.WarnWithFields("Too many consecutive failures, stopping new fetches", map[string]interface{}{
				"dataset":     r.s.opts.DatasetID,
				"consecutive": r.consecutive,
				"in_flight":   r.inFlight,
			})
		}
	}

	if onResult != nil {
		onResult(outcome, r.handled, len(r.pages))
	}
}
