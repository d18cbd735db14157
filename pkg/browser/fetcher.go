package browser

import (
	"context"
	"time"

	"archivescraper/pkg/config"
	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
)

// FetcherOptions configures page fetching
type FetcherOptions struct {
	NavigationTimeout   time.Duration
	ClickThroughTimeout time.Duration
	Origin              string
	Extensions          []string
	// Debug logs per-phase timings for every fetch
	Debug bool
}

// OptionsFromConfig builds FetcherOptions from loaded configuration
func OptionsFromConfig(cfg *config.Config, debug bool) FetcherOptions {
	return FetcherOptions{
		NavigationTimeout:   cfg.Browser.NavigationTimeout,
		ClickThroughTimeout: cfg.Browser.ClickThroughTimeout,
		Origin:              cfg.Scrape.Origin,
		Extensions:          cfg.Scrape.LinkExtensions,
		Debug:               debug,
	}
}

// Fetcher loads listing pages from a Session
type Fetcher struct {
	session  Session
	verifier *Verifier
	opts     FetcherOptions
	logger   logger.Logger
}

// NewFetcher creates a fetcher
func NewFetcher(session Session, verifier *Verifier, opts FetcherOptions, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 15 * time.Second
	}
	if opts.ClickThroughTimeout <= 0 {
		opts.ClickThroughTimeout = 10 * time.Second
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".mp4"}
	}
	return &Fetcher{session: session, verifier: verifier, opts: opts, logger: log}
}

// phaseTimer records how long each fetch phase took
type phaseTimer struct {
	last    time.Time
	timings map[string]time.Duration
}

func newPhaseTimer() *phaseTimer {
	return &phaseTimer{last: time.Now(), timings: make(map[string]time.Duration)}
}

func (p *phaseTimer) mark(phase string) {
	now := time.Now()
	p.timings[phase] = now.Sub(p.last)
	p.last = now
}

// Fetch loads one listing page in its own tab and extracts its media links.
// It never returns an error: every failure is reported as a Failure outcome,
// and the tab is closed on every path.
func (f *Fetcher) Fetch(ctx context.Context, baseURL string, page int) (outcome models.PageOutcome) {
	start := time.Now()
	timer := newPhaseTimer()
	defer func() {
		outcome.Duration = time.Since(start)
		if f.opts.Debug {
			logger.LogFetchTimings(f.logger, page, timer.timings)
		}
	}()

	tab, err := f.session.NewTab(ctx)
	timer.mark("newTab")
	if err != nil {
		return models.Failure(page, errs.Reason(errs.NewPageError(errs.ErrorTypeNavigation, page, err)))
	}
	defer func() {
		if err := tab.Close(); err != nil {
			f.logger.WithError(err).DebugWithFields("Failed to close tab", map[string]interface{}{"page": page})
		}
		timer.mark("close")
	}()

	pageURL := models.PageURL(baseURL, page)

	navCtx, cancel := context.WithTimeout(ctx, f.opts.NavigationTimeout)
	err = tab.Navigate(navCtx, pageURL)
	cancel()
	timer.mark("goto")
	if err != nil {
		return models.Failure(page, errs.Reason(errs.NewPageError(errs.ErrorTypeNavigation, page, err)))
	}

	f.verifier.Handle(ctx, tab)
	timer.mark("verify")

	if title, err := tab.Title(ctx); err == nil && IsAccessDenied(title) {
		timer.mark("accessCheck")
		return models.Failure(page, errs.Reason(errs.ErrAccessDenied))
	}
	timer.mark("accessCheck")

	links, err := f.extract(ctx, tab, pageURL, page)
	timer.mark("extract")
	if err != nil {
		return models.Failure(page, errs.Reason(errs.NewPageError(errs.ErrorTypeExtraction, page, err)))
	}

	return models.Success(page, links)
}

func (f *Fetcher) extract(ctx context.Context, tab Tab, pageURL string, page int) ([]models.MediaLink, error) {
	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractMediaLinks(html, f.opts.Origin, f.opts.Extensions, pageURL, page)
}

// Warmup loads page 0 once so the session clears its challenges before parallel fetching
func (f *Fetcher) Warmup(ctx context.Context, baseURL string) error {
	tab, err := f.session.NewTab(ctx)
	if err != nil {
		return errs.New(errs.ErrorTypeNavigation, "warmup tab", err)
	}
	defer tab.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.opts.NavigationTimeout)
	defer cancel()
	if err := tab.Navigate(navCtx, models.PageURL(baseURL, 0)); err != nil {
		return errs.New(errs.ErrorTypeNavigation, "warmup navigation failed", err)
	}

	f.verifier.Handle(ctx, tab)

	title, err := tab.Title(ctx)
	if err != nil {
		return errs.New(errs.ErrorTypeNavigation, "warmup title", err)
	}
	if IsAccessDenied(title) {
		return errs.ErrAccessDenied
	}
	return nil
}
