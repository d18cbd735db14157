package browser

import (
	"context"
	"fmt"
	"time"

	"archivescraper/pkg/config"
	"archivescraper/pkg/logger"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const defaultOpTimeout = 30 * time.Second

// ChromeSession is a Session backed by chromedp
type ChromeSession struct {
	cfg         config.BrowserConfig
	logger      logger.Logger
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

// NewChromeSession launches Chrome and opens the browser-level target
func NewChromeSession(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) (*ChromeSession, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if cfg.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", cfg.Locale))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(func(format string, args ...interface{}) {
		log.Warn(fmt.Sprintf(format, args...))
	}))

	// the first Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.InfoWithFields("Browser session started", map[string]interface{}{
		"headless": cfg.Headless,
		"locale":   cfg.Locale,
		"timezone": cfg.Timezone,
	})

	return &ChromeSession{
		cfg:         cfg,
		logger:      log,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// NewTab opens a new target in the shared browser and applies viewport, locale and timezone
func (s *ChromeSession) NewTab(ctx context.Context) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(s.browserCtx)

	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight), 1, false),
	}
	if s.cfg.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(s.cfg.Locale))
	}
	if s.cfg.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(s.cfg.Timezone))
	}

	// run on the undecorated tab context so a cancelled caller never tears down the target
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	return &chromeTab{ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts the browser down
func (s *ChromeSession) Close() error {
	s.cancel()
	s.allocCancel()
	s.logger.Debug("Browser session closed")
	return nil
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, bounded by both the caller's ctx and a default timeout
func (t *chromeTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(t.ctx, defaultOpTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (t *chromeTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigation to %s failed: %s", url, res.ErrorText)
		}
		return nil
	}))
}

func (t *chromeTab) Title(ctx context.Context) (string, error) {
	var title string
	err := t.run(ctx, chromedp.Title(&title))
	return title, err
}

func (t *chromeTab) HTML(ctx context.Context) (string, error) {
	var html string
	err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (t *chromeTab) Count(ctx context.Context, selector string) (int, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if isXPath(selector) {
		opts = []chromedp.QueryOption{chromedp.BySearch, chromedp.AtLeast(0)}
	}
	if err := t.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (t *chromeTab) Click(ctx context.Context, selector string) error {
	by := chromedp.ByQuery
	if isXPath(selector) {
		by = chromedp.BySearch
	}
	return t.run(ctx, chromedp.Click(selector, by))
}

// ClickAndWait listens for the next main-frame navigation before clicking so a fast
// commit is never missed. It returns context.DeadlineExceeded when none arrives in time.
func (t *chromeTab) ClickAndWait(ctx context.Context, selector string, timeout time.Duration) error {
	committed := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(t.ctx)
	defer stopListening()

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventFrameNavigated); ok && e.Frame.ParentID == "" {
			select {
			case committed <- struct{}{}:
			default:
			}
		}
	})

	if err := t.Click(ctx, selector); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-committed:
		return nil
	case <-timer.C:
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the tab context, which closes the target
func (t *chromeTab) Close() error {
	t.cancel()
	return nil
}
