package browser

import (
	"context"
	"fmt"

	"archivescraper/pkg/models"
)

// WalkSequential follows "Next" links through the listing in a single tab, starting
// at page 0. Pages in completed are clicked through without extraction. The walk
// stops at maxPages, on the block page, on the last page, or when ctx is done.
// onResult is called for each extracted page in order.
func (f *Fetcher) WalkSequential(ctx context.Context, baseURL string, maxPages int, completed models.PageSet, onResult func(models.PageOutcome)) error {
	tab, err := f.session.NewTab(ctx)
	if err != nil {
		return fmt.Errorf("failed to open tab: %w", err)
	}
	defer tab.Close()

	navCtx, cancel := context.WithTimeout(ctx, f.opts.NavigationTimeout)
	err = tab.Navigate(navCtx, baseURL)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open first page: %w", err)
	}
	f.verifier.Handle(ctx, tab)

	for current := 0; current < maxPages; current++ {
		if ctx.Err() != nil {
			return nil
		}

		if completed.Has(current) {
			if n, _ := tab.Count(ctx, NextLinkSelector); n > 0 {
				_ = tab.ClickAndWait(ctx, NextLinkSelector, f.opts.ClickThroughTimeout)
			}
			continue
		}

		if title, err := tab.Title(ctx); err == nil && IsAccessDenied(title) {
			f.logger.WarnWithFields("Access denied, stopping sequential walk", map[string]interface{}{"page": current})
			return nil
		}

		links, err := f.extract(ctx, tab, models.PageURL(baseURL, current), current)
		if err != nil {
			links = []models.MediaLink{}
		}
		onResult(models.Success(current, links))

		n, err := tab.Count(ctx, NextLinkSelector)
		if err != nil || n == 0 {
			f.logger.InfoWithFields("No Next link, reached last page", map[string]interface{}{"page": current})
			return nil
		}
		_ = tab.ClickAndWait(ctx, NextLinkSelector, f.opts.ClickThroughTimeout)
		f.verifier.AgeGate(ctx, tab)
	}
	return nil
}
