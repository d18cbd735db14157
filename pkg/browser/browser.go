// Package browser drives the archive through a shared headless Chrome session.
//
// A Session owns one browser whose cookies and challenge state are shared by every
// Tab it opens. The Fetcher loads one listing page per tab, dismisses the robot
// check and age gate, and extracts media links from the rendered HTML.
package browser

import (
	"context"
	"strings"
	"time"
)

// Selectors used on archive pages
const (
	RobotButtonSelector = `input[type="button"][value="I am not a robot"]`
	AgeButtonSelector   = `#age-button-yes`
	NextLinkSelector    = `//a[contains(normalize-space(.), "Next")]`
)

// Session is one stateful browser shared by all fetches of a run
type Session interface {
	NewTab(ctx context.Context) (Tab, error)
	Close() error
}

// Tab is a single page within a Session. Selectors starting with "//" are XPath,
// everything else is CSS.
type Tab interface {
	// Navigate returns once the navigation has committed
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Count(ctx context.Context, selector string) (int, error)
	Click(ctx context.Context, selector string) error
	// ClickAndWait clicks and then waits up to timeout for the resulting navigation to commit
	ClickAndWait(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// IsAccessDenied reports whether a page title is the archive's block page
func IsAccessDenied(title string) bool {
	return strings.Contains(strings.ToLower(title), "access denied")
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "//")
}
