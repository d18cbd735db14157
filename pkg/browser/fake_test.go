package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"archivescraper/pkg/models"
)

type fakePage struct {
	title   string
	html    string
	robot   bool
	age     bool
	hasNext bool
}

// fakeSession serves canned pages keyed by URL and records tab lifecycle
type fakeSession struct {
	mu        sync.Mutex
	pages     map[string]*fakePage
	navErr    map[string]error
	newTabErr error
	htmlErr   error
	verified  bool
	opened    int
	closed    int
	clicks    []string
	visited   []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{pages: map[string]*fakePage{}, navErr: map[string]error{}}
}

func (s *fakeSession) NewTab(ctx context.Context) (Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.newTabErr != nil {
		return nil, s.newTabErr
	}
	s.opened++
	return &fakeTab{s: s}, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) counts() (opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed
}

type fakeTab struct {
	s   *fakeSession
	url string
}

func (t *fakeTab) page() *fakePage {
	if p, ok := t.s.pages[t.url]; ok {
		return p
	}
	return &fakePage{title: "Not Found"}
}

func (t *fakeTab) Navigate(ctx context.Context, url string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.navErr[url]; err != nil {
		return err
	}
	t.url = url
	t.s.visited = append(t.s.visited, url)
	return nil
}

func (t *fakeTab) Title(ctx context.Context) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.page().title, nil
}

func (t *fakeTab) HTML(ctx context.Context) (string, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.htmlErr != nil {
		return "", t.s.htmlErr
	}
	return t.page().html, nil
}

func (t *fakeTab) Count(ctx context.Context, selector string) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p := t.page()
	switch selector {
	case RobotButtonSelector:
		if p.robot && !t.s.verified {
			return 1, nil
		}
	case AgeButtonSelector:
		if p.age {
			return 1, nil
		}
	case NextLinkSelector:
		if p.hasNext {
			return 1, nil
		}
	}
	return 0, nil
}

func (t *fakeTab) Click(ctx context.Context, selector string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.clicks = append(t.s.clicks, selector)
	switch selector {
	case RobotButtonSelector:
		t.s.verified = true
	case NextLinkSelector:
		base := t.url
		if i := strings.Index(base, "?"); i >= 0 {
			base = base[:i]
		}
		t.url = models.PageURL(base, models.PageNumberFromURL(t.url)+1)
		t.s.visited = append(t.s.visited, t.url)
	}
	return nil
}

func (t *fakeTab) ClickAndWait(ctx context.Context, selector string, timeout time.Duration) error {
	if err := t.Click(ctx, selector); err != nil {
		return err
	}
	if selector == RobotButtonSelector {
		// the challenge reloads in place; no new commit is observed
		return context.DeadlineExceeded
	}
	return nil
}

func (t *fakeTab) Close() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.closed++
	return nil
}

var errNetwork = errors.New("net::ERR_CONNECTION_RESET")

const testBase = "https://www.justice.gov/epstein/doj-disclosures/data-set-9-files"

func listingHTML(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>Data Set 9</title></head><body><ul>")
	for _, h := range hrefs {
		b.WriteString(`<li><a href="` + h + `">` + h[strings.LastIndex(h, "/")+1:] + `</a></li>`)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}
