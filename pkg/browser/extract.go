package browser

import (
	"fmt"
	"net/url"
	"strings"

	"archivescraper/pkg/models"

	"github.com/PuerkitoBio/goquery"
)

// ExtractMediaLinks returns every anchor whose href ends in one of exts, in document order.
// Relative hrefs resolve against origin. Links are stamped with the page they came from.
func ExtractMediaLinks(html, origin string, exts []string, sourceURL string, page int) ([]models.MediaLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}

	links := []models.MediaLink{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !hasExtension(href, exts) {
			return
		}

		links = append(links, models.MediaLink{
			Filename:      linkFilename(strings.TrimSpace(s.Text()), href),
			URL:           resolveHref(base, href),
			SourcePageURL: sourceURL,
			SourcePage:    page,
		})
	})

	return links, nil
}

func hasExtension(href string, exts []string) bool {
	lower := strings.ToLower(href)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func linkFilename(text, href string) string {
	if text != "" {
		return text
	}
	return href[strings.LastIndex(href, "/")+1:]
}

func resolveHref(base *url.URL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return strings.TrimRight(base.String(), "/") + href
	}
	return base.ResolveReference(ref).String()
}
