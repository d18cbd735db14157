package models

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Dataset is one paginated listing of the archive
type Dataset struct {
	ID             int
	BaseURL        string
	EstimatedPages int
}

// PageURL returns the listing URL for a page. Page 0 is the base URL verbatim.
func PageURL(baseURL string, page int) string {
	if page == 0 {
		return baseURL
	}
	return baseURL + "?page=" + strconv.Itoa(page)
}

// PageNumberFromURL recovers the page number encoded by PageURL
func PageNumberFromURL(pageURL string) int {
	u, err := url.Parse(pageURL)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MediaLink is one discovered file reference
type MediaLink struct {
	Filename      string `json:"filename"`
	URL           string `json:"url"`
	SourcePageURL string `json:"sourcePageUrl,omitempty"`
	SourcePage    int    `json:"-"`
}

// UnmarshalJSON restores SourcePage from the stored source URL
func (m *MediaLink) UnmarshalJSON(data []byte) error {
	type plain MediaLink
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = MediaLink(p)
	if m.SourcePageURL != "" {
		m.SourcePage = PageNumberFromURL(m.SourcePageURL)
	}
	return nil
}

// ExportedLink is the trimmed link shape written to result files
type ExportedLink struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// OutcomeStatus distinguishes successful and failed fetches
type OutcomeStatus int

const (
	StatusSuccess OutcomeStatus = iota
	StatusFailure
)

func (s OutcomeStatus) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failure"
}

// PageOutcome is the result of one fetch attempt
type PageOutcome struct {
	PageNumber int
	Links      []MediaLink
	Status     OutcomeStatus
	Reason     string
	Duration   time.Duration
}

// Success builds a successful outcome
func Success(page int, links []MediaLink) PageOutcome {
	return PageOutcome{PageNumber: page, Links: links, Status: StatusSuccess}
}

// Failure builds a failed outcome carrying a short reason
func Failure(page int, reason string) PageOutcome {
	return PageOutcome{PageNumber: page, Status: StatusFailure, Reason: reason}
}

// OK reports whether the fetch succeeded
func (o PageOutcome) OK() bool {
	return o.Status == StatusSuccess
}

// PageSet is a set of page numbers serialized as a sorted JSON array
type PageSet map[int]struct{}

// NewPageSet builds a set from page numbers
func NewPageSet(pages ...int) PageSet {
	s := make(PageSet, len(pages))
	for _, p := range pages {
		s[p] = struct{}{}
	}
	return s
}

func (s PageSet) Add(page int)    { s[page] = struct{}{} }
func (s PageSet) Remove(page int) { delete(s, page) }

func (s PageSet) Has(page int) bool {
	_, ok := s[page]
	return ok
}

// Sorted returns the pages in ascending order
func (s PageSet) Sorted() []int {
	pages := make([]int, 0, len(s))
	for p := range s {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func (s PageSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *PageSet) UnmarshalJSON(data []byte) error {
	var pages []int
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	*s = NewPageSet(pages...)
	return nil
}

// DatasetProgress is the durable resumable state for one dataset
type DatasetProgress struct {
	DatasetID       int         `json:"datasetId"`
	CompletedPages  PageSet     `json:"completedPages"`
	FailedPages     PageSet     `json:"failedPages"`
	TargetPageCount int         `json:"totalPagesToFetch"`
	Links           []MediaLink `json:"mp4Files"`
	LastUpdated     time.Time   `json:"lastUpdated"`
}

// NewDatasetProgress returns empty progress for a dataset
func NewDatasetProgress(datasetID, target int) *DatasetProgress {
	return &DatasetProgress{
		DatasetID:       datasetID,
		CompletedPages:  PageSet{},
		FailedPages:     PageSet{},
		TargetPageCount: target,
		Links:           []MediaLink{},
	}
}

// Normalize fills nil collections left by older or hand-edited progress files
// and drops failed pages that are also completed.
func (p *DatasetProgress) Normalize() {
	if p.CompletedPages == nil {
		p.CompletedPages = PageSet{}
	}
	if p.FailedPages == nil {
		p.FailedPages = PageSet{}
	}
	if p.Links == nil {
		p.Links = []MediaLink{}
	}
	for page := range p.CompletedPages {
		p.FailedPages.Remove(page)
	}
}

// Apply folds one outcome into the progress.
// A success completes the page, retracts any earlier failure and appends its links.
// A failure is recorded only for pages not already completed.
func (p *DatasetProgress) Apply(o PageOutcome) {
	if o.OK() {
		p.CompletedPages.Add(o.PageNumber)
		p.FailedPages.Remove(o.PageNumber)
		p.Links = append(p.Links, o.Links...)
		return
	}
	if !p.CompletedPages.Has(o.PageNumber) {
		p.FailedPages.Add(o.PageNumber)
	}
}

// PendingPages lists pages below target that are not completed, ascending
func (p *DatasetProgress) PendingPages(target int) []int {
	pages := make([]int, 0, target)
	for i := 0; i < target; i++ {
		if !p.CompletedPages.Has(i) {
			pages = append(pages, i)
		}
	}
	return pages
}

// RetryPages lists failed pages below target, ascending
func (p *DatasetProgress) RetryPages(target int) []int {
	var pages []int
	for _, page := range p.FailedPages.Sorted() {
		if page < target {
			pages = append(pages, page)
		}
	}
	return pages
}

// Clone returns a deep copy safe to hand to a background writer
func (p *DatasetProgress) Clone() *DatasetProgress {
	c := *p
	c.CompletedPages = make(PageSet, len(p.CompletedPages))
	for k := range p.CompletedPages {
		c.CompletedPages[k] = struct{}{}
	}
	c.FailedPages = make(PageSet, len(p.FailedPages))
	for k := range p.FailedPages {
		c.FailedPages[k] = struct{}{}
	}
	c.Links = append([]MediaLink(nil), p.Links...)
	return &c
}

// DatasetResult is the exported artifact for a dataset
type DatasetResult struct {
	DatasetID  int            `json:"datasetId"`
	TotalPages int            `json:"totalPages"`
	ScrapedAt  time.Time      `json:"scrapedAt"`
	Links      []ExportedLink `json:"mp4Files"`
}

// NewDatasetResult snapshots progress into an export
func NewDatasetResult(p *DatasetProgress, scrapedAt time.Time) *DatasetResult {
	links := make([]ExportedLink, len(p.Links))
	for i, l := range p.Links {
		links[i] = ExportedLink{Filename: l.Filename, URL: l.URL}
	}
	return &DatasetResult{
		DatasetID:  p.DatasetID,
		TotalPages: len(p.CompletedPages),
		ScrapedAt:  scrapedAt,
		Links:      links,
	}
}
