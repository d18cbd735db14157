package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
)

// progressLogEvery is how many results pass between dataset progress log lines
const progressLogEvery = 100

// PageUpdate describes the state after one page result was folded into progress
type PageUpdate struct {
	DatasetID int
	Outcome   models.PageOutcome
	// Done and Total count results of this run
	Done  int
	Total int
	// Completed and Target describe the whole dataset
	Completed int
	Target    int
	Links     int
}

// Reporter receives run progress
type Reporter interface {
	StartDataset(datasetID, pending, completed, target int)
	PageDone(u PageUpdate)
	Notice(msg string)
	EndDataset()
}

// ProgressDisplay rewrites a single status line on a terminal, or logs one line
// per page when output is not interactive.
type ProgressDisplay struct {
	mu          sync.Mutex
	w           io.Writer
	interactive bool
	logger      logger.Logger
	lastLen     int
	midLine     bool
}

// NewProgressDisplay writes to w. interactive selects the carriage-return line.
func NewProgressDisplay(w io.Writer, interactive bool, log logger.Logger) *ProgressDisplay {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ProgressDisplay{w: w, interactive: interactive, logger: log}
}

// StartDataset prints the dataset header
func (p *ProgressDisplay) StartDataset(datasetID, pending, completed, target int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.breakLine()
	fmt.Fprintf(p.w, "%s %d pages to fetch (%d/%d already done)\n",
		Cyan(fmt.Sprintf("Dataset %d:", datasetID)), pending, completed, target)
}

// PageDone renders one result
func (p *ProgressDisplay) PageDone(u PageUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.interactive {
		logger.LogPageOutcome(p.logger, u.DatasetID, u.Outcome.PageNumber, u.Outcome.OK(), len(u.Outcome.Links), u.Outcome.Reason, u.Outcome.Duration)
		if u.Done%progressLogEvery == 0 || u.Done == u.Total {
			logger.LogDatasetProgress(p.logger, u.DatasetID, u.Completed, u.Target)
		}
		return
	}

	line := FormatPageLine(u)
	pad := ""
	if p.lastLen > len(line) {
		pad = strings.Repeat(" ", p.lastLen-len(line))
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
	p.lastLen = len(line)
	p.midLine = true
}

// Notice prints a message on its own line without corrupting the status line
func (p *ProgressDisplay) Notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.breakLine()
	fmt.Fprintln(p.w, msg)
}

// EndDataset terminates the status line
func (p *ProgressDisplay) EndDataset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
}

func (p *ProgressDisplay) breakLine() {
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
		p.lastLen = 0
	}
}

// FormatPageLine renders the status line for an update
func FormatPageLine(u PageUpdate) string {
	percent := 0
	if u.Total > 0 {
		percent = u.Done * 100 / u.Total
	}

	status := Green(fmt.Sprintf("OK +%d links", len(u.Outcome.Links)))
	if !u.Outcome.OK() {
		status = Red(fmt.Sprintf("FAIL (%s)", u.Outcome.Reason))
	}

	return fmt.Sprintf("Dataset %d: %d/%d (%d%%) | Page %d: %s | Done: %d/%d | Links: %d",
		u.DatasetID, u.Done, u.Total, percent,
		u.Outcome.PageNumber, status,
		u.Completed, u.Target, u.Links)
}

// FormatDuration renders d as "1h 2m 3s", "2m 3s" or "3s"
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// NopReporter discards progress
type NopReporter struct{}

func (NopReporter) StartDataset(int, int, int, int) {}
func (NopReporter) PageDone(PageUpdate)             {}
func (NopReporter) Notice(string)                   {}
func (NopReporter) EndDataset()                     {}
