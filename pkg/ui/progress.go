package ui

import (
	"sync"
	"time"
)

// StatusTracker counts page outcomes for one dataset run
type StatusTracker struct {
	mu        sync.Mutex
	Succeeded int
	Failed    int
	Links     int
	StartTime time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{StartTime: time.Now()}
}

// Record counts one outcome
func (st *StatusTracker) Record(success bool, links int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if success {
		st.Succeeded++
		st.Links += links
		return
	}
	st.Failed++
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// PagesPerSecond returns the average rate of handled pages
func (st *StatusTracker) PagesPerSecond() float64 {
	st.mu.Lock()
	handled := st.Succeeded + st.Failed
	st.mu.Unlock()

	elapsed := st.GetElapsedTime().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(handled) / elapsed
}

// Counts returns succeeded, failed and link totals
func (st *StatusTracker) Counts() (succeeded, failed, links int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Succeeded, st.Failed, st.Links
}
