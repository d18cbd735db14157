package checkpoint

import (
	"context"
	"sync"
	"time"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/metrics"
	"archivescraper/pkg/models"
	"archivescraper/pkg/retry"
)

// Checkpointer issues periodic interim progress writes without blocking the caller.
//
// At most one interim write runs at a time. A snapshot taken while a write is in
// flight replaces any snapshot still waiting, so only the newest one is written.
// Flush waits for interim writes and then performs the final write.
type Checkpointer struct {
	store    Store
	interval time.Duration
	logger   logger.Logger
	metrics  *metrics.Metrics
	retry    *retry.Config
	now      func() time.Time

	mu       sync.Mutex
	lastSave time.Time
	writing  bool
	pending  *models.DatasetProgress
	wg       sync.WaitGroup
}

// CheckpointerOption customizes a Checkpointer
type CheckpointerOption func(*Checkpointer)

// WithMetrics records write counts on m
func WithMetrics(m *metrics.Metrics) CheckpointerOption {
	return func(c *Checkpointer) { c.metrics = m }
}

// WithRetry overrides the retry policy of the final write
func WithRetry(cfg *retry.Config) CheckpointerOption {
	return func(c *Checkpointer) { c.retry = cfg }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) CheckpointerOption {
	return func(c *Checkpointer) { c.now = now }
}

// NewCheckpointer creates a checkpointer whose interval starts now
func NewCheckpointer(store Store, interval time.Duration, log logger.Logger, opts ...CheckpointerOption) *Checkpointer {
	if log == nil {
		log = logger.GetLogger()
	}
	c := &Checkpointer{
		store:    store,
		interval: interval,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry == nil {
		c.retry = retry.DefaultConfig()
		c.retry.Logger = log
	}
	c.lastSave = c.now()
	return c
}

// MaybeSave starts a background write of a snapshot of p when the interval has
// elapsed since the previous save. It reports whether a snapshot was taken.
// Callers must not mutate p concurrently.
func (c *Checkpointer) MaybeSave(p *models.DatasetProgress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSave) < c.interval {
		return false
	}
	c.lastSave = now

	c.pending = p.Clone()
	if c.writing {
		return true
	}
	c.writing = true
	c.wg.Add(1)
	go c.drain()
	return true
}

func (c *Checkpointer) drain() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		snapshot := c.pending
		c.pending = nil
		if snapshot == nil {
			c.writing = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		err := c.store.SaveProgress(context.Background(), snapshot)
		c.metrics.IncCheckpointWrites("interim", err)
		if err != nil {
			c.logger.WithError(err).WarnWithFields("Interim checkpoint failed", map[string]interface{}{
				"dataset": snapshot.DatasetID,
			})
		}
	}
}

// Flush waits for interim writes to settle and then saves p, retrying on failure
func (c *Checkpointer) Flush(ctx context.Context, p *models.DatasetProgress) error {
	c.wg.Wait()

	c.mu.Lock()
	c.lastSave = c.now()
	c.mu.Unlock()

	cfg := *c.retry
	cfg.Context = ctx
	err := retry.Do(func() error {
		return c.store.SaveProgress(ctx, p)
	}, &cfg)
	c.metrics.IncCheckpointWrites("final", err)
	return err
}
