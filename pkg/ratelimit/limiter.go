// Package ratelimit paces launches against the archive server.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces callers
type Limiter interface {
	// Wait blocks until the caller may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets previously granted slots
	Reset()
}

// Stagger grants slots at least Interval apart. The first slot is granted immediately.
type Stagger struct {
	interval time.Duration
	next     time.Time
	mu       sync.Mutex
}

// NewStagger creates a pacer that spaces successive Wait calls by interval
func NewStagger(interval time.Duration) *Stagger {
	return &Stagger{interval: interval}
}

// Wait reserves the next slot and sleeps until it arrives
func (s *Stagger) Wait(ctx context.Context) error {
	delay := s.reserve(time.Now())
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stagger) reserve(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next.Before(now) {
		s.next = now
	}
	delay := s.next.Sub(now)
	s.next = s.next.Add(s.interval)
	return delay
}

// Reset makes the next Wait return immediately
func (s *Stagger) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = time.Time{}
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}
