// Package ratelimit spaces out requests to a single upstream provider.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourorg/extools/internal/metrics"
)

// Limiter is a per-provider delay gate. Requests start at most once per
// interval; callers block in Wait until their slot arrives. A nil Limiter or
// one built with a non-positive rate never blocks.
type Limiter struct {
	name     string
	interval time.Duration
	limiter  *rate.Limiter
	metrics  *metrics.Collector
}

// New returns a limiter that allows perMinute requests per minute for name
func New(name string, perMinute float64) *Limiter {
	l := &Limiter{name: name}
	if perMinute > 0 {
		l.interval = time.Duration(float64(time.Minute) / perMinute)
		l.limiter = rate.NewLimiter(rate.Every(l.interval), 1)
	}
	return l
}

// Unlimited returns a limiter that never waits
func Unlimited(name string) *Limiter {
	return New(name, 0)
}

// WithMetrics records wait times to c
func (l *Limiter) WithMetrics(c *metrics.Collector) *Limiter {
	l.metrics = c
	return l
}

// Name is the provider the limiter paces, empty for a nil limiter
func (l *Limiter) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Interval is the minimum spacing between requests, zero when unlimited
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the next request may start or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}

	start := time.Now()
	err := l.limiter.Wait(ctx)
	l.metrics.ObserveWait(l.name, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s rate limiter: %w", l.name, err)
	}
	return nil
}

// Allow reports whether a request may start now without waiting, consuming the slot if so
func (l *Limiter) Allow() bool {
	if l == nil || l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}
