// Package ratelimit spaces requests to the Reader list API so that a run
// stays under the API quota (20 requests per minute by default).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// Default quota of the Reader list endpoint.
const (
	DefaultRequests = 20
	DefaultWindow   = 60 * time.Second
)

var waitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "readwise_rate_limit_wait_seconds",
	Help:    "Time spent waiting for a request slot by limiter kind",
	Buckets: []float64{0, 0.5, 1, 2, 3, 5, 10, 30},
}, []string{"kind"})

// Limiter gates outgoing requests.
type Limiter interface {
	// Wait blocks until the next request may be issued or ctx is done.
	Wait(ctx context.Context) error
}

// Interval returns the spacing between two requests for a quota.
func Interval(requests int, window time.Duration) time.Duration {
	if requests <= 0 || window <= 0 {
		return DefaultWindow / DefaultRequests
	}
	return window / time.Duration(requests)
}

// Local is an in-process limiter. The first request passes immediately; every
// following request waits until one interval has elapsed since the previous.
type Local struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewLocal creates a limiter admitting requests per window.
func NewLocal(requests int, window time.Duration) *Local {
	interval := Interval(requests, window)
	return &Local{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait implements Limiter.
func (l *Local) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	waitSeconds.WithLabelValues("local").Observe(time.Since(start).Seconds())
	return nil
}

// Interval returns the configured spacing between requests.
func (l *Local) Interval() time.Duration {
	return l.interval
}
