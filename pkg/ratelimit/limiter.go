// Package ratelimit paces requests against the Constant Contact API.
// The v2 API allows 4 requests per second per API key; exceeding it yields
// 429 responses which the exporter does not retry.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerSecond is the documented per-key limit of the v2 API.
const DefaultRequestsPerSecond = 4

// Prometheus metrics for request pacing.
var (
	ccRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ccexport_rate_limit_waits_total",
		Help: "Total number of requests delayed by the client-side rate limiter",
	})

	ccRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ccexport_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limiter token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

// Limiter gates outgoing requests with a token bucket.
// A nil *Limiter allows every request immediately.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter allowing requestsPerSecond with a burst of one.
// Returns nil (unlimited) when requestsPerSecond <= 0.
func NewLimiter(requestsPerSecond float64, logger zerolog.Logger) *Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

// Wait blocks until the request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	if waited > time.Millisecond {
		ccRateLimitWaitsTotal.Inc()
		ccRateLimitWaitSeconds.Observe(waited.Seconds())
		l.logger.Debug().
			Dur("wait_duration", waited).
			Msg("Request throttled")
	}

	return nil
}

// Limit returns the configured requests per second, or 0 when unlimited.
func (l *Limiter) Limit() float64 {
	if l == nil {
		return 0
	}
	return float64(l.limiter.Limit())
}
