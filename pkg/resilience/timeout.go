package resilience

import (
	"context"
	"time"
)

// TimeoutConfig bounds each layer so an inner call finishes before its parent gives up
//
//	HTTP handler (30s)
//	  cron job (10m)
//	    feed fetch per attempt (2m)
type TimeoutConfig struct {
	HTTPHandler time.Duration // ops API request
	CronJob     time.Duration // reconcile or settle run
	FeedFetch   time.Duration // one upstream feed attempt
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 30 * time.Second,
		CronJob:     10 * time.Minute,
		FeedFetch:   2 * time.Minute,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// CronContext creates a context with timeout for cron jobs
func (tc *TimeoutConfig) CronContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.CronJob)
}

// FeedContext creates a context for one feed fetch attempt
func (tc *TimeoutConfig) FeedContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.FeedFetch)
}
