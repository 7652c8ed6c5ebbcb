package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every call to the gateway, so a burst of
// pollers cannot flood the terminal service
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows rps calls per second with a burst capacity of burst tokens
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until one call is allowed or ctx is done.
// Exactly one token is consumed per successful call.
func (l *Limiter) Wait(ctx context.Context, operation string) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.GatewayRateLimitWaits.WithLabelValues(operation).Inc()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}
