package providers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"booking-notification-service/internal/models"
)

// Journal records simulated sends.
type Journal interface {
	NextID(now time.Time) int64
	AppendEmail(ctx context.Context, rec models.EmailRecord) error
	AppendSMS(ctx context.Context, rec models.SMSRecord) error
}

// newLimiter returns a limiter allowing ratePerSecond sends, or nil when unlimited.
func newLimiter(ratePerSecond int) *rate.Limiter {
	if ratePerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond)
}

// simulateTransport waits for the limiter and the artificial delay.
func simulateTransport(ctx context.Context, limiter *rate.Limiter, delay time.Duration) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send cancelled: %w", ctx.Err())
	}
}
