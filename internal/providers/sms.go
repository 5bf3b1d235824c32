package providers

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"booking-notification-service/internal/clock"
	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/models"
)

// SMSSender simulates an SMS gateway and records every send.
type SMSSender struct {
	journal Journal
	clock   clock.Clock
	logger  *logging.Logger
	delay   time.Duration
	limiter *rate.Limiter
}

func NewSMSSender(journal Journal, clk clock.Clock, logger *logging.Logger, delay time.Duration, ratePerSecond int) *SMSSender {
	return &SMSSender{
		journal: journal,
		clock:   clk,
		logger:  logger,
		delay:   delay,
		limiter: newLimiter(ratePerSecond),
	}
}

func (s *SMSSender) Send(ctx context.Context, phoneNumber, message string) error {
	if phoneNumber == "" {
		return fmt.Errorf("sms: phone number is empty")
	}

	s.logger.Infof("SMS sent to %s: %s", phoneNumber, message)
	if err := simulateTransport(ctx, s.limiter, s.delay); err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", phoneNumber, err)
	}

	now := s.clock.Now()
	rec := models.SMSRecord{
		ID:          s.journal.NextID(now),
		PhoneNumber: phoneNumber,
		Message:     message,
		Timestamp:   now.UTC(),
		Status:      models.StatusSent,
	}
	if err := s.journal.AppendSMS(ctx, rec); err != nil {
		return fmt.Errorf("failed to record SMS to %s: %w", phoneNumber, err)
	}
	return nil
}
