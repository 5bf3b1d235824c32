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

// EmailSender simulates an email transport and records every send.
type EmailSender struct {
	journal Journal
	clock   clock.Clock
	logger  *logging.Logger
	delay   time.Duration
	limiter *rate.Limiter
}

func NewEmailSender(journal Journal, clk clock.Clock, logger *logging.Logger, delay time.Duration, ratePerSecond int) *EmailSender {
	return &EmailSender{
		journal: journal,
		clock:   clk,
		logger:  logger,
		delay:   delay,
		limiter: newLimiter(ratePerSecond),
	}
}

// Send delivers a templated email. data must carry to_email.
func (s *EmailSender) Send(ctx context.Context, templateType models.NotificationType, data map[string]string) error {
	to := data["to_email"]
	if to == "" {
		return fmt.Errorf("email %s: recipient address is empty", templateType)
	}

	s.logger.Infof("Email sent - Type: %s, To: %s", templateType, to)
	if err := simulateTransport(ctx, s.limiter, s.delay); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	now := s.clock.Now()
	rec := models.EmailRecord{
		ID:        s.journal.NextID(now),
		Type:      templateType,
		Data:      data,
		Timestamp: now.UTC(),
		Status:    models.StatusSent,
	}
	if err := s.journal.AppendEmail(ctx, rec); err != nil {
		return fmt.Errorf("failed to record email to %s: %w", to, err)
	}
	return nil
}
