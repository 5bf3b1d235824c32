package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"booking-notification-service/internal/models"
)

const adminName = "Restaurant Admin"

// SendBookingConfirmation sends the confirmation email and SMS, schedules the
// reminder and logs the outcome. Errors are reported in the Result only.
func (s *Service) SendBookingConfirmation(ctx context.Context, b models.BookingPayload) models.Result {
	err := s.dispatchCustomer(ctx, models.TypeBookingConfirmation, b, func(restaurant, date string) string {
		return fmt.Sprintf("Hi %s! Your reservation at %s is confirmed for %s at %s for %d guests. Reservation ID: %s. See you there!",
			b.CustomerName, restaurant, date, b.Time, b.Guests, b.ReservationID)
	}, nil)
	if err == nil {
		if serr := s.ScheduleReminder(ctx, b); IsInvalidTime(serr) {
			s.logger.Warnf("Reminder not scheduled for %s, unparseable date or time: %v", b.ReservationID, serr)
		} else if serr != nil {
			s.logger.Warnf("Reminder for %s kept in memory only: %v", b.ReservationID, serr)
		}
	}
	return s.finish(ctx, models.TypeBookingConfirmation, b, err, "Booking confirmation sent successfully")
}

// SendBookingCancellation notifies the customer and drops any pending reminder.
func (s *Service) SendBookingCancellation(ctx context.Context, b models.BookingPayload, reason string) models.Result {
	if reason == "" {
		reason = "Booking cancelled"
	}
	s.CancelScheduledReminder(ctx, b.ReservationID)

	err := s.dispatchCustomer(ctx, models.TypeBookingCancellation, b, func(restaurant, date string) string {
		return fmt.Sprintf("Hi %s, your reservation at %s for %s at %s has been cancelled. Reservation ID: %s. %s",
			b.CustomerName, restaurant, date, b.Time, b.ReservationID, reason)
	}, map[string]string{"cancellation_reason": reason})
	return s.finish(ctx, models.TypeBookingCancellation, b, err, "Cancellation notification sent successfully")
}

// SendBookingReminder is normally driven by the scheduler worker.
func (s *Service) SendBookingReminder(ctx context.Context, b models.BookingPayload) models.Result {
	err := s.dispatchCustomer(ctx, models.TypeBookingReminder, b, func(restaurant, date string) string {
		return fmt.Sprintf("Reminder: Your reservation at %s is tomorrow (%s) at %s for %d guests. Reservation ID: %s. Looking forward to seeing you!",
			restaurant, date, b.Time, b.Guests, b.ReservationID)
	}, nil)
	return s.finish(ctx, models.TypeBookingReminder, b, err, "Reminder notification sent successfully")
}

// SendAdminNotification emails the restaurant admin about a booking.
func (s *Service) SendAdminNotification(ctx context.Context, b models.BookingPayload, kind string) models.Result {
	if kind == "" {
		kind = "new_booking"
	}
	err := func() error {
		restaurant, err := b.RestaurantName()
		if err != nil {
			return err
		}
		return s.email.Send(ctx, models.TypeAdminNotification, map[string]string{
			"to_email":          s.config.Notification.AdminEmail,
			"to_name":           adminName,
			"customer_name":     b.CustomerName,
			"restaurant_name":   restaurant,
			"booking_date":      FormatDate(b.Date),
			"booking_time":      b.Time,
			"guest_count":       strconv.Itoa(b.Guests),
			"reservation_id":    b.ReservationID,
			"notification_type": kind,
		})
	}()
	return s.finish(ctx, models.TypeAdminNotification, b, err, "Admin notification sent successfully")
}

// dispatchCustomer sends the email then the SMS for a customer-facing type.
func (s *Service) dispatchCustomer(
	ctx context.Context,
	kind models.NotificationType,
	b models.BookingPayload,
	smsText func(restaurant, date string) string,
	extra map[string]string,
) error {
	restaurant, err := b.RestaurantName()
	if err != nil {
		return err
	}
	date := FormatDate(b.Date)

	data := map[string]string{
		"to_email":         b.CustomerEmail,
		"to_name":          b.CustomerName,
		"restaurant_name":  restaurant,
		"booking_date":     date,
		"booking_time":     b.Time,
		"reservation_id":   b.ReservationID,
		"restaurant_phone": b.RestaurantPhone(),
	}
	if kind != models.TypeBookingCancellation {
		data["guest_count"] = strconv.Itoa(b.Guests)
		data["restaurant_address"] = b.RestaurantLocation()
	}
	for k, v := range extra {
		data[k] = v
	}

	if err := s.email.Send(ctx, kind, data); err != nil {
		return err
	}
	return s.sms.Send(ctx, b.CustomerPhone, smsText(restaurant, date))
}

// finish writes the activity log entry and builds the caller's Result.
func (s *Service) finish(ctx context.Context, kind models.NotificationType, b models.BookingPayload, err error, okMsg string) models.Result {
	if err != nil {
		s.logger.Errorf("Error sending %s for %s: %v", kind, b.ReservationID, err)
		s.logNotification(ctx, kind, b, models.StatusFailed, err)
		return models.Result{Success: false, Error: err.Error()}
	}
	s.logNotification(ctx, kind, b, models.StatusSent, nil)
	return models.Result{Success: true, Message: okMsg}
}

func (s *Service) logNotification(ctx context.Context, kind models.NotificationType, b models.BookingPayload, status string, cause error) {
	now := s.clock.Now()
	entry := models.LogEntry{
		ID:            s.journal.NextID(now),
		Type:          kind,
		ReservationID: b.ReservationID,
		CustomerEmail: b.CustomerEmail,
		CustomerPhone: b.CustomerPhone,
		Status:        status,
		Timestamp:     now.UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		entry.Error = &msg
	}

	// The entry is recorded even if the caller's context was cancelled mid-send.
	if err := s.journal.AppendLog(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Errorf("Failed to append activity log for %s: %v", b.ReservationID, err)
		return
	}
	if s.onActivity != nil {
		s.onActivity(entry)
	}
}

// IsInvalidTime reports whether err came from an unparseable reservation time.
func IsInvalidTime(err error) bool {
	return errors.Is(err, ErrInvalidTime)
}
