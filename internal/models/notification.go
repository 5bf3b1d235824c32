package models

import "time"

// NotificationType identifies the template and the activity log category.
type NotificationType string

const (
	TypeBookingConfirmation NotificationType = "booking_confirmation"
	TypeBookingCancellation NotificationType = "booking_cancellation"
	TypeBookingReminder     NotificationType = "booking_reminder"
	TypeAdminNotification   NotificationType = "admin_notification"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// LogEntry is one activity log record. Error is nil unless Status is failed.
type LogEntry struct {
	ID            int64            `json:"id"`
	Type          NotificationType `json:"type"`
	ReservationID string           `json:"reservationId"`
	CustomerEmail string           `json:"customerEmail"`
	CustomerPhone string           `json:"customerPhone"`
	Status        string           `json:"status"`
	Error         *string          `json:"error"`
	Timestamp     time.Time        `json:"timestamp"`
}

// EmailRecord is one simulated email send. Data holds the template fields.
type EmailRecord struct {
	ID        int64             `json:"id"`
	Type      NotificationType  `json:"type"`
	Data      map[string]string `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Status    string            `json:"status"`
}

// SMSRecord is one simulated SMS send.
type SMSRecord struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
}

// History is the full set of persisted logs.
type History struct {
	Emails []EmailRecord `json:"emails"`
	SMS    []SMSRecord   `json:"sms"`
	Logs   []LogEntry    `json:"logs"`
}

// Result is what every dispatch operation returns to its caller.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
