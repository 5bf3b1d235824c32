package models

import "time"

const TaskTypeReminder = "reminder"

// ReminderTask is a pending reminder keyed by reservation id.
type ReminderTask struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	ScheduledTime time.Time      `json:"scheduledTime"`
	BookingData   BookingPayload `json:"bookingData"`
}

// Due reports whether the task should fire at now.
func (t ReminderTask) Due(now time.Time) bool {
	return !t.ScheduledTime.After(now)
}
