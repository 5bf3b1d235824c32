package notification

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-notification-service/internal/clock"
	"booking-notification-service/internal/config"
	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/models"
	"booking-notification-service/internal/providers"
	"booking-notification-service/internal/store"
)

var testNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	journal *store.Journal
	kv      *store.MemoryKV
	clock   *clock.MockClock
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Scheduler.Location = time.UTC
	cfg.Scheduler.PollInterval = 10 * time.Millisecond
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := store.NewMemoryKV()
	logger := logging.Discard()
	j := store.NewJournal(kv, logger, 1000, 1000)
	clk := clock.NewMockClock(testNow)
	svc := New(j,
		providers.NewEmailSender(j, clk, logger, 0, 0),
		providers.NewSMSSender(j, clk, logger, 0, 0),
		clk, logger, testConfig())
	return &fixture{svc: svc, journal: j, kv: kv, clock: clk}
}

func booking(id, date, at string) models.BookingPayload {
	return models.BookingPayload{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		CustomerPhone: "+15550100",
		Restaurant: &models.Restaurant{
			Name:     "Bistro Nine",
			Location: "9 Main St",
			Phone:    "+15550199",
		},
		Date:          date,
		Time:          at,
		Guests:        4,
		ReservationID: id,
	}
}

func (f *fixture) history(t *testing.T) models.History {
	t.Helper()
	h, err := f.svc.NotificationHistory(context.Background())
	require.NoError(t, err)
	return h
}

func TestSendBookingConfirmation_SchedulesReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.svc.SendBookingConfirmation(ctx, booking("TEST-1", "2026-10-16", "7:00 PM"))
	require.True(t, res.Success)
	assert.Equal(t, "Booking confirmation sent successfully", res.Message)
	assert.Empty(t, res.Error)

	h := f.history(t)
	require.Len(t, h.Emails, 1)
	require.Len(t, h.SMS, 1)
	require.Len(t, h.Logs, 1)

	entry := h.Logs[0]
	assert.Equal(t, models.TypeBookingConfirmation, entry.Type)
	assert.Equal(t, "TEST-1", entry.ReservationID)
	assert.Equal(t, models.StatusSent, entry.Status)
	assert.Nil(t, entry.Error)

	email := h.Emails[0]
	assert.Equal(t, "ada@example.com", email.Data["to_email"])
	assert.Equal(t, "Friday, October 16, 2026", email.Data["booking_date"])
	assert.Equal(t, "4", email.Data["guest_count"])
	assert.Equal(t, "9 Main St", email.Data["restaurant_address"])
	assert.Equal(t, "+15550199", email.Data["restaurant_phone"])

	assert.Equal(t,
		"Hi Ada Lovelace! Your reservation at Bistro Nine is confirmed for Friday, October 16, 2026 at 7:00 PM for 4 guests. Reservation ID: TEST-1. See you there!",
		h.SMS[0].Message)

	tasks := f.svc.ScheduledNotifications()
	require.Len(t, tasks, 1)
	assert.Equal(t, "TEST-1", tasks[0].ID)
	assert.Equal(t, models.TaskTypeReminder, tasks[0].Type)
	assert.Equal(t, time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC), tasks[0].ScheduledTime)

	persisted, err := f.journal.LoadTasks(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "TEST-1", persisted[0].ID)
}

func TestSendBookingConfirmation_WithinLeadSkipsReminder(t *testing.T) {
	f := newFixture(t)

	// 8 PM today is only 11h away, so the reminder time has already passed.
	res := f.svc.SendBookingConfirmation(context.Background(), booking("R-2", "2026-10-15", "8:00 PM"))
	require.True(t, res.Success)

	assert.Empty(t, f.svc.ScheduledNotifications())
	assert.Len(t, f.history(t).Logs, 1)
}

func TestSendBookingConfirmation_ExactBoundarySkipsReminder(t *testing.T) {
	f := newFixture(t)

	res := f.svc.SendBookingConfirmation(context.Background(), booking("R-3", "2026-10-16", "9:00 AM"))
	require.True(t, res.Success)
	assert.Empty(t, f.svc.ScheduledNotifications())
}

func TestSendBookingConfirmation_InvalidTimeStillSends(t *testing.T) {
	f := newFixture(t)

	res := f.svc.SendBookingConfirmation(context.Background(), booking("R-4", "2026-10-20", "around seven"))
	require.True(t, res.Success)

	h := f.history(t)
	require.Len(t, h.Logs, 1)
	assert.Equal(t, models.StatusSent, h.Logs[0].Status)
	assert.Empty(t, f.svc.ScheduledNotifications())
}

func TestSendBookingConfirmation_InvalidTimeWarning(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	logger := logging.NewWriter(&buf)
	svc := New(f.journal,
		providers.NewEmailSender(f.journal, f.clock, logger, 0, 0),
		providers.NewSMSSender(f.journal, f.clock, logger, 0, 0),
		f.clock, logger, testConfig())

	require.True(t, svc.SendBookingConfirmation(context.Background(), booking("R-4b", "2026-10-20", "25:99")).Success)
	assert.Contains(t, buf.String(), "unparseable date or time")
	assert.NotContains(t, buf.String(), "kept in memory only")
}

func TestSendBookingConfirmation_ReplacesExistingTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("R-5", "2026-10-17", "7:00 PM")).Success)
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("R-5", "2026-10-18", "6:00 PM")).Success)

	tasks := f.svc.ScheduledNotifications()
	require.Len(t, tasks, 1)
	assert.Equal(t, time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC), tasks[0].ScheduledTime)
	assert.Equal(t, "2026-10-18", tasks[0].BookingData.Date)
}

func TestSendBookingConfirmation_MissingRestaurantFails(t *testing.T) {
	f := newFixture(t)
	b := booking("R-6", "2026-10-20", "7:00 PM")
	b.Restaurant = nil

	res := f.svc.SendBookingConfirmation(context.Background(), b)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "restaurant name is required")

	h := f.history(t)
	assert.Empty(t, h.Emails)
	assert.Empty(t, h.SMS)
	require.Len(t, h.Logs, 1)
	assert.Equal(t, models.StatusFailed, h.Logs[0].Status)
	require.NotNil(t, h.Logs[0].Error)
	assert.Equal(t, res.Error, *h.Logs[0].Error)
	assert.Empty(t, f.svc.ScheduledNotifications())
}

type failingEmail struct{ err error }

func (f failingEmail) Send(context.Context, models.NotificationType, map[string]string) error {
	return f.err
}

func TestSendBookingConfirmation_SendFailureIsReported(t *testing.T) {
	f := newFixture(t)
	logger := logging.Discard()
	svc := New(f.journal, failingEmail{err: errors.New("smtp down")},
		providers.NewSMSSender(f.journal, f.clock, logger, 0, 0),
		f.clock, logger, testConfig())

	res := svc.SendBookingConfirmation(context.Background(), booking("R-7", "2026-10-20", "7:00 PM"))
	assert.False(t, res.Success)
	assert.Equal(t, "smtp down", res.Error)

	h := f.history(t)
	assert.Empty(t, h.SMS)
	require.Len(t, h.Logs, 1)
	assert.Equal(t, models.StatusFailed, h.Logs[0].Status)
	assert.Empty(t, svc.ScheduledNotifications())
}

func TestSendBookingCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := booking("TEST-1", "2026-10-16", "7:00 PM")

	require.True(t, f.svc.SendBookingConfirmation(ctx, b).Success)
	require.Len(t, f.svc.ScheduledNotifications(), 1)

	res := f.svc.SendBookingCancellation(ctx, b, "")
	require.True(t, res.Success)
	assert.Equal(t, "Cancellation notification sent successfully", res.Message)
	assert.Empty(t, f.svc.ScheduledNotifications())

	persisted, err := f.journal.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	h := f.history(t)
	require.Len(t, h.Logs, 2)
	assert.Equal(t, models.TypeBookingCancellation, h.Logs[1].Type)
	assert.Equal(t, models.StatusSent, h.Logs[1].Status)

	email := h.Emails[1]
	assert.Equal(t, "Booking cancelled", email.Data["cancellation_reason"])
	assert.NotContains(t, email.Data, "guest_count")
	assert.NotContains(t, email.Data, "restaurant_address")
	assert.Equal(t,
		"Hi Ada Lovelace, your reservation at Bistro Nine for Friday, October 16, 2026 at 7:00 PM has been cancelled. Reservation ID: TEST-1. Booking cancelled",
		h.SMS[1].Message)
}

func TestSendBookingCancellation_NoTaskIsNoop(t *testing.T) {
	f := newFixture(t)

	res := f.svc.SendBookingCancellation(context.Background(), booking("R-8", "2026-10-20", "7:00 PM"), "Kitchen closed")
	require.True(t, res.Success)
	assert.Empty(t, f.svc.ScheduledNotifications())
	assert.Equal(t, "Kitchen closed", f.history(t).Emails[0].Data["cancellation_reason"])
}

func TestSendBookingReminder_Message(t *testing.T) {
	f := newFixture(t)

	res := f.svc.SendBookingReminder(context.Background(), booking("R-9", "2026-10-16", "7:00 PM"))
	require.True(t, res.Success)
	assert.Equal(t, "Reminder notification sent successfully", res.Message)

	h := f.history(t)
	assert.Equal(t, models.TypeBookingReminder, h.Emails[0].Type)
	assert.Equal(t,
		"Reminder: Your reservation at Bistro Nine is tomorrow (Friday, October 16, 2026) at 7:00 PM for 4 guests. Reservation ID: R-9. Looking forward to seeing you!",
		h.SMS[0].Message)
}

func TestSendAdminNotification(t *testing.T) {
	f := newFixture(t)

	res := f.svc.SendAdminNotification(context.Background(), booking("R-10", "2026-10-16", "7:00 PM"), "")
	require.True(t, res.Success)

	h := f.history(t)
	require.Len(t, h.Emails, 1)
	assert.Empty(t, h.SMS)
	data := h.Emails[0].Data
	assert.Equal(t, "admin@restaurant.com", data["to_email"])
	assert.Equal(t, "Restaurant Admin", data["to_name"])
	assert.Equal(t, "Ada Lovelace", data["customer_name"])
	assert.Equal(t, "new_booking", data["notification_type"])
	assert.Equal(t, models.TypeAdminNotification, h.Logs[0].Type)
}

func TestProcessScheduledNotifications_FiresOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("R-11", "2026-10-16", "7:00 PM")).Success)

	assert.Equal(t, 0, f.svc.ProcessScheduledNotifications(ctx))

	f.clock.Set(time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, f.svc.ProcessScheduledNotifications(ctx))
	assert.Empty(t, f.svc.ScheduledNotifications())
	assert.Equal(t, 0, f.svc.ProcessScheduledNotifications(ctx))

	h := f.history(t)
	require.Len(t, h.Logs, 2)
	assert.Equal(t, models.TypeBookingReminder, h.Logs[1].Type)

	persisted, err := f.journal.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestProcessScheduledNotifications_OnlyDueTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("early", "2026-10-16", "7:00 PM")).Success)
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("late", "2026-10-20", "7:00 PM")).Success)

	f.clock.Add(48 * time.Hour)
	assert.Equal(t, 1, f.svc.ProcessScheduledNotifications(ctx))

	tasks := f.svc.ScheduledNotifications()
	require.Len(t, tasks, 1)
	assert.Equal(t, "late", tasks[0].ID)
}

func TestProcessScheduledNotifications_CancelledMidScanKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"C-1", "C-2", "C-3"} {
		require.True(t, f.svc.SendBookingConfirmation(ctx, booking(id, "2026-10-16", "7:00 PM")).Success)
	}

	logger := logging.Discard()
	slow := New(f.journal,
		providers.NewEmailSender(f.journal, f.clock, logger, 50*time.Millisecond, 0),
		providers.NewSMSSender(f.journal, f.clock, logger, 0, 0),
		f.clock, logger, testConfig())
	require.NoError(t, slow.LoadScheduledNotifications(ctx))
	f.clock.Add(24 * time.Hour)

	scanCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, 0, slow.ProcessScheduledNotifications(scanCtx))

	assert.Len(t, slow.ScheduledNotifications(), 3)
	persisted, err := f.journal.LoadTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
	for _, e := range f.history(t).Emails {
		assert.NotEqual(t, models.TypeBookingReminder, e.Type)
	}

	// The next scan on a live context delivers all of them.
	assert.Equal(t, 3, slow.ProcessScheduledNotifications(ctx))
	assert.Empty(t, slow.ScheduledNotifications())
}

func TestProcessScheduledNotifications_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("C-4", "2026-10-16", "7:00 PM")).Success)
	f.clock.Add(24 * time.Hour)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, 0, f.svc.ProcessScheduledNotifications(cancelled))
	assert.Len(t, f.svc.ScheduledNotifications(), 1)
	assert.Len(t, f.history(t).Logs, 1)
}

type blockingSMS struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSMS) Send(context.Context, string, string) error {
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func TestProcessScheduledNotifications_SingleFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("R-12", "2026-10-16", "7:00 PM")).Success)

	sms := &blockingSMS{entered: make(chan struct{}), release: make(chan struct{})}
	logger := logging.Discard()
	svc := New(f.journal, providers.NewEmailSender(f.journal, f.clock, logger, 0, 0), sms, f.clock, logger, testConfig())
	require.NoError(t, svc.LoadScheduledNotifications(ctx))
	f.clock.Add(36 * time.Hour)

	done := make(chan int)
	go func() { done <- svc.ProcessScheduledNotifications(ctx) }()

	<-sms.entered
	assert.Equal(t, 0, svc.ProcessScheduledNotifications(ctx))
	close(sms.release)
	assert.Equal(t, 1, <-done)
}

func TestLoadScheduledNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("R-13", "2026-10-16", "7:00 PM")).Success)

	logger := logging.Discard()
	restarted := New(f.journal,
		providers.NewEmailSender(f.journal, f.clock, logger, 0, 0),
		providers.NewSMSSender(f.journal, f.clock, logger, 0, 0),
		f.clock, logger, testConfig())
	require.NoError(t, restarted.LoadScheduledNotifications(ctx))

	tasks := restarted.ScheduledNotifications()
	require.Len(t, tasks, 1)
	assert.Equal(t, "R-13", tasks[0].ID)
	assert.Equal(t, "Bistro Nine", tasks[0].BookingData.Restaurant.Name)
}

func TestLoadScheduledNotifications_CorruptData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, store.KeyScheduledTasks, []byte("{not json")))

	require.NoError(t, f.svc.LoadScheduledNotifications(ctx))
	assert.Empty(t, f.svc.ScheduledNotifications())
}

func TestTestNotifications(t *testing.T) {
	f := newFixture(t)

	results := f.svc.TestNotifications(context.Background())
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)

	h := f.history(t)
	require.Len(t, h.Logs, 2)
	assert.Equal(t, "TEST-1792054800000", h.Logs[0].ReservationID)
	assert.Equal(t, models.TypeAdminNotification, h.Logs[1].Type)

	tasks := f.svc.ScheduledNotifications()
	require.Len(t, tasks, 1)
	assert.Equal(t, time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC), tasks[0].ScheduledTime)
}

func TestOnActivity(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	var seen []models.LogEntry
	f.svc.OnActivity(func(e models.LogEntry) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e)
	})

	f.svc.SendAdminNotification(context.Background(), booking("R-14", "2026-10-16", "7:00 PM"), "update")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, "R-14", seen[0].ReservationID)
}

func TestStartStop_WorkerFiresDueReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.True(t, f.svc.SendBookingConfirmation(ctx, booking("R-15", "2026-10-16", "7:00 PM")).Success)
	f.clock.Add(24 * time.Hour)

	var wg sync.WaitGroup
	f.svc.Start(&wg)
	assert.Eventually(t, func() bool {
		return len(f.svc.ScheduledNotifications()) == 0
	}, time.Second, 5*time.Millisecond)
	f.svc.Stop()
	wg.Wait()

	assert.Len(t, f.history(t).Logs, 2)
}
