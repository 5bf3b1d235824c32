package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"booking-notification-service/internal/clock"
	"booking-notification-service/internal/config"
	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/models"
)

// Journal is the persistence the Service needs. *store.Journal satisfies it.
type Journal interface {
	NextID(now time.Time) int64
	AppendLog(ctx context.Context, entry models.LogEntry) error
	History(ctx context.Context) (models.History, error)
	LoadTasks(ctx context.Context) ([]models.ReminderTask, error)
	SaveTasks(ctx context.Context, tasks []models.ReminderTask) error
}

type EmailSender interface {
	Send(ctx context.Context, templateType models.NotificationType, data map[string]string) error
}

type SMSSender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// Service dispatches booking notifications and fires pending reminders.
type Service struct {
	journal Journal
	email   EmailSender
	sms     SMSSender
	clock   clock.Clock
	logger  *logging.Logger
	config  config.Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]models.ReminderTask

	// scanMu keeps at most one scan running at a time.
	scanMu sync.Mutex

	onActivity func(models.LogEntry)
}

// New constructs a notification Service.
func New(journal Journal, email EmailSender, sms SMSSender, clk clock.Clock, logger *logging.Logger, cfg config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.Scheduler.Location == nil {
		cfg.Scheduler.Location = time.Local
	}
	return &Service{
		journal: journal,
		email:   email,
		sms:     sms,
		clock:   clk,
		logger:  logger,
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[string]models.ReminderTask),
	}
}

// OnActivity registers fn to receive every activity log entry after it is
// persisted. Must be called before Start.
func (s *Service) OnActivity(fn func(models.LogEntry)) {
	s.onActivity = fn
}

// Start launches the reminder scheduler.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	s.wg.Add(1)
	go s.worker()
}

// Stop halts the scheduler. In-flight sends observe the cancellation.
func (s *Service) Stop() {
	s.cancel()
}

// worker scans for due reminders on every tick until the context is cancelled.
func (s *Service) worker() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.Scheduler.PollInterval)
	defer ticker.Stop()

	s.logger.Infof("Reminder scheduler started, interval=%s", s.config.Scheduler.PollInterval)
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Reminder scheduler stopped")
			return
		case <-ticker.C:
			if n := s.ProcessScheduledNotifications(s.ctx); n > 0 {
				s.logger.Infof("Fired %d reminder(s)", n)
			}
		}
	}
}

// LoadScheduledNotifications restores the pending reminder set from storage.
// Anything already in memory is replaced.
func (s *Service) LoadScheduledNotifications(ctx context.Context) error {
	tasks, err := s.journal.LoadTasks(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled notifications: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]models.ReminderTask, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		s.tasks[t.ID] = t
	}
	s.logger.Infof("Loaded %d scheduled notification(s)", len(s.tasks))
	return nil
}

// ScheduleReminder registers a reminder one lead interval before the
// reservation. Past reminder times are skipped without error. A task for the
// same reservation is replaced.
func (s *Service) ScheduleReminder(ctx context.Context, b models.BookingPayload) error {
	at, err := ParseReservationTime(b.Date, b.Time, s.config.Scheduler.Location)
	if err != nil {
		return err
	}
	remindAt := at.Add(-s.config.Scheduler.ReminderLead)
	if !remindAt.After(s.clock.Now()) {
		s.logger.Debugf("Reminder time %s for %s already passed, not scheduling", remindAt.Format(time.RFC3339), b.ReservationID)
		return nil
	}

	task := models.ReminderTask{
		ID:            b.ReservationID,
		Type:          models.TaskTypeReminder,
		ScheduledTime: remindAt,
		BookingData:   b.Clone(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	s.logger.Infof("Reminder scheduled for %s at %s", b.ReservationID, remindAt.Format(time.RFC3339))
	return s.persistLocked(ctx)
}

// CancelScheduledReminder removes the pending reminder for reservationID, if any.
func (s *Service) CancelScheduledReminder(ctx context.Context, reservationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[reservationID]; !ok {
		return
	}
	delete(s.tasks, reservationID)
	s.logger.Infof("Cancelled scheduled reminder for %s", reservationID)
	if err := s.persistLocked(ctx); err != nil {
		s.logger.Errorf("%v", err)
	}
}

// ProcessScheduledNotifications fires every due reminder and removes it from
// the pending set. It returns the number fired. A call made while another
// scan is running returns 0 immediately. Once ctx is cancelled the remaining
// reminders, and any send cut short by the cancellation, stay pending for the
// next scan.
func (s *Service) ProcessScheduledNotifications(ctx context.Context) int {
	if !s.scanMu.TryLock() {
		s.logger.Debugf("Scan already in progress, skipping")
		return 0
	}
	defer s.scanMu.Unlock()

	now := s.clock.Now()
	s.mu.Lock()
	var due []models.ReminderTask
	for _, t := range s.tasks {
		if t.Type == models.TaskTypeReminder && t.Due(now) {
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	if len(due) == 0 {
		return 0
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledTime.Before(due[j].ScheduledTime) })

	fired := make([]models.ReminderTask, 0, len(due))
	for _, t := range due {
		if ctx.Err() != nil {
			s.logger.Warnf("Scan interrupted, %d reminder(s) left pending", len(due)-len(fired))
			break
		}
		res := s.SendBookingReminder(ctx, t.BookingData)
		if !res.Success {
			if ctx.Err() != nil {
				s.logger.Warnf("Reminder for %s interrupted, left pending: %s", t.ID, res.Error)
				break
			}
			s.logger.Warnf("Reminder for %s failed: %s", t.ID, res.Error)
		}
		fired = append(fired, t)
	}
	if len(fired) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range fired {
		// A confirmation may have rescheduled this reservation mid-scan.
		if cur, ok := s.tasks[t.ID]; ok && cur.ScheduledTime.Equal(t.ScheduledTime) {
			delete(s.tasks, t.ID)
		}
	}
	if err := s.persistLocked(context.WithoutCancel(ctx)); err != nil {
		s.logger.Errorf("%v", err)
	}
	return len(fired)
}

// ScheduledNotifications returns the pending reminders ordered by fire time.
func (s *Service) ScheduledNotifications() []models.ReminderTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// NotificationHistory returns the persisted email, SMS and activity logs.
func (s *Service) NotificationHistory(ctx context.Context) (models.History, error) {
	h, err := s.journal.History(ctx)
	if err != nil {
		return models.History{}, fmt.Errorf("notification history: %w", err)
	}
	return h, nil
}

// TestNotifications sends a confirmation and an admin notification for a
// synthetic booking tomorrow at 7:00 PM.
func (s *Service) TestNotifications(ctx context.Context) []models.Result {
	now := s.clock.Now().In(s.config.Scheduler.Location)
	b := models.BookingPayload{
		CustomerName:  "Test Customer",
		CustomerEmail: "test@example.com",
		CustomerPhone: "+1234567890",
		Restaurant: &models.Restaurant{
			Name:     "Test Restaurant",
			Location: "123 Test Street",
			Phone:    "+1987654321",
		},
		Date:          now.AddDate(0, 0, 1).Format(dateLayout),
		Time:          "7:00 PM",
		Guests:        2,
		ReservationID: fmt.Sprintf("TEST-%d", now.UnixMilli()),
	}

	return []models.Result{
		s.SendBookingConfirmation(ctx, b),
		s.SendAdminNotification(ctx, b, "new_booking"),
	}
}

func (s *Service) snapshotLocked() []models.ReminderTask {
	out := make([]models.ReminderTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out
}

// persistLocked writes the current pending set. Callers hold s.mu.
func (s *Service) persistLocked(ctx context.Context) error {
	if err := s.journal.SaveTasks(ctx, s.snapshotLocked()); err != nil {
		return fmt.Errorf("failed to persist scheduled notifications: %w", err)
	}
	return nil
}
