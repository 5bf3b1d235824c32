package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/models"
)

// Keys of the four persisted collections.
const (
	KeySentEmails     = "sent_emails"
	KeySentSMS        = "sent_sms"
	KeyActivityLog    = "notification_logs"
	KeyScheduledTasks = "scheduled_notifications"
)

// KV is a string-keyed blob store. Get reports ok=false for a missing key.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Journal persists the notification logs and the pending reminder set as
// JSON lists on top of a KV. Appends are serialized by a mutex.
type Journal struct {
	kv          KV
	logger      *logging.Logger
	activityCap int
	messageCap  int

	mu     sync.Mutex
	lastID int64
}

// NewJournal creates a Journal. A cap of 0 leaves that collection unbounded.
func NewJournal(kv KV, logger *logging.Logger, activityCap, messageCap int) *Journal {
	return &Journal{
		kv:          kv,
		logger:      logger,
		activityCap: activityCap,
		messageCap:  messageCap,
	}
}

// NextID returns a millisecond-based id strictly greater than the last one issued.
func (j *Journal) NextID(now time.Time) int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	id := now.UnixMilli()
	if id <= j.lastID {
		id = j.lastID + 1
	}
	j.lastID = id
	return id
}

func (j *Journal) AppendEmail(ctx context.Context, rec models.EmailRecord) error {
	return appendCapped(ctx, j, KeySentEmails, rec, j.messageCap)
}

func (j *Journal) AppendSMS(ctx context.Context, rec models.SMSRecord) error {
	return appendCapped(ctx, j, KeySentSMS, rec, j.messageCap)
}

func (j *Journal) AppendLog(ctx context.Context, entry models.LogEntry) error {
	return appendCapped(ctx, j, KeyActivityLog, entry, j.activityCap)
}

func (j *Journal) Emails(ctx context.Context) ([]models.EmailRecord, error) {
	return load[models.EmailRecord](ctx, j, KeySentEmails)
}

func (j *Journal) SMS(ctx context.Context) ([]models.SMSRecord, error) {
	return load[models.SMSRecord](ctx, j, KeySentSMS)
}

func (j *Journal) Logs(ctx context.Context) ([]models.LogEntry, error) {
	return load[models.LogEntry](ctx, j, KeyActivityLog)
}

// History reads all three logs.
func (j *Journal) History(ctx context.Context) (models.History, error) {
	var h models.History
	var err error
	if h.Emails, err = j.Emails(ctx); err != nil {
		return models.History{}, err
	}
	if h.SMS, err = j.SMS(ctx); err != nil {
		return models.History{}, err
	}
	if h.Logs, err = j.Logs(ctx); err != nil {
		return models.History{}, err
	}
	return h, nil
}

func (j *Journal) LoadTasks(ctx context.Context) ([]models.ReminderTask, error) {
	return load[models.ReminderTask](ctx, j, KeyScheduledTasks)
}

// SaveTasks replaces the persisted reminder set.
func (j *Journal) SaveTasks(ctx context.Context, tasks []models.ReminderTask) error {
	if tasks == nil {
		tasks = []models.ReminderTask{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", KeyScheduledTasks, err)
	}
	if err := j.kv.Set(ctx, KeyScheduledTasks, data); err != nil {
		return fmt.Errorf("save %s: %w", KeyScheduledTasks, err)
	}
	return nil
}

func (j *Journal) Ping(ctx context.Context) error {
	return j.kv.Ping(ctx)
}

// load decodes the list under key. A missing key or corrupt JSON yields an
// empty list; only backend failures are returned.
func load[T any](ctx context.Context, j *Journal, key string) ([]T, error) {
	data, ok, err := j.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	items := []T{}
	if !ok || len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		j.logger.Warnf("Corrupt %s collection, using empty list: %v", key, err)
		return []T{}, nil
	}
	return items, nil
}

func appendCapped[T any](ctx context.Context, j *Journal, key string, item T, limit int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	items, err := load[T](ctx, j, key)
	if err != nil {
		return err
	}
	items = append(items, item)
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := j.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
