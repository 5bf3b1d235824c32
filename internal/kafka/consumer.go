package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/models"
)

// Booking lifecycle events understood by the consumer.
const (
	EventBookingConfirmed  = "booking_confirmed"
	EventBookingCancelled  = "booking_cancelled"
	EventBookingReminder   = "booking_reminder"
	EventAdminNotification = "admin_notification"
)

var ErrUnknownEvent = errors.New("unknown booking event")

// Event is the JSON body of a booking_events message.
type Event struct {
	Event   string                `json:"event"`
	Booking models.BookingPayload `json:"booking"`
	Reason  string                `json:"reason,omitempty"`
	Type    string                `json:"type,omitempty"`
}

// Dispatcher receives decoded booking events.
type Dispatcher interface {
	SendBookingConfirmation(ctx context.Context, b models.BookingPayload) models.Result
	SendBookingCancellation(ctx context.Context, b models.BookingPayload, reason string) models.Result
	SendBookingReminder(ctx context.Context, b models.BookingPayload) models.Result
	SendAdminNotification(ctx context.Context, b models.BookingPayload, kind string) models.Result
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
	svc    Dispatcher
	logger *logging.Logger
	topic  string
}

func NewConsumer(brokers []string, topic, groupID string, svc Dispatcher, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	return &Consumer{reader: r, svc: svc, logger: logger, topic: topic}
}

// Start reads messages until ctx is cancelled. Every message is committed
// once handled, including the ones that are skipped as malformed.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.topic)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			if err := c.handleMessage(ctx, msg.Value); err != nil {
				c.logger.Errorf("Skipping message at offset %d: %v", msg.Offset, err)
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte) error {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	var res models.Result
	switch ev.Event {
	case EventBookingConfirmed:
		res = c.svc.SendBookingConfirmation(ctx, ev.Booking)
	case EventBookingCancelled:
		res = c.svc.SendBookingCancellation(ctx, ev.Booking, ev.Reason)
	case EventBookingReminder:
		res = c.svc.SendBookingReminder(ctx, ev.Booking)
	case EventAdminNotification:
		res = c.svc.SendAdminNotification(ctx, ev.Booking, ev.Type)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Event)
	}

	if !res.Success {
		c.logger.Warnf("Event %s for %s failed: %s", ev.Event, ev.Booking.ReservationID, res.Error)
		return nil
	}
	c.logger.Infof("Processed %s for %s", ev.Event, ev.Booking.ReservationID)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
