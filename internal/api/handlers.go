package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/models"
)

// Notifier is the scheduler surface exposed over HTTP.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, b models.BookingPayload) models.Result
	SendBookingCancellation(ctx context.Context, b models.BookingPayload, reason string) models.Result
	SendBookingReminder(ctx context.Context, b models.BookingPayload) models.Result
	SendAdminNotification(ctx context.Context, b models.BookingPayload, kind string) models.Result
	ProcessScheduledNotifications(ctx context.Context) int
	ScheduledNotifications() []models.ReminderTask
	NotificationHistory(ctx context.Context) (models.History, error)
	TestNotifications(ctx context.Context) []models.Result
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	svc    Notifier
	store  Pinger
	logger *logging.Logger
}

func NewHandler(svc Notifier, store Pinger, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, store: store, logger: logger}
}

type cancellationRequest struct {
	Booking models.BookingPayload `json:"booking"`
	Reason  string                `json:"reason"`
}

type adminRequest struct {
	Booking models.BookingPayload `json:"booking"`
	Type    string                `json:"type"`
}

func (h *Handler) SendConfirmation(c *gin.Context) {
	var b models.BookingPayload
	if !h.bind(c, &b) {
		return
	}
	c.JSON(http.StatusOK, h.svc.SendBookingConfirmation(c.Request.Context(), b))
}

func (h *Handler) SendCancellation(c *gin.Context) {
	var req cancellationRequest
	if !h.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.SendBookingCancellation(c.Request.Context(), req.Booking, req.Reason))
}

func (h *Handler) SendReminder(c *gin.Context) {
	var b models.BookingPayload
	if !h.bind(c, &b) {
		return
	}
	c.JSON(http.StatusOK, h.svc.SendBookingReminder(c.Request.Context(), b))
}

func (h *Handler) SendAdmin(c *gin.Context) {
	var req adminRequest
	if !h.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.svc.SendAdminNotification(c.Request.Context(), req.Booking, req.Type))
}

func (h *Handler) GetHistory(c *gin.Context) {
	history, err := h.svc.NotificationHistory(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to get notification history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notification history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) GetScheduled(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ScheduledNotifications())
}

func (h *Handler) ProcessScheduled(c *gin.Context) {
	// A client hanging up must not abort reminders mid-scan.
	fired := h.svc.ProcessScheduledNotifications(context.WithoutCancel(c.Request.Context()))
	h.logger.Infof("Manual scan fired %d reminder(s)", fired)
	c.JSON(http.StatusOK, gin.H{"fired": fired})
}

func (h *Handler) RunTest(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.TestNotifications(c.Request.Context()))
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.logger.Errorf("Invalid request body for %s: %v", c.FullPath(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}
