package api

import (
	"github.com/gin-gonic/gin"

	"booking-notification-service/internal/config"
	"booking-notification-service/internal/logging"
)

func NewRouter(svc Notifier, store Pinger, hub *ActivityHub, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	h := NewHandler(svc, store, logger)
	r.GET("/health", h.Health)

	api := r.Group(cfg.API.BasePath)
	{
		// Dispatch
		api.POST("/notifications/confirmation", h.SendConfirmation)
		api.POST("/notifications/cancellation", h.SendCancellation)
		api.POST("/notifications/reminder", h.SendReminder)
		api.POST("/notifications/admin", h.SendAdmin)
		api.POST("/notifications/test", h.RunTest)

		// Scheduler
		api.GET("/notifications/scheduled", h.GetScheduled)
		api.POST("/notifications/process", h.ProcessScheduled)

		// History
		api.GET("/notifications/history", h.GetHistory)
		api.GET("/ws/activity", func(c *gin.Context) {
			hub.Serve(c.Writer, c.Request)
		})
	}
	return r
}
