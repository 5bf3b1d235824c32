package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"booking-notification-service/internal/api"
	"booking-notification-service/internal/clock"
	"booking-notification-service/internal/config"
	"booking-notification-service/internal/db"
	"booking-notification-service/internal/kafka"
	"booking-notification-service/internal/logging"
	"booking-notification-service/internal/notification"
	"booking-notification-service/internal/providers"
	"booking-notification-service/internal/store"
	"booking-notification-service/internal/utils"
)

const redisKeyPrefix = "booking-notifications:"

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to storage
	kv, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("Failed to open %s store: %v", cfg.Store.Driver, err)
		log.Fatalf("Store connection failed: %v", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Errorf("Store close failed: %v", err)
		}
	}()

	journal := store.NewJournal(kv, logger, cfg.Store.ActivityLogCap, cfg.Store.MessageLogCap)
	clk := clock.NewRealClock()
	email := providers.NewEmailSender(journal, clk, logger, cfg.Notification.EmailDelay, cfg.Notification.SendRatePerSecond)
	sms := providers.NewSMSSender(journal, clk, logger, cfg.Notification.SMSDelay, cfg.Notification.SendRatePerSecond)

	// Initialize notification service
	svc := notification.New(journal, email, sms, clk, logger, cfg)
	hub := api.NewActivityHub(logger)
	svc.OnActivity(hub.Broadcast)
	if err := svc.LoadScheduledNotifications(ctx); err != nil {
		logger.Errorf("Failed to restore scheduled notifications: %v", err)
	}

	var wg sync.WaitGroup
	svc.Start(&wg)

	// Initialize Kafka consumer
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc, logger)
		consumer.Start(ctx, &wg)
	} else {
		logger.Infof("KAFKA_BROKER not set, booking event consumer disabled")
	}

	// Start API server
	router := api.NewRouter(svc, journal, hub, logger, cfg)
	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	svc.Stop()
	wg.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Kafka consumer close failed: %v", err)
		}
	}
	logger.Infof("Service stopped")
}

// openStore connects the configured backend, retrying while it comes up.
func openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (store.KV, error) {
	var kv store.KV
	connect := func() error {
		var err error
		switch cfg.Store.Driver {
		case config.DriverRedis:
			kv, err = store.NewRedisKV(ctx, cfg.Redis.URL, redisKeyPrefix)
		case config.DriverPostgres:
			kv, err = db.New(ctx, cfg.DB.DSN)
		default:
			kv = store.NewMemoryKV()
		}
		return err
	}
	if err := utils.Retry(ctx, logger, 5, 2*time.Second, connect); err != nil {
		return nil, err
	}
	logger.Infof("Using %s store", cfg.Store.Driver)
	return kv, nil
}
