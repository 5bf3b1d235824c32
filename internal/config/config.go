package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		URL string
	}
	Store struct {
		Driver         string
		ActivityLogCap int
		MessageLogCap  int
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Scheduler struct {
		PollInterval time.Duration
		ReminderLead time.Duration
		Location     *time.Location
	}
	Notification struct {
		AdminEmail        string
		EmailDelay        time.Duration
		SMSDelay          time.Duration
		SendRatePerSecond int
	}
}

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() (Config, error) {
	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Storage
	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.Redis.URL = os.Getenv("REDIS_URL")
	cfg.Store.Driver = os.Getenv("STORE_DRIVER")

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	cfg.Notification.AdminEmail = os.Getenv("ADMIN_EMAIL")

	var err error
	if cfg.Store.ActivityLogCap, err = intEnv("ACTIVITY_LOG_CAP", 1000); err != nil {
		return Config{}, err
	}
	if cfg.Store.MessageLogCap, err = intEnv("MESSAGE_LOG_CAP", 1000); err != nil {
		return Config{}, err
	}
	if cfg.Notification.SendRatePerSecond, err = intEnv("SEND_RATE_PER_SECOND", 20); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler.PollInterval, err = durationEnv("SCHEDULER_POLL_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Scheduler.ReminderLead, err = durationEnv("REMINDER_LEAD", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Notification.EmailDelay, err = durationEnv("EMAIL_DELAY", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Notification.SMSDelay, err = durationEnv("SMS_DELAY", 500*time.Millisecond); err != nil {
		return Config{}, err
	}

	cfg.Scheduler.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
		}
		cfg.Scheduler.Location = loc
	}

	// Apply defaults
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "booking_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "booking-notification-service"
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Notification.AdminEmail == "" {
		cfg.Notification.AdminEmail = "admin@restaurant.com"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	missing := []string{}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.URL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case DriverPostgres:
		if c.DB.DSN == "" {
			missing = append(missing, "DB_DSN")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configurations: %v", missing)
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("SCHEDULER_POLL_INTERVAL must be positive")
	}
	if c.Store.ActivityLogCap < 0 || c.Store.MessageLogCap < 0 {
		return fmt.Errorf("log caps must not be negative")
	}
	return nil
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	var cfg Config
	cfg.Store.Driver = DriverMemory
	cfg.Store.ActivityLogCap = 1000
	cfg.Store.MessageLogCap = 1000
	cfg.Kafka.Topic = "booking_events"
	cfg.Kafka.GroupID = "booking-notification-service"
	cfg.API.Port = ":8080"
	cfg.API.BasePath = "/api/v0"
	cfg.Logging.Dir = "logs"
	cfg.Logging.Level = "info"
	cfg.Scheduler.PollInterval = time.Minute
	cfg.Scheduler.ReminderLead = 24 * time.Hour
	cfg.Scheduler.Location = time.Local
	cfg.Notification.AdminEmail = "admin@restaurant.com"
	cfg.Notification.EmailDelay = time.Second
	cfg.Notification.SMSDelay = 500 * time.Millisecond
	cfg.Notification.SendRatePerSecond = 20
	return cfg
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
