package config

import (
	"os"
	"strconv"
	"time"

	"github.com/meetbridge/meetbridge/internal/errs"
)

// Defaults for optional settings.
const (
	DefaultListenAddr  = ":8080"
	DefaultMetricsAddr = ":9090"

	DefaultZoomBaseURL  = "https://api.zoom.us/v2"
	DefaultZoomTokenURL = "https://zoom.us/oauth/token"

	DefaultNATSURL = "nats://localhost:4222"

	DefaultRetentionDays     = 365
	DefaultRequestsPerSecond = 8.0
)

// Store backends.
const (
	StoreNATS   = "nats"
	StoreMemory = "memory"
)

// Config holds everything the serve, backfill and sweep commands need.
// Flags override environment variables; Load fills from the environment
// and the commands overlay flag values before calling Validate.
type Config struct {
	// HTTP surfaces
	ListenAddr  string
	MetricsAddr string

	// Webhook signing secret shared with the platform.
	WebhookSecret string

	// SchedulerToken authorizes the retention endpoint. Empty disables the
	// endpoint entirely.
	SchedulerToken string

	// Platform admin credentials (server-to-server app).
	ZoomAccountID    string
	ZoomClientID     string
	ZoomClientSecret string
	ZoomBaseURL      string
	ZoomTokenURL     string

	// RequestsPerSecond paces all outbound platform calls.
	RequestsPerSecond float64

	// Ledger store
	Store       string
	NATSURL     string
	NATSTimeout time.Duration

	// Retention window for the sweeper.
	RetentionDays int
}

// Load builds a Config from the environment. Validation is separate so
// commands can overlay flag values first.
func Load() Config {
	return Config{
		ListenAddr:  getEnv("MEETBRIDGE_LISTEN_ADDR", DefaultListenAddr),
		MetricsAddr: getEnv("MEETBRIDGE_METRICS_ADDR", DefaultMetricsAddr),

		WebhookSecret:  os.Getenv("ZOOM_WEBHOOK_SECRET"),
		SchedulerToken: os.Getenv("MEETBRIDGE_SCHEDULER_TOKEN"),

		ZoomAccountID:    os.Getenv("ZOOM_ACCOUNT_ID"),
		ZoomClientID:     os.Getenv("ZOOM_CLIENT_ID"),
		ZoomClientSecret: os.Getenv("ZOOM_CLIENT_SECRET"),
		ZoomBaseURL:      getEnv("ZOOM_BASE_URL", DefaultZoomBaseURL),
		ZoomTokenURL:     getEnv("ZOOM_TOKEN_URL", DefaultZoomTokenURL),

		RequestsPerSecond: getEnvFloat("ZOOM_REQUESTS_PER_SECOND", DefaultRequestsPerSecond),

		Store:       getEnv("MEETBRIDGE_STORE", StoreNATS),
		NATSURL:     getEnv("NATS_URL", DefaultNATSURL),
		NATSTimeout: 10 * time.Second,

		RetentionDays: getEnvInt("MEETBRIDGE_RETENTION_DAYS", DefaultRetentionDays),
	}
}

// Validate checks the settings every command depends on. Missing secrets are
// fatal at startup rather than at first use.
func (c Config) Validate() error {
	if c.ZoomAccountID == "" {
		return errs.NewConfiguration("ZOOM_ACCOUNT_ID is required")
	}
	if c.ZoomClientID == "" {
		return errs.NewConfiguration("ZOOM_CLIENT_ID is required")
	}
	if c.ZoomClientSecret == "" {
		return errs.NewConfiguration("ZOOM_CLIENT_SECRET is required")
	}
	if c.Store != StoreNATS && c.Store != StoreMemory {
		return errs.NewConfiguration("store must be nats or memory")
	}
	if c.Store == StoreNATS && c.NATSURL == "" {
		return errs.NewConfiguration("NATS_URL is required")
	}
	if c.RetentionDays <= 0 {
		return errs.NewConfiguration("retention days must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return errs.NewConfiguration("requests per second must be positive")
	}
	return nil
}

// ValidateServe adds the serve-only requirements on top of Validate.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.WebhookSecret == "" {
		return errs.NewConfiguration("ZOOM_WEBHOOK_SECRET is required")
	}
	return nil
}

// Retention converts the configured day count into a duration.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
