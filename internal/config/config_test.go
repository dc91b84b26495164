package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetbridge/meetbridge/internal/errs"
)

func validConfig() Config {
	return Config{
		ListenAddr:        DefaultListenAddr,
		MetricsAddr:       DefaultMetricsAddr,
		WebhookSecret:     "whsec",
		ZoomAccountID:     "acc-1",
		ZoomClientID:      "client-1",
		ZoomClientSecret:  "secret-1",
		ZoomBaseURL:       DefaultZoomBaseURL,
		ZoomTokenURL:      DefaultZoomTokenURL,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Store:             StoreNATS,
		NATSURL:           DefaultNATSURL,
		RetentionDays:     DefaultRetentionDays,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ZOOM_ACCOUNT_ID", "acc-1")
	t.Setenv("ZOOM_CLIENT_ID", "client-1")
	t.Setenv("ZOOM_CLIENT_SECRET", "secret-1")

	cfg := Load()

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
	assert.Equal(t, DefaultZoomBaseURL, cfg.ZoomBaseURL)
	assert.Equal(t, DefaultZoomTokenURL, cfg.ZoomTokenURL)
	assert.Equal(t, StoreNATS, cfg.Store)
	assert.Equal(t, DefaultNATSURL, cfg.NATSURL)
	assert.Equal(t, DefaultRetentionDays, cfg.RetentionDays)
	assert.Equal(t, DefaultRequestsPerSecond, cfg.RequestsPerSecond)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEETBRIDGE_LISTEN_ADDR", ":9999")
	t.Setenv("MEETBRIDGE_STORE", "memory")
	t.Setenv("MEETBRIDGE_RETENTION_DAYS", "30")
	t.Setenv("ZOOM_REQUESTS_PER_SECOND", "2.5")

	cfg := Load()

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
}

func TestLoadInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MEETBRIDGE_RETENTION_DAYS", "not-a-number")
	t.Setenv("ZOOM_REQUESTS_PER_SECOND", "also-not")

	cfg := Load()

	assert.Equal(t, DefaultRetentionDays, cfg.RetentionDays)
	assert.Equal(t, DefaultRequestsPerSecond, cfg.RequestsPerSecond)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing account id",
			mutate:  func(c *Config) { c.ZoomAccountID = "" },
			wantErr: "ZOOM_ACCOUNT_ID",
		},
		{
			name:    "missing client id",
			mutate:  func(c *Config) { c.ZoomClientID = "" },
			wantErr: "ZOOM_CLIENT_ID",
		},
		{
			name:    "missing client secret",
			mutate:  func(c *Config) { c.ZoomClientSecret = "" },
			wantErr: "ZOOM_CLIENT_SECRET",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store = "postgres" },
			wantErr: "store must be",
		},
		{
			name: "nats store without url",
			mutate: func(c *Config) {
				c.Store = StoreNATS
				c.NATSURL = ""
			},
			wantErr: "NATS_URL",
		},
		{
			name:    "non-positive retention",
			mutate:  func(c *Config) { c.RetentionDays = 0 },
			wantErr: "retention",
		},
		{
			name:    "non-positive pacing",
			mutate:  func(c *Config) { c.RequestsPerSecond = 0 },
			wantErr: "requests per second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.IsType(t, errs.Configuration{}, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServeRequiresWebhookSecret(t *testing.T) {
	cfg := validConfig()
	cfg.WebhookSecret = ""

	err := cfg.ValidateServe()
	require.Error(t, err)
	assert.IsType(t, errs.Configuration{}, err)
	assert.Contains(t, err.Error(), "ZOOM_WEBHOOK_SECRET")

	cfg.WebhookSecret = "whsec"
	assert.NoError(t, cfg.ValidateServe())
}

func TestMemoryStoreDoesNotRequireNATS(t *testing.T) {
	cfg := validConfig()
	cfg.Store = StoreMemory
	cfg.NATSURL = ""

	assert.NoError(t, cfg.Validate())
}

func TestRetention(t *testing.T) {
	cfg := validConfig()
	cfg.RetentionDays = 30

	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
}
