package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "app:\n  name: parkflow-test\n"))
	require.NoError(t, err)

	assert.Equal(t, "parkflow-test", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "inr", cfg.Payment.Currency)
	assert.Equal(t, 50.0, cfg.Payment.MinimumAmount)
	assert.Equal(t, 0.5, cfg.Payment.RefundRate)
	assert.Equal(t, 3000.0, cfg.Payment.SubscriptionFee)
	assert.Equal(t, time.Minute, cfg.Expiry.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Expiry.WarningWindow)
	assert.Equal(t, 30*time.Minute, cfg.Expiry.HoldTTL)
	assert.Equal(t, 3, cfg.Expiry.UnhealthyAfter)
	assert.Equal(t, "parkflow:realtime", cfg.Redis.RealtimeChannel)
}

func TestLoadFile_EnvAliases(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("QR_SECRET", "qr-env")
	t.Setenv("APP_EXPIRY_BATCH_SIZE", "25")

	cfg, err := LoadFile(writeConfig(t, "database:\n  url: postgres://file/db\nexpiry:\n  interval: 30s\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "qr-env", cfg.QR.Secret)
	assert.Equal(t, 25, cfg.Expiry.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Expiry.Interval)
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "memory"},
		Queue:    QueueConfig{Driver: "nats"},
		JWT:      JWTConfig{Secret: "jwt"},
		QR:       QRConfig{Secret: "qr"},
		Expiry:   ExpiryConfig{Interval: time.Minute, BatchSize: 100},
		Payment:  PaymentConfig{RefundRate: 0.5},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing qr secret", func(c *Config) { c.QR.Secret = "" }, "qr.secret"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret"},
		{"zero sweep interval", func(c *Config) { c.Expiry.Interval = 0 }, "expiry.interval"},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }, "database.url"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, "database.driver"},
		{"unknown queue", func(c *Config) { c.Queue.Driver = "kafka" }, "queue.driver"},
		{"refund rate above one", func(c *Config) { c.Payment.RefundRate = 1.5 }, "refund_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
