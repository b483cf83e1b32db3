package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "STORAGE_DRIVER", "TIMEZONE",
	"CHECK_INTERVAL", "DEFAULT_LANGUAGE", "DIGEST_TIME", "WEBHOOK_URL",
	"SERVER_PORT", "SESSION_TTL", "LOG_LEVEL", "LOG_FORMAT",
	"CALDAV_URL", "CALDAV_USERNAME", "CALDAV_PASSWORD", "CALDAV_CALENDAR",
}

// clearEnv blanks every key so a developer's environment or .env cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	// Equivalent of t.Chdir (Go 1.24+) for older toolchains.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, "./data/weekping.db", cfg.DatabasePath)
	assert.Equal(t, "sqlite", cfg.StorageDriver)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone.String())
	assert.Equal(t, 300*time.Second, cfg.CheckInterval)
	assert.Equal(t, "DE", cfg.DefaultLanguage)
	assert.Equal(t, "07:00", cfg.DigestTime)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.UseWebhook())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CHECK_INTERVAL", "60")
	t.Setenv("DEFAULT_LANGUAGE", "en")
	t.Setenv("WEBHOOK_URL", "https://bot.example.org")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
	assert.Equal(t, "EN", cfg.DefaultLanguage)
	assert.True(t, cfg.UseWebhook())
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing token", "TELEGRAM_BOT_TOKEN", ""},
		{"unknown driver", "STORAGE_DRIVER", "postgres"},
		{"bad timezone", "TIMEZONE", "Mars/Olympus"},
		{"zero interval", "CHECK_INTERVAL", "0"},
		{"text interval", "CHECK_INTERVAL", "often"},
		{"bad digest time", "DIGEST_TIME", "7am"},
		{"bad session ttl", "SESSION_TTL", "-5"},
		{"bad log format", "LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
