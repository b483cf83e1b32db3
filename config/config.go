package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken   string
	DatabasePath    string
	StorageDriver   string
	Timezone        *time.Location
	CheckInterval   time.Duration
	DefaultLanguage string
	DigestTime      string
	WebhookURL      string
	ServerPort      string
	SessionTTL      time.Duration
	LogLevel        string
	LogFormat       string

	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
}

func Load() (*Config, error) {
	// .env is optional, real deployments set the environment directly.
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	driver := strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "memory" {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: want sqlite or memory", driver)
	}

	tz, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", "Europe/Berlin"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	interval, err := positiveInt("CHECK_INTERVAL", 300)
	if err != nil {
		return nil, err
	}
	ttl, err := positiveInt("SESSION_TTL", 30)
	if err != nil {
		return nil, err
	}

	digest := getEnvOrDefault("DIGEST_TIME", "07:00")
	if _, err := time.Parse("15:04", digest); err != nil {
		return nil, fmt.Errorf("invalid DIGEST_TIME %q: want HH:MM", digest)
	}

	logFormat := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json"))
	if logFormat != "json" && logFormat != "console" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or console", logFormat)
	}

	return &Config{
		TelegramToken:   token,
		DatabasePath:    getEnvOrDefault("DATABASE_PATH", "./data/weekping.db"),
		StorageDriver:   driver,
		Timezone:        tz,
		CheckInterval:   time.Duration(interval) * time.Second,
		DefaultLanguage: strings.ToUpper(getEnvOrDefault("DEFAULT_LANGUAGE", "DE")),
		DigestTime:      digest,
		WebhookURL:      os.Getenv("WEBHOOK_URL"),
		ServerPort:      getEnvOrDefault("SERVER_PORT", "8080"),
		SessionTTL:      time.Duration(ttl) * time.Minute,
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       logFormat,

		CalDAVURL:      os.Getenv("CALDAV_URL"),
		CalDAVUsername: os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword: os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendar: os.Getenv("CALDAV_CALENDAR"),
	}, nil
}

// UseWebhook reports whether updates arrive by webhook instead of long polling.
func (c *Config) UseWebhook() bool {
	return c.WebhookURL != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func positiveInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, raw)
	}
	return n, nil
}
