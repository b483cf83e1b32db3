package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tazhate/weekping/config"
	"github.com/tazhate/weekping/internal/bot"
	"github.com/tazhate/weekping/internal/clients/caldav"
	"github.com/tazhate/weekping/internal/dialog"
	"github.com/tazhate/weekping/internal/i18n"
	"github.com/tazhate/weekping/internal/scheduler"
	"github.com/tazhate/weekping/internal/service"
	"github.com/tazhate/weekping/internal/storage"
)

type eventStore interface {
	service.Store
	scheduler.Store
	SetDefaultLanguage(lang string)
	Close() error
}

func main() {
	// Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}
	defer store.Close()
	store.SetDefaultLanguage(cfg.DefaultLanguage)

	cat, err := i18n.New(cfg.DefaultLanguage)
	if err != nil {
		logger.Fatal("failed to load translations", zap.Error(err))
	}

	// Services
	format := service.NewFormatter(cat, cfg.Timezone)
	sessions := dialog.NewManager()
	handler := service.NewEventHandler(store, sessions, format, logger)

	sched := scheduler.New(cfg, store, format, logger)
	sched.SetSessions(sessions)

	mirror := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar)
	if mirror.IsConfigured() {
		mirror.SetClock(func() time.Time { return time.Now().In(cfg.Timezone) })
		handler.SetMirror(mirror)
		sched.SetMirror(mirror)
		logger.Info("caldav mirror enabled", zap.String("url", cfg.CalDAVURL))
	}

	// Bot
	tgBot, err := bot.New(cfg, handler, logger)
	if err != nil {
		logger.Fatal("failed to init bot", zap.Error(err))
	}

	if err := tgBot.SetupWebhook(); err != nil {
		logger.Fatal("failed to setup webhook", zap.Error(err))
	}
	sched.SetSender(tgBot)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			logger.Error("scheduler error", zap.Error(err))
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			logger.Error("bot error", zap.Error(err))
		}
	}()

	logger.Info("weekping started",
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("webhook", cfg.UseWebhook()))

	// Wait for a shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping bot", zap.Error(err))
	}

	logger.Info("weekping stopped")
}

func openStore(cfg *config.Config) (eventStore, error) {
	if cfg.StorageDriver == "memory" {
		return storage.NewMemory(), nil
	}
	return storage.New(cfg.DatabasePath)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
