package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tazhate/weekping/config"
	"github.com/tazhate/weekping/internal/service"
)

const webhookPath = "/bot"

// Handler turns inbound interactions into replies.
type Handler interface {
	OnCommand(ctx context.Context, userID int64, name, args string) []service.Reply
	OnText(ctx context.Context, userID int64, text string) []service.Reply
	OnButton(ctx context.Context, userID int64, data string) []service.Reply
}

type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.Config
	handler Handler
	logger  *zap.Logger
	server  *http.Server
	updates chan tgbotapi.Update
}

func New(cfg *config.Config, handler Handler, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger = logger.Named("bot")
	logger.Info("authorized", zap.String("username", api.Self.UserName))

	bot := &Bot{
		api:     api,
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		updates: make(chan tgbotapi.Update, api.Buffer),
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	cfg := tgbotapi.NewSetMyCommands(menuCommands()...)
	if _, err := b.api.Request(cfg); err != nil {
		b.logger.Warn("set commands", zap.Error(err))
	}
}

// SetupWebhook registers the webhook with Telegram, or removes a stale one
// when the bot runs in polling mode.
func (b *Bot) SetupWebhook() error {
	if !b.cfg.UseWebhook() {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		return nil
	}

	webhookURL := b.cfg.WebhookURL + webhookPath

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	_, err = b.api.Request(wh)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		b.logger.Warn("webhook last error", zap.String("message", info.LastErrorMessage))
	}

	b.logger.Info("webhook set", zap.String("url", webhookURL))
	return nil
}

// routes serves the health and metrics endpoints, plus the webhook in
// webhook mode.
func (b *Bot) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	if b.cfg.UseWebhook() {
		mux.HandleFunc(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			update, err := b.api.HandleUpdate(r)
			if err != nil {
				b.logger.Warn("bad webhook update", zap.Error(err))
				http.Error(w, "bad update", http.StatusBadRequest)
				return
			}
			if !b.enqueue(r.Context(), *update) {
				http.Error(w, "shutting down", http.StatusServiceUnavailable)
			}
		})
	}
	return mux
}

// enqueue hands a webhook update to the receive loop. It gives up when ctx
// ends so a full queue cannot hold up the server shutdown.
func (b *Bot) enqueue(ctx context.Context, update tgbotapi.Update) bool {
	select {
	case b.updates <- update:
		return true
	case <-ctx.Done():
		b.logger.Warn("webhook update dropped", zap.Int("update_id", update.UpdateID), zap.Error(ctx.Err()))
		return false
	}
}

func (b *Bot) Start(ctx context.Context) error {
	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Requests end with the bot, Shutdown alone does not cancel them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		b.logger.Info("starting http server", zap.String("port", b.cfg.ServerPort))
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("http server", zap.Error(err))
		}
	}()

	updates := tgbotapi.UpdatesChannel(b.updates)
	if !b.cfg.UseWebhook() {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		b.logger.Info("polling for updates")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if !b.cfg.UseWebhook() {
		b.api.StopReceivingUpdates()
	}
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

// Notify delivers a scheduler notification. The chat id is the user id.
func (b *Bot) Notify(_ context.Context, userID int64, text string) error {
	return b.SendMessage(userID, text)
}
