package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/weekping/config"
	"github.com/tazhate/weekping/internal/service"
)

type call struct {
	kind   string
	userID int64
	name   string
	arg    string
}

type fakeHandler struct {
	calls []call
}

func (f *fakeHandler) OnCommand(_ context.Context, userID int64, name, args string) []service.Reply {
	f.calls = append(f.calls, call{"command", userID, name, args})
	return []service.Reply{{Text: "cmd"}}
}

func (f *fakeHandler) OnText(_ context.Context, userID int64, text string) []service.Reply {
	f.calls = append(f.calls, call{"text", userID, "", text})
	return []service.Reply{{Text: "txt"}}
}

func (f *fakeHandler) OnButton(_ context.Context, userID int64, data string) []service.Reply {
	f.calls = append(f.calls, call{"button", userID, "", data})
	return []service.Reply{{Text: "btn", Edit: true}}
}

func newTestBot() (*Bot, *fakeHandler) {
	h := &fakeHandler{}
	return &Bot{cfg: &config.Config{}, handler: h, logger: zap.NewNop()}, h
}

func TestRouteCommand(t *testing.T) {
	b, h := newTestBot()
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 42},
		Text:     "/new Dentist",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 4}},
	}}

	to, replies := b.route(context.Background(), update)

	assert.Equal(t, target{chatID: 42}, to)
	require.Len(t, replies, 1)
	assert.Equal(t, []call{{"command", 42, "new", "Dentist"}}, h.calls)
}

func TestRouteText(t *testing.T) {
	b, h := newTestBot()

	to, _ := b.route(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
		Text: "  Dentist  ",
	}})
	assert.Equal(t, int64(42), to.chatID)
	assert.Equal(t, []call{{"text", 42, "", "Dentist"}}, h.calls)

	// stickers, photos and the like carry no text
	to, replies := b.route(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: 42},
	}})
	assert.Zero(t, to.chatID)
	assert.Nil(t, replies)
	assert.Len(t, h.calls, 1)
}

func TestRouteCallback(t *testing.T) {
	b, h := newTestBot()
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		Data: "alt:field:name",
		Message: &tgbotapi.Message{
			MessageID: 7,
			Chat:      &tgbotapi.Chat{ID: -100},
		},
	}}

	to, replies := b.route(context.Background(), update)

	assert.Equal(t, target{chatID: -100, msgID: 7, callbackID: "cb-1"}, to)
	require.Len(t, replies, 1)
	assert.Equal(t, []call{{"button", -100, "", "alt:field:name"}}, h.calls)
}

func TestRouteIgnoresOtherUpdates(t *testing.T) {
	b, h := newTestBot()
	to, replies := b.route(context.Background(), tgbotapi.Update{UpdateID: 1})
	assert.Zero(t, to.chatID)
	assert.Nil(t, replies)
	assert.Empty(t, h.calls)
}

func TestRenderReplies(t *testing.T) {
	buttons := [][]service.Button{{{Label: "Yes", Data: "del:yes"}, {Label: "No", Data: "del:no"}}}
	replies := []service.Reply{
		{Text: "plain", Buttons: buttons},
		{Text: "edited", Buttons: buttons, Edit: true},
		{Text: "caption", Document: &service.Document{Name: "weekping.ics", Data: []byte("BEGIN:VCALENDAR")}},
	}

	out := renderReplies(target{chatID: 42, msgID: 7}, replies)
	require.Len(t, out, 3)

	msg, ok := out[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "plain", msg.Text)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "del:no", *kb.InlineKeyboard[0][1].CallbackData)

	edit, ok := out[1].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 7, edit.MessageID)
	require.NotNil(t, edit.ReplyMarkup)

	doc, ok := out[2].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, "caption", doc.Caption)

	// without a message to edit, an edit becomes a new message
	out = renderReplies(target{chatID: 42}, []service.Reply{{Text: "edited", Edit: true}})
	_, ok = out[0].(tgbotapi.MessageConfig)
	assert.True(t, ok)
}

func TestHealthAndMetrics(t *testing.T) {
	b, _ := newTestBot()
	srv := httptest.NewServer(b.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/bot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no webhook route in polling mode")
}

func TestWebhookDoesNotBlockOnFullQueue(t *testing.T) {
	b, _ := newTestBot()
	b.api = &tgbotapi.BotAPI{}
	b.cfg.WebhookURL = "https://example.org"
	b.updates = make(chan tgbotapi.Update) // nobody receives

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(`{"update_id": 5}`)).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.routes().ServeHTTP(rec, req)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("webhook handler still blocked after its context ended")
	}
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnqueue(t *testing.T) {
	b, _ := newTestBot()
	b.updates = make(chan tgbotapi.Update, 1)

	assert.True(t, b.enqueue(context.Background(), tgbotapi.Update{UpdateID: 1}))
	assert.Equal(t, 1, (<-b.updates).UpdateID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.updates = make(chan tgbotapi.Update)
	assert.False(t, b.enqueue(ctx, tgbotapi.Update{UpdateID: 2}))
}
