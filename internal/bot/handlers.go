package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/weekping/internal/service"
)

// target is where the replies to one update go. msgID is the message a
// pressed button belonged to, 0 for plain messages.
type target struct {
	chatID     int64
	msgID      int
	callbackID string
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	to, replies := b.route(ctx, update)
	if to.chatID == 0 {
		return
	}

	if to.callbackID != "" {
		if _, err := b.api.Request(tgbotapi.NewCallback(to.callbackID, "")); err != nil {
			b.logger.Debug("answer callback", zap.Error(err))
		}
	}

	for _, c := range renderReplies(to, replies) {
		if _, err := b.api.Send(c); err != nil {
			if strings.Contains(err.Error(), "message is not modified") {
				continue
			}
			b.logger.Warn("send reply", zap.Int64("user_id", to.chatID), zap.Error(err))
		}
	}
}

// route hands the update to the handler. Chats are the users of the
// handler, so a group shares one set of events.
func (b *Bot) route(ctx context.Context, update tgbotapi.Update) (target, []service.Reply) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil {
			return target{}, nil
		}
		to := target{chatID: msg.Chat.ID}

		if msg.IsCommand() {
			return to, b.handler.OnCommand(ctx, to.chatID, msg.Command(), msg.CommandArguments())
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return target{}, nil
		}
		return to, b.handler.OnText(ctx, to.chatID, text)

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil {
			return target{}, nil
		}
		to := target{
			chatID:     cb.Message.Chat.ID,
			msgID:      cb.Message.MessageID,
			callbackID: cb.ID,
		}
		return to, b.handler.OnButton(ctx, to.chatID, cb.Data)
	}
	return target{}, nil
}

// renderReplies converts handler replies into Bot API requests.
func renderReplies(to target, replies []service.Reply) []tgbotapi.Chattable {
	out := make([]tgbotapi.Chattable, 0, len(replies))
	for _, r := range replies {
		switch {
		case r.Document != nil:
			doc := tgbotapi.NewDocument(to.chatID, tgbotapi.FileBytes{Name: r.Document.Name, Bytes: r.Document.Data})
			doc.Caption = r.Text
			doc.ParseMode = tgbotapi.ModeHTML
			out = append(out, doc)

		case r.Edit && to.msgID != 0:
			edit := tgbotapi.NewEditMessageText(to.chatID, to.msgID, r.Text)
			edit.ParseMode = tgbotapi.ModeHTML
			if len(r.Buttons) > 0 {
				kb := inlineKeyboard(r.Buttons)
				edit.ReplyMarkup = &kb
			}
			out = append(out, edit)

		default:
			msg := tgbotapi.NewMessage(to.chatID, r.Text)
			msg.ParseMode = tgbotapi.ModeHTML
			if len(r.Buttons) > 0 {
				msg.ReplyMarkup = inlineKeyboard(r.Buttons)
			}
			out = append(out, msg)
		}
	}
	return out
}
