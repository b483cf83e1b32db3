package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/weekping/internal/service"
)

func inlineKeyboard(rows [][]service.Button) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		kb = append(kb, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

func menuCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "new", Description: "➕ New event"},
		{Command: "list", Description: "📋 Your events"},
		{Command: "config", Description: "⚙️ Settings"},
		{Command: "export", Description: "📅 Export as .ics"},
		{Command: "cancel", Description: "✖️ Cancel the current dialog"},
		{Command: "help", Description: "❓ Help"},
	}
}
