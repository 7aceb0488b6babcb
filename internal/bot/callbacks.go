package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notesbot/internal/model"
)

const (
	cmdCheck    = "check"
	cmdFilters  = "filters"
	cmdRmFilter = "rmfilter"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	data := cb.Data
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return
	}
	action, arg := parts[0], parts[1]

	b.log.Debug("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
	)

	switch action {
	case "add":
		platform, ok := model.ParsePlatform(arg)
		if !ok {
			return
		}
		b.sessions.Set(chatID, State{Step: StepIdentifier, Platform: platform})
		b.reply(chatID, promptFor(platform))

	case "list":
		page, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		b.handleList(ctx, chatID, page)

	case "settings":
		b.toggleSetting(ctx, chatID, cb.Message.MessageID, arg)

	case cmdFilters:
		b.handleFilters(ctx, chatID, arg)
	case cmdCheck:
		b.handleCheck(ctx, chatID, arg)
	case cmdRmFilter:
		b.handleRmFilter(ctx, chatID, arg)
	case "noop":
	}
}

// toggleSetting flips one boolean preference and refreshes the settings
// message in place.
func (b *Bot) toggleSetting(ctx context.Context, chatID int64, messageID int, name string) {
	settings, err := b.store.GetOrCreateUserSettings(ctx, chatID)
	if err != nil {
		b.reply(chatID, "Failed to load your settings, try again later.")
		return
	}

	switch name {
	case "notify":
		settings.Notifications = !settings.Notifications
	case "autocat":
		settings.AutoCategorize = !settings.AutoCategorize
	default:
		return
	}

	if err := b.store.UpdateUserSettings(ctx, settings); err != nil {
		b.reply(chatID, "Failed to update settings, try again later.")
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, FormatSettings(settings))
	kb := settingsKeyboard(settings)
	edit.ReplyMarkup = &kb
	b.send(edit)
}
