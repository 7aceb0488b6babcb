// Package bot implements the Telegram chat surface: commands, inline
// keyboards, and the per-user conversation flows.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notesbot/internal/config"
	"notesbot/internal/model"
	"notesbot/internal/pipeline"
	"notesbot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Runner executes one ingestion run on demand, for /check.
type Runner interface {
	Run(ctx context.Context, sub model.Subscription, since time.Time) pipeline.Result
}

// Bot is the Telegram bot that handles user commands and conversation flows.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	runner   Runner
	sessions *Sessions
	cfg      *config.Config
	log      *slog.Logger
}

// New creates a Bot with the given Telegram token, storage, and config.
func New(token string, store storage.Storage, runner Runner, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:      api,
		store:    store,
		runner:   runner,
		sessions: NewSessions(),
		cfg:      cfg,
		log:      log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
// Each update is handled in its own goroutine under the sender's session
// lock, so events from one user are processed in order while different
// users proceed concurrently.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			return
		}
		release := b.sessions.Acquire(cb.Message.Chat.ID)
		defer release()
		b.handleCallback(ctx, cb)

	case update.Message != nil:
		msg := update.Message
		if !b.cfg.IsUserAllowed(msg.From.ID) {
			b.reply(msg.Chat.ID, "Access denied.")
			return
		}
		release := b.sessions.Acquire(msg.Chat.ID)
		defer release()
		b.handleMessage(ctx, msg)
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("send", "error", err)
	}
}

// handleMessage routes one incoming message. A pending conversation slot
// takes precedence over everything except /start, /help, and /cancel,
// which always interrupt and clear the slot.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID

	state := b.sessions.Get(userID)
	if state.Pending() {
		if isInterrupt(msg) {
			b.sessions.Clear(userID)
		} else {
			b.handleStateInput(ctx, userID, msg, state)
			return
		}
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.ForwardDate != 0:
		b.captureForwarded(ctx, userID, msg)
	case len([]rune(strings.TrimSpace(msg.Text))) > 10:
		b.captureManualNote(ctx, userID, msg.Text)
	default:
		b.reply(userID, "Send a longer text to save it as a note, or use /help.")
	}
}

// isInterrupt reports whether the message is one of the commands that
// always abort a pending conversation flow.
func isInterrupt(msg *tgbotapi.Message) bool {
	if !msg.IsCommand() {
		return false
	}
	switch msg.Command() {
	case "start", "help", "cancel":
		return true
	}
	return false
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(chatID)
	case "add":
		b.handleAdd(ctx, chatID, args)
	case "list":
		b.handleList(ctx, chatID, 1)
	case "sources":
		b.handleSources(ctx, chatID)
	case "search":
		b.handleSearch(ctx, chatID, args)
	case "note":
		b.handleNote(ctx, chatID, args)
	case "stats":
		b.handleStats(ctx, chatID)
	case "settings":
		b.handleSettings(ctx, chatID)
	case "cancel":
		b.handleCancel(chatID)
	case "pause":
		b.handlePause(ctx, chatID, args)
	case "resume":
		b.handleResume(ctx, chatID, args)
	case "remove":
		b.handleRemove(ctx, chatID, args)
	case "interval":
		b.handleInterval(ctx, chatID, args)
	case cmdCheck:
		b.handleCheck(ctx, chatID, args)
	case cmdFilters:
		b.handleFilters(ctx, chatID, args)
	case "include":
		b.handleAddFilter(ctx, chatID, args, "include")
	case "exclude":
		b.handleAddFilter(ctx, chatID, args, "exclude")
	case "include_re":
		b.handleAddFilter(ctx, chatID, args, "include_re")
	case "exclude_re":
		b.handleAddFilter(ctx, chatID, args, "exclude_re")
	case cmdRmFilter:
		b.handleRmFilter(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
