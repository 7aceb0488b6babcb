package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notesbot/internal/filter"
	"notesbot/internal/model"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	// Settings are created lazily on first contact.
	if _, err := b.store.GetOrCreateUserSettings(ctx, chatID); err != nil {
		b.log.Error("create settings", "user_id", chatID, "error", err)
	}

	b.reply(chatID, `Welcome to Notes Collector Bot!

I collect posts from your favorite sources into one searchable place.

Quick start:
1. /add - subscribe to a source (Telegram, Twitter, Reddit, YouTube, VK, RSS, web)
2. /list - read your collected notes
3. /search - find notes by keyword

You can also forward me a message or just send text to save it as a note.

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Collecting:
/add - subscribe to a new source
/list - show your notes, newest first
/search - find notes by keyword
/note - save a text as a manual note
/stats - note counts by platform and status
/settings - notification and categorization preferences
/cancel - abort the current dialog

Source management:
/sources - show all subscriptions
/pause <id> - stop checking a source
/resume <id> - resume checking
/remove <id> - delete a subscription
/interval <id> <min> - set check interval (1-1440)
/check <id> - force a check now

Filter management:
/filters <id> - show filters for a subscription
/include <id> [-s scope] <word> - keep only matching items
/exclude <id> [-s scope] <word> - drop matching items
/include_re <id> [-s scope] <regex> - keep by regex
/exclude_re <id> [-s scope] <regex> - drop by regex
/rmfilter <filter_id> - remove a filter

Scope flag: -s title | content | all (default: all)`)
}

// handleAdd starts the add-source flow. With an argument of the form
// "<platform> <identifier>" the flow completes in one step; without
// arguments the platform keyboard is shown.
func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	if args != "" {
		platform, rest, ok := splitPlatformArg(args)
		if !ok {
			b.reply(chatID, "Unknown platform. Use /add without arguments to pick one.")
			return
		}
		if rest == "" {
			b.sessions.Set(chatID, State{Step: StepIdentifier, Platform: platform})
			b.reply(chatID, promptFor(platform))
			return
		}
		b.completeAddSource(ctx, chatID, platform, rest)
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Choose a platform to follow:")
	msg.ReplyMarkup = platformKeyboard()
	b.send(msg)
}

func (b *Bot) handleList(ctx context.Context, chatID int64, page int) {
	settings, err := b.store.GetOrCreateUserSettings(ctx, chatID)
	if err != nil {
		b.reply(chatID, "Failed to load your settings, try again later.")
		return
	}

	perPage := settings.ItemsPerPage
	total, err := b.store.CountNotes(ctx, chatID, model.StatusNew)
	if err != nil {
		b.reply(chatID, "Failed to load notes, try again later.")
		return
	}
	if total == 0 {
		b.reply(chatID, "You have no notes yet. Use /add to follow a source, or forward me a message.")
		return
	}

	lastPage := (total + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	if page > lastPage {
		page = lastPage
	}

	notes, err := b.store.ListNotes(ctx, chatID, model.StatusNew, page, perPage)
	if err != nil {
		b.reply(chatID, "Failed to load notes, try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatNotesPage(notes, page, total, perPage))
	msg.DisableWebPagePreview = true
	if kb, ok := listKeyboard(page, lastPage); ok {
		msg.ReplyMarkup = kb
	}
	b.send(msg)
}

func (b *Bot) handleSources(ctx context.Context, chatID int64) {
	subs, err := b.store.ListSubscriptions(ctx, chatID)
	if err != nil {
		b.reply(chatID, "Failed to load subscriptions, try again later.")
		return
	}
	b.reply(chatID, FormatSources(subs))
}

// handleSearch with an argument searches immediately; without one it asks
// for a keyword and waits.
func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	if args != "" {
		b.completeSearch(ctx, chatID, args)
		return
	}
	b.sessions.Set(chatID, State{Step: StepKeyword})
	b.reply(chatID, "Enter a keyword to search your notes:")
}

func (b *Bot) handleNote(ctx context.Context, chatID int64, args string) {
	if args != "" {
		b.captureManualNote(ctx, chatID, args)
		return
	}
	b.sessions.Set(chatID, State{Step: StepNoteContent})
	b.reply(chatID, "Send the text you want to save as a note:")
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	stats, err := b.store.NoteStats(ctx, chatID)
	if err != nil {
		b.reply(chatID, "Failed to load stats, try again later.")
		return
	}
	b.reply(chatID, FormatStats(stats))
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64) {
	settings, err := b.store.GetOrCreateUserSettings(ctx, chatID)
	if err != nil {
		b.reply(chatID, "Failed to load your settings, try again later.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatSettings(settings))
	msg.ReplyMarkup = settingsKeyboard(settings)
	b.send(msg)
}

func (b *Bot) handleCancel(chatID int64) {
	// A pending slot was already cleared by the interrupt check.
	b.reply(chatID, "Cancelled. What next? Try /add or /list.")
}

// ownedSubscription loads a subscription and verifies it belongs to the
// user. Missing and foreign subscriptions are indistinguishable to the
// caller.
func (b *Bot) ownedSubscription(ctx context.Context, chatID, id int64) (*model.Subscription, bool) {
	sub, err := b.store.GetSubscription(ctx, id)
	if err != nil || sub.UserID != chatID {
		b.reply(chatID, fmt.Sprintf("Subscription #%d not found.", id))
		return nil, false
	}
	return sub, true
}

func (b *Bot) handlePause(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /pause <id>")
		return
	}

	sub, ok := b.ownedSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	if err := b.store.SetSubscriptionActive(ctx, id, false); err != nil {
		b.reply(chatID, "Failed to pause, try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Subscription #%d \"%s\" paused.", id, sub.DisplayName))
}

func (b *Bot) handleResume(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /resume <id>")
		return
	}

	sub, ok := b.ownedSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	if err := b.store.SetSubscriptionActive(ctx, id, true); err != nil {
		b.reply(chatID, "Failed to resume, try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Subscription #%d \"%s\" resumed.", id, sub.DisplayName))
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove <id>")
		return
	}

	sub, ok := b.ownedSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	if err := b.store.DeleteSubscription(ctx, id); err != nil {
		b.reply(chatID, "Failed to delete, try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Subscription #%d \"%s\" deleted. Collected notes are kept.", id, sub.DisplayName))
}

func (b *Bot) handleInterval(ctx context.Context, chatID int64, args string) {
	id, mins, err := ParseIntervalArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	sub, ok := b.ownedSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	sub.FetchIntervalMinutes = mins
	if err := b.store.UpdateSubscription(ctx, sub); err != nil {
		b.reply(chatID, "Failed to update, try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Subscription #%d checks every %d min now.", id, mins))
}

// handleCheck forces an immediate ingestion run for one subscription.
func (b *Bot) handleCheck(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /check <id>")
		return
	}

	sub, ok := b.ownedSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	now := time.Now().UTC()
	since := now.Add(-b.cfg.Scheduler.ParseLookback())
	if sub.LastFetchedAt != nil {
		since = *sub.LastFetchedAt
	}

	res := b.runner.Run(ctx, *sub, since)
	if err := b.store.UpdateSubscriptionLastFetch(ctx, sub.ID, now); err != nil {
		b.log.Error("update last fetch", "subscription_id", sub.ID, "error", err)
	}

	if res.Failed() {
		b.log.Error("manual check failed", "subscription_id", sub.ID, "error", res.Err)
		b.reply(chatID, fmt.Sprintf("Could not fetch \"%s\" right now, try again later.", sub.DisplayName))
		return
	}
	if res.Inserted == 0 {
		b.reply(chatID, fmt.Sprintf("No new items from \"%s\".", sub.DisplayName))
		return
	}
	b.reply(chatID, fmt.Sprintf("Collected %d new note(s) from \"%s\". Use /list to read them.",
		res.Inserted, sub.DisplayName))
}

func (b *Bot) handleFilters(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /filters <id>")
		return
	}

	sub, ok := b.ownedSubscription(ctx, chatID, id)
	if !ok {
		return
	}

	filters, _ := b.store.ListFilters(ctx, sub.ID)
	b.reply(chatID, FormatFilterList(sub, filters))
}

func (b *Bot) handleAddFilter(ctx context.Context, chatID int64, args string, kind string) {
	parsed, err := ParseFilterCommand(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	sub, ok := b.ownedSubscription(ctx, chatID, parsed.SubscriptionID)
	if !ok {
		return
	}

	fk := model.FilterKind(kind)
	if fk == model.FilterIncludeRe || fk == model.FilterExcludeRe {
		if err := filter.ValidateRegex(parsed.Value); err != nil {
			b.reply(chatID, fmt.Sprintf("Invalid regex: %v", err))
			return
		}
	}

	f := &model.Filter{
		SubscriptionID: parsed.SubscriptionID,
		Kind:           fk,
		Scope:          parsed.Scope,
		Value:          parsed.Value,
	}
	if err := b.store.CreateFilter(ctx, f); err != nil {
		b.reply(chatID, "Failed to save filter, try again later.")
		return
	}

	b.reply(chatID, fmt.Sprintf("Filter F%d added to #%d \"%s\": %s %s (%s)",
		f.ID, sub.ID, sub.DisplayName, kind, parsed.Value, scopeLabel(parsed.Scope)))
}

func (b *Bot) handleRmFilter(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmfilter <filter_id>")
		return
	}

	f, err := b.store.GetFilter(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Filter F%d not found.", id))
		return
	}

	sub, err := b.store.GetSubscription(ctx, f.SubscriptionID)
	if err != nil || sub.UserID != chatID {
		b.reply(chatID, fmt.Sprintf("Filter F%d not found.", id))
		return
	}

	if err := b.store.DeleteFilter(ctx, id); err != nil {
		b.reply(chatID, "Failed to delete filter, try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Filter F%d removed from #%d \"%s\".", id, sub.ID, sub.DisplayName))
}
