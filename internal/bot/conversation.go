package bot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"notesbot/internal/model"
)

// handleStateInput consumes one message as the answer to a pending prompt.
// Unusable input re-prompts and keeps the slot; any valid outcome clears it.
func (b *Bot) handleStateInput(ctx context.Context, userID int64, msg *tgbotapi.Message, state State) {
	text := strings.TrimSpace(msg.Text)

	switch state.Step {
	case StepIdentifier:
		b.completeAddSource(ctx, userID, state.Platform, text)
	case StepKeyword:
		if text == "" {
			b.reply(userID, "Enter a keyword to search your notes:")
			return
		}
		b.sessions.Clear(userID)
		b.completeSearch(ctx, userID, text)
	case StepNoteContent:
		if text == "" {
			b.reply(userID, "Send the text you want to save as a note:")
			return
		}
		b.sessions.Clear(userID)
		b.captureManualNote(ctx, userID, text)
	default:
		b.sessions.Clear(userID)
	}
}

// completeAddSource validates the identifier and creates the subscription.
// Creating one the user already has reactivates the existing row instead.
func (b *Bot) completeAddSource(ctx context.Context, userID int64, platform model.Platform, raw string) {
	ident, err := NormalizeIdentifier(platform, raw)
	if err != nil {
		// Arm the slot so the next message is consumed as the identifier,
		// whether we got here from the keyboard or from a one-shot /add.
		b.sessions.Set(userID, State{Step: StepIdentifier, Platform: platform})
		b.reply(userID, err.Error()+"\n\n"+promptFor(platform))
		return
	}

	sub := &model.Subscription{
		UserID:               userID,
		Platform:             platform,
		SourceIdentifier:     ident,
		DisplayName:          displayName(platform, ident),
		IsActive:             true,
		FetchIntervalMinutes: b.cfg.Scheduler.DefaultIntervalMinutes,
	}

	created, err := b.store.UpsertSubscription(ctx, sub)
	if err != nil {
		b.reply(userID, "Failed to save the subscription, try again later.")
		return
	}
	b.sessions.Clear(userID)

	if !created {
		b.reply(userID, fmt.Sprintf(
			"You already follow \"%s\" (#%d). It is active again if it was paused.",
			sub.DisplayName, sub.ID))
		return
	}
	b.reply(userID, fmt.Sprintf(
		"Following %s %s as #%d, checked every %d min.\nFirst items arrive with the next check, or run /check %d now.",
		platformIcon(platform), sub.DisplayName, sub.ID, sub.FetchIntervalMinutes, sub.ID))
}

func (b *Bot) completeSearch(ctx context.Context, userID int64, keyword string) {
	notes, err := b.store.SearchNotes(ctx, userID, keyword)
	if err != nil {
		b.reply(userID, "Search failed, try again later.")
		return
	}
	b.reply(userID, FormatSearchResults(keyword, notes))
}

// captureManualNote saves free text the user sent as a note. The source ID
// is derived from the content, so saving the same text twice is a no-op.
func (b *Bot) captureManualNote(ctx context.Context, userID int64, text string) {
	text = strings.TrimSpace(text)

	note := &model.Note{
		UserID:   userID,
		Platform: model.PlatformTelegram,
		Title:    firstLine(text, 80),
		Content:  text,
		SourceID: "manual:" + contentHash(text),
		Status:   model.StatusNew,
	}

	inserted, err := b.store.InsertNoteIfAbsent(ctx, note)
	if err != nil {
		b.reply(userID, "Failed to save the note, try again later.")
		return
	}
	if !inserted {
		b.reply(userID, "You already saved this note.")
		return
	}
	b.reply(userID, "Note saved. Use /list to read your notes.")
}

// captureForwarded saves a forwarded message as a note attributed to its
// origin chat where available.
func (b *Bot) captureForwarded(ctx context.Context, userID int64, msg *tgbotapi.Message) {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if strings.TrimSpace(text) == "" {
		b.reply(userID, "This forward has no text I can save.")
		return
	}

	note := &model.Note{
		UserID:   userID,
		Platform: model.PlatformTelegram,
		Title:    firstLine(text, 80),
		Content:  text,
		Status:   model.StatusNew,
	}

	if msg.ForwardFromChat != nil {
		note.Author = msg.ForwardFromChat.Title
		note.SourceID = fmt.Sprintf("forward:%d_%d", msg.ForwardFromChat.ID, msg.ForwardFromMessageID)
		if msg.ForwardFromChat.UserName != "" {
			note.URL = fmt.Sprintf("https://t.me/%s/%d", msg.ForwardFromChat.UserName, msg.ForwardFromMessageID)
		}
	} else {
		if msg.ForwardFrom != nil {
			note.Author = strings.TrimSpace(msg.ForwardFrom.FirstName + " " + msg.ForwardFrom.LastName)
		}
		note.SourceID = "forward:" + contentHash(text)
	}
	if msg.ForwardDate != 0 {
		at := time.Unix(int64(msg.ForwardDate), 0).UTC()
		note.PublishedAt = &at
	}

	inserted, err := b.store.InsertNoteIfAbsent(ctx, note)
	if err != nil {
		b.reply(userID, "Failed to save the note, try again later.")
		return
	}
	if !inserted {
		b.reply(userID, "You already saved this message.")
		return
	}
	b.reply(userID, "Forward saved as a note. Use /list to read your notes.")
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

func firstLine(text string, max int) string {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	runes := []rune(strings.TrimSpace(line))
	if len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return string(runes)
}
