package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"notesbot/internal/model"
)

// TelegramChannel fetches posts of a public Telegram channel by scraping
// its t.me/s/ web preview, which needs no bot membership in the channel.
type TelegramChannel struct {
	client HTTPClient
}

// NewTelegramChannel creates the Telegram channel adapter.
func NewTelegramChannel(client HTTPClient) *TelegramChannel {
	return &TelegramChannel{client: client}
}

func (a *TelegramChannel) Platform() model.Platform { return model.PlatformTelegram }

// Fetch returns the channel's posts published after since. The identifier
// accepts "@channel", "t.me/channel" or a bare channel name.
func (a *TelegramChannel) Fetch(ctx context.Context, channel string, since time.Time) ([]model.Note, error) {
	channel = normalizeTelegramChannel(channel)

	body, err := fetchBody(ctx, a.client, "https://t.me/s/"+channel)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, transientErr(fmt.Errorf("parse preview page: %w", err))
	}

	messages := doc.Find(".tgme_widget_message")
	if messages.Length() == 0 {
		// t.me serves an info page without messages for private or
		// nonexistent channels.
		return nil, permanentErr(fmt.Errorf("channel %q has no public preview", channel))
	}

	channelName := strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").First().Text())
	if channelName == "" {
		channelName = channel
	}

	var notes []model.Note
	messages.Each(func(_ int, sel *goquery.Selection) {
		post, ok := sel.Attr("data-post")
		if !ok || post == "" {
			return
		}

		var published *time.Time
		if datetime, ok := sel.Find("time").First().Attr("datetime"); ok {
			if t, err := time.Parse(time.RFC3339, datetime); err == nil {
				utc := t.UTC()
				published = &utc
			}
		}
		if published != nil && !since.IsZero() && !published.After(since) {
			return
		}

		text := strings.TrimSpace(sel.Find(".tgme_widget_message_text").Text())
		notes = append(notes, model.Note{
			Platform:    model.PlatformTelegram,
			Title:       fmt.Sprintf("Post in %s", channelName),
			Content:     text,
			URL:         "https://t.me/" + post,
			SourceID:    "telegram:" + post,
			Author:      channelName,
			PublishedAt: published,
			HasMedia:    sel.Find(".tgme_widget_message_photo_wrap, .tgme_widget_message_video_player").Length() > 0,
		})
	})
	return notes, nil
}

func normalizeTelegramChannel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "t.me/s/")
	s = strings.TrimPrefix(s, "t.me/")
	return strings.TrimPrefix(s, "@")
}
