package source

import (
	"context"
	"fmt"
	"time"

	"notesbot/internal/model"
)

// YouTube fetches a channel's uploads through its public RSS feed.
type YouTube struct {
	client HTTPClient
}

// NewYouTube creates the YouTube adapter with the given HTTP client.
func NewYouTube(client HTTPClient) *YouTube {
	return &YouTube{client: client}
}

func (a *YouTube) Platform() model.Platform { return model.PlatformYouTube }

// Fetch returns the channel's videos published after since. The identifier
// is a channel ID (UC...).
func (a *YouTube) Fetch(ctx context.Context, channelID string, since time.Time) ([]model.Note, error) {
	feedURL := fmt.Sprintf("https://www.youtube.com/feeds/videos.xml?channel_id=%s", channelID)
	body, err := fetchBody(ctx, a.client, feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	var notes []model.Note
	for _, item := range feed.Items {
		if !publishedAfter(item, since) {
			continue
		}
		notes = append(notes, model.Note{
			Platform:    model.PlatformYouTube,
			Title:       item.Title,
			Content:     item.Description,
			URL:         item.Link,
			SourceID:    itemSourceID("youtube", item),
			Author:      itemAuthor(item, feed.Title),
			PublishedAt: item.PublishedParsed,
			HasMedia:    true,
			MediaURL:    item.Link,
			RawData:     rawSnapshot(map[string]string{"channel": feed.Title, "guid": item.GUID}),
		})
	}
	return notes, nil
}
