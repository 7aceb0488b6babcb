package source

import (
	"context"
	"time"

	"notesbot/internal/model"
)

// RSS fetches items from an arbitrary RSS or Atom feed.
type RSS struct {
	client HTTPClient
}

// NewRSS creates the RSS adapter with the given HTTP client.
func NewRSS(client HTTPClient) *RSS {
	return &RSS{client: client}
}

func (a *RSS) Platform() model.Platform { return model.PlatformRSS }

// Fetch downloads the feed at the given URL and returns items published
// after since.
func (a *RSS) Fetch(ctx context.Context, feedURL string, since time.Time) ([]model.Note, error) {
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
		n := model.Note{
			Platform:    model.PlatformRSS,
			Title:       item.Title,
			Content:     item.Description,
			URL:         item.Link,
			SourceID:    itemSourceID("rss", item),
			Author:      itemAuthor(item, feed.Title),
			PublishedAt: item.PublishedParsed,
			RawData:     rawSnapshot(map[string]string{"feed": feed.Title, "guid": item.GUID}),
		}
		if item.Image != nil {
			n.HasMedia = true
			n.MediaURL = item.Image.URL
		}
		notes = append(notes, n)
	}
	return notes, nil
}
