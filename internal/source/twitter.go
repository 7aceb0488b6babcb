package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notesbot/internal/classify"
	"notesbot/internal/model"
)

const defaultNitterURL = "https://nitter.net"

// Twitter fetches a user's tweets through a Nitter instance's RSS feed,
// which needs no API credentials.
type Twitter struct {
	client    HTTPClient
	nitterURL string
}

// NewTwitter creates the Twitter adapter. An empty nitterURL selects the
// default public instance.
func NewTwitter(client HTTPClient, nitterURL string) *Twitter {
	if nitterURL == "" {
		nitterURL = defaultNitterURL
	}
	return &Twitter{client: client, nitterURL: strings.TrimRight(nitterURL, "/")}
}

func (a *Twitter) Platform() model.Platform { return model.PlatformTwitter }

// Fetch returns the tweets of the given username published after since.
// A leading @ in the identifier is accepted and stripped.
func (a *Twitter) Fetch(ctx context.Context, username string, since time.Time) ([]model.Note, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")

	body, err := fetchBody(ctx, a.client, fmt.Sprintf("%s/%s/rss", a.nitterURL, username))
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
		// Nitter puts the tweet text in the item title.
		text := item.Title
		notes = append(notes, model.Note{
			Platform:    model.PlatformTwitter,
			Title:       fmt.Sprintf("Tweet by @%s", username),
			Content:     text,
			URL:         item.Link,
			SourceID:    itemSourceID("twitter", item),
			Author:      username,
			PublishedAt: item.PublishedParsed,
			Tags:        classify.Hashtags(text),
			RawData:     rawSnapshot(map[string]string{"guid": item.GUID}),
		})
	}
	return notes, nil
}
