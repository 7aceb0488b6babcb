package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"notesbot/internal/model"
)

// Reddit fetches new posts from a subreddit via the public JSON listing.
type Reddit struct {
	client HTTPClient
}

// NewReddit creates the Reddit adapter with the given HTTP client.
func NewReddit(client HTTPClient) *Reddit {
	return &Reddit{client: client}
}

func (a *Reddit) Platform() model.Platform { return model.PlatformReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	PostHint    string  `json:"post_hint"`
	IsVideo     bool    `json:"is_video"`
}

// Fetch returns the subreddit's posts created after since. The identifier
// accepts both "golang" and "r/golang".
func (a *Reddit) Fetch(ctx context.Context, subreddit string, since time.Time) ([]model.Note, error) {
	subreddit = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(subreddit), "/"), "r/")

	body, err := fetchBody(ctx, a.client,
		fmt.Sprintf("https://www.reddit.com/r/%s/new.json?limit=50", subreddit))
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, transientErr(fmt.Errorf("decode listing: %w", err))
	}

	var notes []model.Note
	for _, child := range listing.Data.Children {
		post := child.Data
		published := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if !since.IsZero() && !published.After(since) {
			continue
		}

		hasMedia := post.IsVideo || post.PostHint == "image" || post.PostHint == "hosted:video"
		n := model.Note{
			Platform:      model.PlatformReddit,
			Title:         post.Title,
			Content:       post.Selftext,
			URL:           "https://www.reddit.com" + post.Permalink,
			SourceID:      "reddit:" + post.Name,
			Author:        post.Author,
			PublishedAt:   &published,
			LikesCount:    post.Score,
			CommentsCount: post.NumComments,
			HasMedia:      hasMedia,
			RawData:       rawSnapshot(post),
		}
		if hasMedia {
			n.MediaURL = post.URL
		}
		notes = append(notes, n)
	}
	return notes, nil
}
