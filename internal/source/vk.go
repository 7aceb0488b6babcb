package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"notesbot/internal/model"
)

const vkAPIVersion = "5.131"

// VK fetches wall posts of a VK group or user via the wall.get API method.
// Requires a service access token.
type VK struct {
	client HTTPClient
	token  string
}

// NewVK creates the VK adapter. The token comes from configuration.
func NewVK(client HTTPClient, token string) *VK {
	return &VK{client: client, token: token}
}

func (a *VK) Platform() model.Platform { return model.PlatformVK }

type vkResponse struct {
	Error *struct {
		ErrorCode int    `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
	} `json:"error"`
	Response *struct {
		Items []vkPost `json:"items"`
	} `json:"response"`
}

type vkPost struct {
	ID          int64               `json:"id"`
	OwnerID     int64               `json:"owner_id"`
	Date        int64               `json:"date"`
	Text        string              `json:"text"`
	Likes       struct{ Count int } `json:"likes"`
	Comments    struct{ Count int } `json:"comments"`
	Views       struct{ Count int } `json:"views"`
	Attachments []struct {
		Type string `json:"type"`
	} `json:"attachments"`
}

// VK error codes that mean the source cannot be fetched at all.
var vkPermanentErrors = map[int]bool{
	15:  true, // access denied
	18:  true, // page deleted or banned
	100: true, // bad parameter (unknown domain)
	113: true, // invalid user id
}

// Fetch returns the wall posts of the given group/user domain published
// after since.
func (a *VK) Fetch(ctx context.Context, domain string, since time.Time) ([]model.Note, error) {
	if a.token == "" {
		return nil, permanentErr(fmt.Errorf("vk access token not configured"))
	}
	domain = strings.TrimPrefix(strings.TrimSpace(domain), "vk.com/")

	q := url.Values{
		"domain":       {domain},
		"count":        {"50"},
		"v":            {vkAPIVersion},
		"access_token": {a.token},
	}
	body, err := fetchBody(ctx, a.client, "https://api.vk.com/method/wall.get?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp vkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, transientErr(fmt.Errorf("decode wall.get: %w", err))
	}
	if resp.Error != nil {
		err := fmt.Errorf("vk api error %d: %s", resp.Error.ErrorCode, resp.Error.ErrorMsg)
		if vkPermanentErrors[resp.Error.ErrorCode] {
			return nil, permanentErr(err)
		}
		return nil, transientErr(err)
	}
	if resp.Response == nil {
		return nil, transientErr(fmt.Errorf("empty wall.get response"))
	}

	var notes []model.Note
	for _, post := range resp.Response.Items {
		published := time.Unix(post.Date, 0).UTC()
		if !since.IsZero() && !published.After(since) {
			continue
		}
		notes = append(notes, model.Note{
			Platform:      model.PlatformVK,
			Title:         vkPostTitle(domain, post.Text),
			Content:       post.Text,
			URL:           fmt.Sprintf("https://vk.com/wall%d_%d", post.OwnerID, post.ID),
			SourceID:      fmt.Sprintf("vk:%d_%d", post.OwnerID, post.ID),
			Author:        domain,
			PublishedAt:   &published,
			LikesCount:    post.Likes.Count,
			CommentsCount: post.Comments.Count,
			ViewsCount:    post.Views.Count,
			HasMedia:      len(post.Attachments) > 0,
			RawData:       rawSnapshot(post),
		})
	}
	return notes, nil
}

// vkPostTitle derives a short title from the post text.
func vkPostTitle(domain, text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		return fmt.Sprintf("Post from %s", domain)
	}
	if runes := []rune(line); len(runes) > 80 {
		line = string(runes[:80]) + "..."
	}
	return line
}
