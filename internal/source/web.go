package source

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"notesbot/internal/model"
)

// Web captures a single web page as one note: title and description from
// Open Graph metadata, body text from common content containers.
type Web struct {
	client HTTPClient
}

// NewWeb creates the web page adapter.
func NewWeb(client HTTPClient) *Web {
	return &Web{client: client}
}

func (a *Web) Platform() model.Platform { return model.PlatformWeb }

// contentSelectors are tried in order; the first node with a substantial
// amount of text wins.
var contentSelectors = []string{
	"article",
	"div.content",
	"div.article",
	"div.post",
	"main",
	"[role=main]",
}

// Fetch scrapes the page at the given URL. The since watermark is ignored:
// a page is a snapshot, and re-captures deduplicate on the source ID.
func (a *Web) Fetch(ctx context.Context, pageURL string, _ time.Time) ([]model.Note, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return nil, permanentErr(fmt.Errorf("invalid page url %q", pageURL))
	}

	body, err := fetchBody(ctx, a.client, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, transientErr(fmt.Errorf("parse page: %w", err))
	}

	title := metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = "Untitled page"
	}

	description := metaContent(doc, `meta[property="og:description"]`)
	if description == "" {
		description = metaContent(doc, `meta[name="description"]`)
	}

	content := extractMainContent(doc)
	if content == "" {
		content = description
	}

	note := model.Note{
		Platform:    model.PlatformWeb,
		Title:       cleanText(title),
		Content:     cleanText(content),
		URL:         pageURL,
		SourceID:    webSourceID(parsed, pageURL),
		Author:      extractAuthor(doc),
		PublishedAt: extractPublished(doc),
		HasMedia:    doc.Find("img").Length() > 0,
		MediaURL:    metaContent(doc, `meta[property="og:image"]`),
	}
	return []model.Note{note}, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if len(text) > 200 {
			return text
		}
	}
	return ""
}

func extractAuthor(doc *goquery.Document) string {
	if author := metaContent(doc, `meta[name="author"]`); author != "" {
		return author
	}
	return cleanText(doc.Find(`a[rel="author"]`).First().Text())
}

func extractPublished(doc *goquery.Document) *time.Time {
	candidates := []string{
		metaContent(doc, `meta[property="article:published_time"]`),
		metaContent(doc, `meta[name="publish_date"]`),
	}
	if datetime, ok := doc.Find("time").First().Attr("datetime"); ok {
		candidates = append(candidates, datetime)
	}
	for _, s := range candidates {
		if s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				utc := t.UTC()
				return &utc
			}
		}
	}
	return nil
}

// webSourceID keys a page by host plus a hash of the full URL, so the same
// page captured twice is a duplicate.
func webSourceID(parsed *url.URL, raw string) string {
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("web:%s:%x", parsed.Host, h[:12])
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
