package source

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// parseFeed parses an RSS/Atom document. A payload that does not parse is a
// transient failure: feeds occasionally serve error pages with status 200.
func parseFeed(body []byte) (*gofeed.Feed, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, transientErr(fmt.Errorf("parse feed: %w", err))
	}
	return feed, nil
}

// itemSourceID returns a stable per-item identifier, prefixed with the
// platform so IDs from different platforms cannot collide for one user.
// Items without a GUID get a hash of title and link.
func itemSourceID(prefix string, item *gofeed.Item) string {
	if item.GUID != "" {
		return prefix + ":" + item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("%s:sha256:%x", prefix, h[:16])
}

// publishedAfter reports whether the item was published after the watermark.
// Items without a parseable publish date always pass; deduplication will
// drop re-captures.
func publishedAfter(item *gofeed.Item, since time.Time) bool {
	if since.IsZero() || item.PublishedParsed == nil {
		return true
	}
	return item.PublishedParsed.After(since)
}

// itemAuthor returns the item author, falling back to the given default.
func itemAuthor(item *gofeed.Item, fallback string) string {
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	return fallback
}

// rawSnapshot marshals v for the note's raw-payload field. Best effort;
// the pipeline bounds the size.
func rawSnapshot(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
