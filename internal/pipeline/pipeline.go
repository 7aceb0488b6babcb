// Package pipeline drives one ingestion run: fetch, filter, normalize,
// classify, and deduplicated insertion.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/multierr"

	"notesbot/internal/classify"
	"notesbot/internal/filter"
	"notesbot/internal/model"
	"notesbot/internal/source"
	"notesbot/internal/storage"
)

// Result is the outcome of one ingestion run.
type Result struct {
	Inserted   int
	Duplicates int
	Filtered   int
	Err        error
}

// Failed reports whether the run ended in failure. Counts stay valid:
// items inserted before a store error remain inserted.
func (r Result) Failed() bool { return r.Err != nil }

// Pipeline runs ingestions for subscriptions. Safe for concurrent use;
// deduplication relies on the store's atomic insert-if-absent, not on
// pipeline state, so overlapping runs for the same subscription are fine.
type Pipeline struct {
	store        storage.Storage
	adapters     source.Registry
	classifier   *classify.Classifier
	log          *slog.Logger
	fetchTimeout time.Duration
}

// New creates a Pipeline over the given store and adapter registry.
func New(store storage.Storage, adapters source.Registry, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store:        store,
		adapters:     adapters,
		classifier:   classify.New(),
		log:          log,
		fetchTimeout: 30 * time.Second,
	}
}

// SetFetchTimeout overrides the default 30s per-run adapter deadline.
func (p *Pipeline) SetFetchTimeout(d time.Duration) {
	p.fetchTimeout = d
}

// Run fetches the subscription's source and stores each new item once.
// An adapter failure aborts the run before any writes; per-item store
// errors are collected into Result.Err without stopping the remaining
// items.
func (p *Pipeline) Run(ctx context.Context, sub model.Subscription, since time.Time) Result {
	adapter, ok := p.adapters.Lookup(sub.Platform)
	if !ok {
		return Result{Err: source.Permanentf("no adapter for platform %q", sub.Platform)}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	items, err := adapter.Fetch(fetchCtx, sub.SourceIdentifier, since)
	if err != nil {
		return Result{Err: fmt.Errorf("fetch %s/%s: %w", sub.Platform, sub.SourceIdentifier, err)}
	}

	filters, err := p.store.ListFilters(ctx, sub.ID)
	if err != nil {
		return Result{Err: fmt.Errorf("list filters: %w", err)}
	}
	settings, err := p.store.GetOrCreateUserSettings(ctx, sub.UserID)
	if err != nil {
		return Result{Err: fmt.Errorf("load settings: %w", err)}
	}

	var res Result
	var insertErrs error
	for i := range items {
		note := items[i]

		if !filter.Match(filter.Item{Title: note.Title, Content: note.Content}, filters) {
			res.Filtered++
			continue
		}
		if blockedAuthor(settings, note.Author) {
			res.Filtered++
			continue
		}

		note.UserID = sub.UserID
		note.Status = model.StatusNew
		if settings.AutoCategorize {
			p.categorize(&note)
		}
		normalize(&note)

		inserted, err := p.store.InsertNoteIfAbsent(ctx, &note)
		if err != nil {
			insertErrs = multierr.Append(insertErrs, fmt.Errorf("insert %s: %w", note.SourceID, err))
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Duplicates++
		}
	}

	res.Err = insertErrs
	if res.Inserted > 0 || res.Failed() {
		p.log.Debug("ingestion run",
			"subscription_id", sub.ID,
			"platform", sub.Platform,
			"inserted", res.Inserted,
			"duplicates", res.Duplicates,
			"filtered", res.Filtered,
			"error", res.Err,
		)
	}
	return res
}

// categorize assigns a category and tags. Best effort: it never prevents
// the note from being stored.
func (p *Pipeline) categorize(note *model.Note) {
	if note.Category == "" {
		note.Category = p.classifier.Categorize(note.Title, note.Content)
	}
	if len(note.Tags) == 0 {
		note.Tags = classify.Hashtags(note.Content)
	}
}

func blockedAuthor(settings *model.UserSettings, author string) bool {
	if author == "" {
		return false
	}
	for _, blocked := range settings.BlockedSources {
		if strings.EqualFold(strings.TrimSpace(blocked), author) {
			return true
		}
	}
	return false
}

// normalize enforces the documented field size bounds.
func normalize(note *model.Note) {
	note.Title = truncate(note.Title, model.MaxTitleLen)
	note.Content = truncate(note.Content, model.MaxContentLen)
	note.URL = truncate(note.URL, model.MaxURLLen)
	note.Author = truncate(note.Author, model.MaxAuthorLen)
	note.Category = truncate(note.Category, model.MaxCategoryLen)
	note.RawData = truncate(note.RawData, model.MaxRawDataLen)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
