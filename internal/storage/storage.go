// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"notesbot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	// InsertNoteIfAbsent atomically inserts a note unless one with the same
	// (user, source item) key already exists. It reports whether the note
	// was inserted; a duplicate key is not an error.
	InsertNoteIfAbsent(ctx context.Context, note *model.Note) (bool, error)
	ListNotes(ctx context.Context, userID int64, status model.NoteStatus, page, perPage int) ([]model.Note, error)
	CountNotes(ctx context.Context, userID int64, status model.NoteStatus) (int, error)
	SearchNotes(ctx context.Context, userID int64, keyword string) ([]model.Note, error)
	UpdateNoteStatus(ctx context.Context, id int64, status model.NoteStatus) error
	NoteStats(ctx context.Context, userID int64) (*model.NoteStats, error)

	// UpsertSubscription inserts a subscription or, when the user already
	// has one for the same source, reactivates the existing row. It
	// reports whether a new subscription was created.
	UpsertSubscription(ctx context.Context, sub *model.Subscription) (bool, error)
	GetSubscription(ctx context.Context, id int64) (*model.Subscription, error)
	ListSubscriptions(ctx context.Context, userID int64) ([]model.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *model.Subscription) error
	SetSubscriptionActive(ctx context.Context, id int64, active bool) error
	UpdateSubscriptionLastFetch(ctx context.Context, id int64, at time.Time) error
	DeleteSubscription(ctx context.Context, id int64) error

	CreateFilter(ctx context.Context, f *model.Filter) error
	ListFilters(ctx context.Context, subscriptionID int64) ([]model.Filter, error)
	GetFilter(ctx context.Context, id int64) (*model.Filter, error)
	DeleteFilter(ctx context.Context, id int64) error

	GetOrCreateUserSettings(ctx context.Context, userID int64) (*model.UserSettings, error)
	UpdateUserSettings(ctx context.Context, settings *model.UserSettings) error

	Close() error
}
