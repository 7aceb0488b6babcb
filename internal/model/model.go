// Package model defines the domain types used across the application.
package model

import "time"

// Platform identifies the kind of source a note or subscription belongs to.
type Platform string

// Supported platforms.
const (
	PlatformTelegram Platform = "telegram"
	PlatformTwitter  Platform = "twitter"
	PlatformReddit   Platform = "reddit"
	PlatformYouTube  Platform = "youtube"
	PlatformVK       Platform = "vk"
	PlatformWeb      Platform = "web"
	PlatformRSS      Platform = "rss"
)

// AllPlatforms returns every supported platform in display order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformTelegram,
		PlatformTwitter,
		PlatformReddit,
		PlatformYouTube,
		PlatformVK,
		PlatformWeb,
		PlatformRSS,
	}
}

// ParsePlatform converts a string into a known Platform.
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(s)
	for _, known := range AllPlatforms() {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// NoteStatus is the lifecycle state of a captured note.
type NoteStatus string

// Note lifecycle states.
const (
	StatusNew       NoteStatus = "new"
	StatusArchived  NoteStatus = "archived"
	StatusDeleted   NoteStatus = "deleted"
	StatusProcessed NoteStatus = "processed"
)

// Field size limits enforced at normalization time.
const (
	MaxTitleLen    = 500
	MaxContentLen  = 5000
	MaxURLLen      = 500
	MaxAuthorLen   = 200
	MaxCategoryLen = 50
	MaxRawDataLen  = 1000
)

// Note is one captured item from a source, normalized across platforms.
// (UserID, SourceID) is unique: capturing the same item twice is a no-op.
type Note struct {
	ID            int64
	UserID        int64
	Platform      Platform
	Title         string
	Content       string
	URL           string
	SourceID      string
	Author        string
	PublishedAt   *time.Time
	CreatedAt     time.Time
	Status        NoteStatus
	Category      string
	Tags          []string
	HasMedia      bool
	MediaURL      string
	LikesCount    int
	CommentsCount int
	ViewsCount    int
	RawData       string
}

// Subscription is a user's standing request to poll one source.
// (UserID, Platform, SourceIdentifier) is unique.
type Subscription struct {
	ID                   int64
	UserID               int64
	Platform             Platform
	SourceIdentifier     string
	DisplayName          string
	IsActive             bool
	FetchIntervalMinutes int
	LastFetchedAt        *time.Time
	CreatedAt            time.Time
}

// Due reports whether the subscription should be fetched at the given time.
// A subscription that has never been fetched is immediately due.
func (s Subscription) Due(now time.Time) bool {
	if s.LastFetchedAt == nil {
		return true
	}
	interval := time.Duration(s.FetchIntervalMinutes) * time.Minute
	return now.Sub(*s.LastFetchedAt) >= interval
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of a note a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeTitle   FilterScope = "title"
	ScopeContent FilterScope = "content"
	ScopeAll     FilterScope = "all"
)

// Filter is a single content rule attached to a subscription.
type Filter struct {
	ID             int64
	SubscriptionID int64
	Kind           FilterKind
	Scope          FilterScope
	Value          string
	CreatedAt      time.Time
}

// UserSettings holds per-user preferences, created lazily on first contact.
type UserSettings struct {
	UserID           int64
	TimeZone         string
	ItemsPerPage     int
	AutoCategorize   bool
	Notifications    bool
	EnabledPlatforms map[Platform]bool
	Keywords         []string
	BlockedSources   []string
	Language         string
	UpdatedAt        time.Time
}

// DefaultSettings returns the settings assigned to a user on first contact.
func DefaultSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID:         userID,
		TimeZone:       "UTC",
		ItemsPerPage:   10,
		AutoCategorize: true,
		Notifications:  true,
		EnabledPlatforms: map[Platform]bool{
			PlatformTelegram: true,
		},
		Language: "en",
	}
}

// NoteStats is an aggregate view of a user's notes for /stats.
type NoteStats struct {
	Total      int
	ByPlatform map[Platform]int
	ByStatus   map[NoteStatus]int
}
