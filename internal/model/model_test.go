package model

import (
	"testing"
	"time"
)

func TestSubscriptionDue(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"never fetched", Subscription{FetchIntervalMinutes: 60}, true},
		{"interval elapsed", Subscription{FetchIntervalMinutes: 60, LastFetchedAt: at(-61 * time.Minute)}, true},
		{"exactly at interval", Subscription{FetchIntervalMinutes: 60, LastFetchedAt: at(-60 * time.Minute)}, true},
		{"too recent", Subscription{FetchIntervalMinutes: 60, LastFetchedAt: at(-10 * time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Due(now); got != tt.want {
				t.Errorf("Due() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePlatform(t *testing.T) {
	if p, ok := ParsePlatform("reddit"); !ok || p != PlatformReddit {
		t.Errorf("got (%v, %v)", p, ok)
	}
	if _, ok := ParsePlatform("myspace"); ok {
		t.Error("unknown platform should not parse")
	}
}
