package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"notesbot/internal/model"
)

// GetOrCreateUserSettings returns the user's settings, creating default ones
// on first contact.
func (s *SQLite) GetOrCreateUserSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	settings, err := s.getUserSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	defaults := model.DefaultSettings(userID)
	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_settings
		   (user_id, time_zone, items_per_page, auto_categorize, notifications,
		    enabled_platforms, keywords, blocked_sources, language, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, defaults.TimeZone, defaults.ItemsPerPage,
		boolToInt(defaults.AutoCategorize), boolToInt(defaults.Notifications),
		joinPlatforms(defaults.EnabledPlatforms), "", "", defaults.Language, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert settings: %w", err)
	}
	return s.getUserSettings(ctx, userID)
}

// UpdateUserSettings persists changes to a user's settings.
func (s *SQLite) UpdateUserSettings(ctx context.Context, settings *model.UserSettings) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_settings
		 SET time_zone = ?, items_per_page = ?, auto_categorize = ?, notifications = ?,
		     enabled_platforms = ?, keywords = ?, blocked_sources = ?, language = ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		settings.TimeZone, settings.ItemsPerPage,
		boolToInt(settings.AutoCategorize), boolToInt(settings.Notifications),
		joinPlatforms(settings.EnabledPlatforms),
		strings.Join(settings.Keywords, ","), strings.Join(settings.BlockedSources, ","),
		settings.Language, now.Format(timeLayout), settings.UserID,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	settings.UpdatedAt = now.Truncate(time.Second)
	return nil
}

func (s *SQLite) getUserSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, time_zone, items_per_page, auto_categorize, notifications,
		        enabled_platforms, keywords, blocked_sources, language, updated_at
		 FROM user_settings WHERE user_id = ?`, userID,
	)

	var settings model.UserSettings
	var autoCategorize, notifications int
	var platforms, keywords, blocked, updated string
	err := row.Scan(
		&settings.UserID, &settings.TimeZone, &settings.ItemsPerPage,
		&autoCategorize, &notifications, &platforms, &keywords, &blocked,
		&settings.Language, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan settings: %w", err)
	}
	settings.AutoCategorize = autoCategorize == 1
	settings.Notifications = notifications == 1
	settings.EnabledPlatforms = parsePlatformList(platforms)
	settings.Keywords = splitList(keywords)
	settings.BlockedSources = splitList(blocked)
	settings.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &settings, nil
}

func joinPlatforms(enabled map[model.Platform]bool) string {
	var names []string
	for _, p := range model.AllPlatforms() {
		if enabled[p] {
			names = append(names, string(p))
		}
	}
	return strings.Join(names, ",")
}

func parsePlatformList(s string) map[model.Platform]bool {
	enabled := make(map[model.Platform]bool)
	for _, name := range splitList(s) {
		if p, ok := model.ParsePlatform(strings.TrimSpace(name)); ok {
			enabled[p] = true
		}
	}
	return enabled
}
