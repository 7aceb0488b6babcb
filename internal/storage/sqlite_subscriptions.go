package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notesbot/internal/model"
)

const subscriptionColumns = `id, user_id, platform, source_identifier, display_name,
	 is_active, fetch_interval_minutes, last_fetched_at, created_at`

// UpsertSubscription inserts a subscription, or reactivates the existing one
// when the user already follows the same source. Reports whether a new row
// was created.
func (s *SQLite) UpsertSubscription(ctx context.Context, sub *model.Subscription) (bool, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions
		   (user_id, platform, source_identifier, display_name, is_active,
		    fetch_interval_minutes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, platform, source_identifier) DO NOTHING`,
		sub.UserID, string(sub.Platform), sub.SourceIdentifier, sub.DisplayName,
		boolToInt(sub.IsActive), sub.FetchIntervalMinutes, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if rows == 0 {
		existing, err := s.getSubscriptionByKey(ctx, sub.UserID, sub.Platform, sub.SourceIdentifier)
		if err != nil {
			return false, err
		}
		if !existing.IsActive {
			if err := s.SetSubscriptionActive(ctx, existing.ID, true); err != nil {
				return false, err
			}
			existing.IsActive = true
		}
		*sub = *existing
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt, _ = time.Parse(timeLayout, now)
	return true, nil
}

// GetSubscription returns a single subscription by its ID.
func (s *SQLite) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id,
	)
	return scanSubscription(row)
}

func (s *SQLite) getSubscriptionByKey(ctx context.Context, userID int64, platform model.Platform, identifier string) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = ? AND platform = ? AND source_identifier = ?`,
		userID, string(platform), identifier,
	)
	return scanSubscription(row)
}

// ListSubscriptions returns all subscriptions belonging to the given user.
func (s *SQLite) ListSubscriptions(ctx context.Context, userID int64) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// ListActiveSubscriptions returns every active subscription across all users.
// The scheduler computes due-ness itself.
func (s *SQLite) ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE is_active = 1
		 ORDER BY platform, source_identifier`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// UpdateSubscription persists changes to an existing subscription.
func (s *SQLite) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	var lastFetched *string
	if sub.LastFetchedAt != nil {
		v := sub.LastFetchedAt.UTC().Format(timeLayout)
		lastFetched = &v
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET display_name = ?, is_active = ?, fetch_interval_minutes = ?, last_fetched_at = ?
		 WHERE id = ?`,
		sub.DisplayName, boolToInt(sub.IsActive), sub.FetchIntervalMinutes, lastFetched, sub.ID,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// SetSubscriptionActive flips the active flag of a subscription.
func (s *SQLite) SetSubscriptionActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = ? WHERE id = ?`, boolToInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("set subscription active: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSubscriptionLastFetch records when the subscription was last polled.
func (s *SQLite) UpdateSubscriptionLastFetch(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_fetched_at = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("update last fetch: %w", err)
	}
	return nil
}

// DeleteSubscription removes a subscription and its filters.
func (s *SQLite) DeleteSubscription(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_filters WHERE subscription_id = ?`, id); err != nil {
		return fmt.Errorf("delete filters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return tx.Commit()
}

// CreateFilter inserts a new filter and populates its ID and CreatedAt.
func (s *SQLite) CreateFilter(ctx context.Context, f *model.Filter) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscription_filters (subscription_id, kind, scope, value, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		f.SubscriptionID, string(f.Kind), string(f.Scope), f.Value, now,
	)
	if err != nil {
		return fmt.Errorf("insert filter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	f.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListFilters returns all filters for the given subscription in creation order.
func (s *SQLite) ListFilters(ctx context.Context, subscriptionID int64) ([]model.Filter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subscription_id, kind, scope, value, created_at
		 FROM subscription_filters WHERE subscription_id = ? ORDER BY id`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var filters []model.Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, *f)
	}
	return filters, rows.Err()
}

// GetFilter returns a single filter by its ID.
func (s *SQLite) GetFilter(ctx context.Context, id int64) (*model.Filter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subscription_id, kind, scope, value, created_at
		 FROM subscription_filters WHERE id = ?`, id,
	)
	return scanFilter(row)
}

// DeleteFilter removes a filter by its ID.
func (s *SQLite) DeleteFilter(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscription_filters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete filter: %w", err)
	}
	return nil
}

func scanSubscription(row scannable) (*model.Subscription, error) {
	var sub model.Subscription
	var platform string
	var isActive int
	var lastFetched, created sql.NullString
	err := row.Scan(
		&sub.ID, &sub.UserID, &platform, &sub.SourceIdentifier, &sub.DisplayName,
		&isActive, &sub.FetchIntervalMinutes, &lastFetched, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Platform = model.Platform(platform)
	sub.IsActive = isActive == 1
	if lastFetched.Valid {
		t, _ := time.Parse(timeLayout, lastFetched.String)
		sub.LastFetchedAt = &t
	}
	if created.Valid {
		sub.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func scanFilter(row scannable) (*model.Filter, error) {
	var f model.Filter
	var kind, scope, created string
	err := row.Scan(&f.ID, &f.SubscriptionID, &kind, &scope, &f.Value, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan filter: %w", err)
	}
	f.Kind = model.FilterKind(kind)
	f.Scope = model.FilterScope(scope)
	f.CreatedAt, _ = time.Parse(timeLayout, created)
	return &f, nil
}
