package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"notesbot/internal/model"
	"notesbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

const noteColumns = `id, user_id, platform, title, content, url, source_id, author,
	 published_at, created_at, status, category, tags, has_media, media_url,
	 likes_count, comments_count, views_count, raw_data`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection: PRAGMAs are per-connection, and an in-memory dsn
	// would otherwise give every pooled connection its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// InsertNoteIfAbsent inserts a note unless the (user_id, source_id) key
// already exists. The unique index makes the insert-or-skip atomic, so
// concurrent runs over overlapping batches store each item once.
func (s *SQLite) InsertNoteIfAbsent(ctx context.Context, note *model.Note) (bool, error) {
	now := time.Now().UTC().Format(timeLayout)
	var published *string
	if note.PublishedAt != nil {
		v := note.PublishedAt.UTC().Format(timeLayout)
		published = &v
	}
	if note.Status == "" {
		note.Status = model.StatusNew
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (user_id, platform, title, content, url, source_id, author,
		   published_at, created_at, status, category, tags, has_media, media_url,
		   likes_count, comments_count, views_count, raw_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, source_id) DO NOTHING`,
		note.UserID, string(note.Platform), note.Title, note.Content, note.URL,
		note.SourceID, note.Author, published, now, string(note.Status),
		note.Category, strings.Join(note.Tags, ","), boolToInt(note.HasMedia),
		note.MediaURL, note.LikesCount, note.CommentsCount, note.ViewsCount, note.RawData,
	)
	if err != nil {
		return false, fmt.Errorf("insert note: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	note.ID = id
	note.CreatedAt, _ = time.Parse(timeLayout, now)
	return true, nil
}

// ListNotes returns one page of a user's notes with the given status,
// newest first. Pages are 1-based.
func (s *SQLite) ListNotes(ctx context.Context, userID int64, status model.NoteStatus, page, perPage int) ([]model.Note, error) {
	if perPage < 1 {
		perPage = 10
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE user_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, string(status), perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanNotes(rows)
}

// CountNotes returns the number of a user's notes with the given status.
func (s *SQLite) CountNotes(ctx context.Context, userID int64, status model.NoteStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notes WHERE user_id = ? AND status = ?`,
		userID, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}

// SearchNotes returns the user's notes whose title or content contains the
// keyword, case-insensitive, newest first.
func (s *SQLite) SearchNotes(ctx context.Context, userID int64, keyword string) ([]model.Note, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 WHERE user_id = ? AND status != 'deleted'
		   AND (LOWER(title) LIKE ? OR LOWER(content) LIKE ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT 50`,
		userID, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanNotes(rows)
}

// UpdateNoteStatus changes the lifecycle status of a note.
func (s *SQLite) UpdateNoteStatus(ctx context.Context, id int64, status model.NoteStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET status = ? WHERE id = ?`, string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update note status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// NoteStats aggregates a user's notes by platform and status.
func (s *SQLite) NoteStats(ctx context.Context, userID int64) (*model.NoteStats, error) {
	stats := &model.NoteStats{
		ByPlatform: make(map[model.Platform]int),
		ByStatus:   make(map[model.NoteStatus]int),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, status, COUNT(*) FROM notes WHERE user_id = ? GROUP BY platform, status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var platform, status string
		var count int
		if err := rows.Scan(&platform, &status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		stats.ByPlatform[model.Platform(platform)] += count
		stats.ByStatus[model.NoteStatus(status)] += count
	}
	return stats, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanNote(row scannable) (*model.Note, error) {
	var n model.Note
	var platform, status, tags string
	var hasMedia int
	var published, created sql.NullString
	err := row.Scan(
		&n.ID, &n.UserID, &platform, &n.Title, &n.Content, &n.URL, &n.SourceID,
		&n.Author, &published, &created, &status, &n.Category, &tags, &hasMedia,
		&n.MediaURL, &n.LikesCount, &n.CommentsCount, &n.ViewsCount, &n.RawData,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan note: %w", err)
	}
	n.Platform = model.Platform(platform)
	n.Status = model.NoteStatus(status)
	n.Tags = splitList(tags)
	n.HasMedia = hasMedia == 1
	if published.Valid {
		t, _ := time.Parse(timeLayout, published.String)
		n.PublishedAt = &t
	}
	if created.Valid {
		n.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]model.Note, error) {
	var notes []model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}
