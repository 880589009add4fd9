// Package cache is the on-device persistence layer: journal chapters,
// the room list snapshot, the purchase entitlement flag, and per-chamber
// attempt counters. It backs the screens outside the streaming core and
// records what the orchestrator learns at settlement.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nightwell-games/lantern/internal/domain"
)

// entitlementKey is the single row key for the purchase flag.
const entitlementKey = "full_game"

// JournalChapter is one unlocked chapter of the player's journal.
type JournalChapter struct {
	Name       string
	Content    string
	UnlockedAt time.Time
}

// Store is a SQLite-backed cache.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the cache database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS journal_chapters (
			name TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			unlocked_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS room_list (
			key TEXT PRIMARY KEY,
			rooms TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entitlements (
			key TEXT PRIMARY KEY,
			purchased INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chamber_attempts (
			chamber_id TEXT PRIMARY KEY,
			attempts INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UnlockChapter stores a journal chapter. Re-unlocking an existing
// chapter refreshes its content but keeps the original unlock time.
func (s *Store) UnlockChapter(ctx context.Context, name, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_chapters (name, content, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET content = excluded.content`,
		name, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to unlock chapter %q: %w", name, err)
	}
	return nil
}

// Chapter returns one unlocked chapter. The bool is false when the
// chapter has not been unlocked.
func (s *Store) Chapter(ctx context.Context, name string) (JournalChapter, bool, error) {
	var ch JournalChapter
	err := s.db.QueryRowContext(ctx,
		`SELECT name, content, unlocked_at FROM journal_chapters WHERE name = ?`, name,
	).Scan(&ch.Name, &ch.Content, &ch.UnlockedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JournalChapter{}, false, nil
	}
	if err != nil {
		return JournalChapter{}, false, fmt.Errorf("failed to load chapter %q: %w", name, err)
	}
	return ch, true, nil
}

// Chapters returns all unlocked chapters in unlock order.
func (s *Store) Chapters(ctx context.Context) ([]JournalChapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, content, unlocked_at FROM journal_chapters ORDER BY unlocked_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []JournalChapter
	for rows.Next() {
		var ch JournalChapter
		if err := rows.Scan(&ch.Name, &ch.Content, &ch.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, ch)
	}
	return chapters, rows.Err()
}

// SaveRooms replaces the cached room list snapshot.
func (s *Store) SaveRooms(ctx context.Context, rooms []domain.Room) error {
	encoded, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("failed to encode room list: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO room_list (key, rooms, updated_at)
		VALUES ('rooms', ?, ?)
		ON CONFLICT(key) DO UPDATE SET rooms = excluded.rooms, updated_at = excluded.updated_at`,
		string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save room list: %w", err)
	}
	return nil
}

// Rooms returns the cached room list, or nil when nothing is cached.
func (s *Store) Rooms(ctx context.Context) ([]domain.Room, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx, `SELECT rooms FROM room_list WHERE key = 'rooms'`).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room list: %w", err)
	}

	var rooms []domain.Room
	if err := json.Unmarshal([]byte(encoded), &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode room list: %w", err)
	}
	return rooms, nil
}

// SetEntitled records whether the full game has been purchased.
func (s *Store) SetEntitled(ctx context.Context, entitled bool) error {
	purchased := 0
	if entitled {
		purchased = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entitlements (key, purchased, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET purchased = excluded.purchased, updated_at = excluded.updated_at`,
		entitlementKey, purchased, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set entitlement: %w", err)
	}
	return nil
}

// Entitled reports the cached purchase state. Absent rows mean not
// entitled.
func (s *Store) Entitled(ctx context.Context) (bool, error) {
	var purchased int
	err := s.db.QueryRowContext(ctx,
		`SELECT purchased FROM entitlements WHERE key = ?`, entitlementKey,
	).Scan(&purchased)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load entitlement: %w", err)
	}
	return purchased != 0, nil
}

// IncrementAttempts bumps the attempt counter for a chamber and returns
// the new count.
func (s *Store) IncrementAttempts(ctx context.Context, chamberID string) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chamber_attempts (chamber_id, attempts, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT(chamber_id) DO UPDATE SET attempts = attempts + 1, updated_at = excluded.updated_at`,
		chamberID, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts for %q: %w", chamberID, err)
	}
	return s.Attempts(ctx, chamberID)
}

// Attempts returns the attempt count for a chamber. Absent rows mean
// zero.
func (s *Store) Attempts(ctx context.Context, chamberID string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`SELECT attempts FROM chamber_attempts WHERE chamber_id = ?`, chamberID,
	).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load attempts for %q: %w", chamberID, err)
	}
	return attempts, nil
}

// ResetAttempts clears the attempt counter for a chamber.
func (s *Store) ResetAttempts(ctx context.Context, chamberID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chamber_attempts WHERE chamber_id = ?`, chamberID,
	); err != nil {
		return fmt.Errorf("failed to reset attempts for %q: %w", chamberID, err)
	}
	return nil
}

// Clear wipes every cached table. Used on sign-out and when the server
// replaces the session wholesale.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"journal_chapters", "room_list", "entitlements", "chamber_attempts"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
