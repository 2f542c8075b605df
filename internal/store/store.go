// Package store persists transcripts and user preferences in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"livescribe/internal/config"
	"livescribe/internal/domain"
)

const defaultListLimit = 50

var ErrNotFound = errors.New("transcript not found")

// Store wraps a SQLite database holding transcripts and preferences.
type Store struct {
	db    *sql.DB
	log   zerolog.Logger
	clock func() time.Time
	newID func() string
}

// Open creates the database file if needed and applies the schema. The path
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, cfg config.StoreConfig, log zerolog.Logger) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every new connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{
		db:    db,
		log:   log,
		clock: time.Now,
		newID: func() string { return uuid.NewString() },
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("transcript store opened")
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcripts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,
    language TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_user_created ON transcripts(user_id, created_at);
CREATE TABLE IF NOT EXISTS preferences (
    user_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (user_id, key)
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts a transcript. Failures wrap domain.ErrPersistenceFailed.
func (s *Store) Save(ctx context.Context, text string, language string, userID string) (domain.Transcript, error) {
	record := domain.Transcript{
		ID:        s.newID(),
		UserID:    userID,
		Content:   text,
		Language:  language,
		CreatedAt: s.clock().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts(id, user_id, content, language, created_at) VALUES(?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.Content, record.Language, record.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("%w: insert transcript: %w", domain.ErrPersistenceFailed, err)
	}
	return record, nil
}

// List returns up to limit transcripts for userID, newest first.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]domain.Transcript, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, content, language, created_at
		 FROM transcripts WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var out []domain.Transcript
	for rows.Next() {
		record, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Get returns one transcript by id.
func (s *Store) Get(ctx context.Context, id string) (domain.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, language, created_at FROM transcripts WHERE id = ?`, id)
	record, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transcript{}, ErrNotFound
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row scanner) (domain.Transcript, error) {
	var record domain.Transcript
	var created string
	if err := row.Scan(&record.ID, &record.UserID, &record.Content, &record.Language, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transcript{}, err
		}
		return domain.Transcript{}, fmt.Errorf("scan transcript: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		record.CreatedAt = ts
	}
	return record, nil
}

func (s *Store) preference(ctx context.Context, userID string, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) setPreference(ctx context.Context, userID string, key string, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(user_id, key, value, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		userID, key, value, s.clock().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write preference %q: %w", key, err)
	}
	return nil
}

const hapticsKey = "haptics_enabled"

// Preferences is the per-user preference view of a Store.
type Preferences struct {
	store    *Store
	userID   string
	fallback bool
}

// Preferences returns the preferences of userID. Unset values read as the
// configured defaults.
func (s *Store) Preferences(userID string, hapticsDefault bool) *Preferences {
	return &Preferences{store: s, userID: userID, fallback: hapticsDefault}
}

func (p *Preferences) HapticsEnabled(ctx context.Context) (bool, error) {
	value, ok, err := p.store.preference(ctx, p.userID, hapticsKey)
	if err != nil || !ok {
		return p.fallback, err
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return p.fallback, fmt.Errorf("invalid %s value %q: %w", hapticsKey, value, err)
	}
	return enabled, nil
}

func (p *Preferences) SetHapticsEnabled(ctx context.Context, enabled bool) error {
	return p.store.setPreference(ctx, p.userID, hapticsKey, strconv.FormatBool(enabled))
}
