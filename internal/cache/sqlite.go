package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jackzampolin/wordfmt/internal/rules"
)

const SQLiteName = "sqlite"

// SQLiteStore persists entries in a formatting_cache table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the cache table. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to an in-memory database is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const schema = `
		CREATE TABLE IF NOT EXISTS formatting_cache (
			input_hash        TEXT PRIMARY KEY,
			formatted_content TEXT NOT NULL DEFAULT '',
			formatting_rules  TEXT NOT NULL DEFAULT '{}',
			summary           TEXT NOT NULL DEFAULT '',
			created_at        INTEGER NOT NULL,
			expires_at        INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_formatting_cache_expires_at ON formatting_cache(expires_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate formatting_cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Name() string { return SQLiteName }

// Get returns the unexpired entry for hash.
func (s *SQLiteStore) Get(ctx context.Context, hash string) (*Entry, error) {
	var (
		e                  Entry
		rulesJSON          string
		created, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT input_hash, formatted_content, formatting_rules, summary, created_at, expires_at
		FROM formatting_cache
		WHERE input_hash = ? AND expires_at > ?`,
		hash, s.now().UnixMilli(),
	).Scan(&e.InputHash, &e.FormattedContent, &rulesJSON, &e.Summary, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var r rules.Rules
	if err := json.Unmarshal([]byte(rulesJSON), &r); err != nil {
		return nil, fmt.Errorf("failed to decode cached rules: %w", err)
	}
	e.FormattingRules = r
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &e, nil
}

// Put upserts e by input hash.
func (s *SQLiteStore) Put(ctx context.Context, e *Entry) error {
	if e == nil || e.InputHash == "" {
		return ErrInvalidKey
	}

	rulesJSON, err := json.Marshal(e.FormattingRules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO formatting_cache (input_hash, formatted_content, formatting_rules, summary, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(input_hash) DO UPDATE SET
			formatted_content = excluded.formatted_content,
			formatting_rules  = excluded.formatting_rules,
			summary           = excluded.summary,
			created_at        = excluded.created_at,
			expires_at        = excluded.expires_at`,
		e.InputHash, e.FormattedContent, string(rulesJSON), e.Summary,
		e.CreatedAt.UnixMilli(), e.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
