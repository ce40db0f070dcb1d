package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

var (
	ErrTimerNotFound       = errors.New("timer not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateTimerName  = errors.New("timer name already exists")
	ErrInvalidUsername     = errors.New("username must be 1-32 characters")
	ErrInvalidTimerField   = errors.New("timer name, color and icon must be 1-32 characters")
	ErrActiveSessionExists = errors.New("user already has an open session")
)

type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open picks a backend from dsn: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is a SQLite file path.
func Open(dsn string) (*Store, error) {
	if IsPostgresDSN(dsn) {
		return NewPostgres(dsn)
	}
	return New(dsn)
}

func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	return open(db, dialectSQLite)
}

// NewPostgres connects to PostgreSQL and runs migrations.
func NewPostgres(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return open(db, dialectPostgres)
}

func open(db *sql.DB, d dialect) (*Store, error) {
	s := &Store{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Backend names the SQL dialect in use.
func (s *Store) Backend() string {
	return s.dialect.String()
}

// SetNow replaces the clock used for created_at/updated_at stamps.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	return s.setSchemaVersion(currentVersion)
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	if s.dialect == dialectSQLite {
		err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
		return version, err
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, err
	}
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	return version, err
}

func (s *Store) setSchemaVersion(v int) error {
	if s.dialect == dialectSQLite {
		_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v))
		return err
	}
	_, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, v)
	return err
}

// The schema sticks to SQL that both SQLite and PostgreSQL accept. The
// partial unique index is what guarantees one open session per user.
func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		username    TEXT PRIMARY KEY CHECK (length(username) BETWEEN 1 AND 32),
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS timers (
		id                   TEXT PRIMARY KEY,
		username             TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		name                 TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 32),
		color                TEXT NOT NULL,
		icon                 TEXT NOT NULL,
		archived             INTEGER NOT NULL DEFAULT 0,
		cycle_total_seconds  BIGINT NOT NULL DEFAULT 0,
		created_at           TEXT NOT NULL,
		updated_at           TEXT NOT NULL,
		UNIQUE(username, name)
	);

	CREATE INDEX IF NOT EXISTS ix_timers_username_archived ON timers(username, archived);

	CREATE TABLE IF NOT EXISTS sessions (
		id                TEXT PRIMARY KEY,
		username          TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		timer_id          TEXT NOT NULL REFERENCES timers(id) ON DELETE CASCADE,
		start_at          TEXT NOT NULL,
		end_at            TEXT,
		duration_seconds  BIGINT,
		client_tz         TEXT NOT NULL,
		day_date          TEXT NOT NULL,
		day_of_week       INTEGER NOT NULL,
		created_at        TEXT NOT NULL,
		CHECK (end_at IS NULL OR end_at >= start_at),
		CHECK (duration_seconds IS NULL OR duration_seconds >= 0)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS ux_sessions_one_active_per_user
		ON sessions(username) WHERE end_at IS NULL;
	CREATE INDEX IF NOT EXISTS ix_sessions_username_day   ON sessions(username, day_date);
	CREATE INDEX IF NOT EXISTS ix_sessions_timer_day      ON sessions(username, timer_id, day_date);
	CREATE INDEX IF NOT EXISTS ix_sessions_username_start ON sessions(username, start_at);

	CREATE TABLE IF NOT EXISTS day_summaries (
		id             TEXT PRIMARY KEY,
		username       TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		day_date       TEXT NOT NULL,
		timer_id       TEXT NOT NULL REFERENCES timers(id) ON DELETE CASCADE,
		total_seconds  BIGINT NOT NULL CHECK (total_seconds >= 0),
		created_at     TEXT NOT NULL,
		UNIQUE(username, day_date, timer_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		username  TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		key       TEXT NOT NULL,
		value     TEXT NOT NULL,
		PRIMARY KEY (username, key)
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// DefaultDBPath returns ~/.config/coursetimers/coursetimers.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "coursetimers", "coursetimers.db"), nil
}
