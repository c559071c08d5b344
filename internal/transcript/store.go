package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type StoreConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// SQLStore persists session logs in either a local SQLite file or a shared
// Postgres database. Timestamps are written from Clock rather than database
// defaults so both dialects behave identically.
type SQLStore struct {
	db     *sql.DB
	driver string
	Clock  func() time.Time
}

func Open(ctx context.Context, cfg StoreConfig) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("transcript dsn is required")
	}

	var driverName string
	switch cfg.Driver {
	case DriverSQLite:
		driverName = "sqlite3"
	case DriverPostgres:
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported transcript driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping transcript db: %w", err)
	}

	return NewStore(db, cfg.Driver), nil
}

func NewStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver, Clock: time.Now}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping transcript db: %w", err)
	}
	return nil
}

// EnsureSchema creates the sessions table when missing. Safe to call on every
// startup.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	var ddl string
	if s.driver == DriverPostgres {
		ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id BIGSERIAL PRIMARY KEY,
    session_id TEXT UNIQUE NOT NULL,
    message_log TEXT,
    started_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ
)`
	} else {
		ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT UNIQUE NOT NULL,
    message_log TEXT,
    started_at DATETIME NOT NULL,
    updated_at DATETIME
)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure sessions schema: %w", err)
	}
	return nil
}

func (s *SQLStore) CreateSession(ctx context.Context, sessionID string) error {
	query := s.rebind(`
INSERT INTO sessions (session_id, started_at)
VALUES (?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, sessionID, s.Clock().UTC()); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateSession(ctx context.Context, sessionID, messageLog string) error {
	query := s.rebind(`
UPDATE sessions
SET message_log = ?, updated_at = ?
WHERE session_id = ?`)
	result, err := s.db.ExecContext(ctx, query, messageLog, s.Clock().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (Session, error) {
	query := s.rebind(`
SELECT id, session_id, message_log, started_at, updated_at
FROM sessions
WHERE session_id = ?`)

	var session Session
	var messageLog sql.NullString
	var updatedAt sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&session.SessionID,
		&messageLog,
		&session.StartedAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	session.MessageLog = messageLog.String
	if updatedAt.Valid {
		t := updatedAt.Time
		session.UpdatedAt = &t
	}
	return session, nil
}

func (s *SQLStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	query := `
SELECT id, session_id, message_log, started_at, updated_at
FROM sessions
ORDER BY id DESC`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.rebind(query+`
LIMIT ?`), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]Session, 0)
	for rows.Next() {
		var session Session
		var messageLog sql.NullString
		var updatedAt sql.NullTime
		if err := rows.Scan(&session.ID, &session.SessionID, &messageLog, &session.StartedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		session.MessageLog = messageLog.String
		if updatedAt.Valid {
			t := updatedAt.Time
			session.UpdatedAt = &t
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

// rebind rewrites ? placeholders to $n for the postgres dialect.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var builder strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			builder.WriteString("$" + strconv.Itoa(n))
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
