package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/line-handoff/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		bot_handled INTEGER NOT NULL DEFAULT 1,
		last_messaged_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(last_messaged_at) WHERE bot_handled = 0;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertSession creates the session on first contact or refreshes
// last_messaged_at on an existing one, preserving bot_handled.
func (s *SQLiteStore) UpsertSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	now := time.Now()
	query := `
	INSERT INTO sessions (user_id, bot_handled, last_messaged_at, created_at, updated_at)
	VALUES (?, 1, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		last_messaged_at = excluded.last_messaged_at,
		updated_at = excluded.updated_at`

	ts := now.Unix()
	if _, err := s.db.ExecContext(ctx, query, userID, ts, ts, ts); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	return s.GetSession(ctx, userID)
}

// GetSession retrieves a session by user ID. Returns nil, nil if absent.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	query := `
		SELECT user_id, bot_handled, last_messaged_at, created_at, updated_at
		FROM sessions WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}
	return session, nil
}

// SetBotHandled updates the hand-off flag for an existing session.
func (s *SQLiteStore) SetBotHandled(ctx context.Context, userID string, botHandled bool) error {
	query := `UPDATE sessions SET bot_handled = ?, updated_at = ? WHERE user_id = ?`

	flag := 0
	if botHandled {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx, query, flag, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update bot_handled: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAgentHandled returns all sessions pinned to a human agent.
func (s *SQLiteStore) ListAgentHandled(ctx context.Context) ([]*domain.UserSession, error) {
	query := `
		SELECT user_id, bot_handled, last_messaged_at, created_at, updated_at
		FROM sessions WHERE bot_handled = 0`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query agent-handled sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.UserSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.UserSession, error) {
	var session domain.UserSession
	var botHandled int
	var lastMessaged, createdAt, updatedAt int64

	err := row.Scan(&session.UserID, &botHandled, &lastMessaged, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	session.BotHandled = botHandled != 0
	session.LastMessagedAt = time.Unix(lastMessaged, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	return &session, nil
}
