package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the bot's SQLite database. All mutations are single statements so
// concurrent event handlers never observe half-applied records.
type DB struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and ensures the schema exists.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	s := &DB{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (d *DB) init() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS guilds (
			guild_id   TEXT PRIMARY KEY,
			guild_name TEXT,
			joined_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS guild_configs (
			guild_id     TEXT NOT NULL,
			config_key   TEXT NOT NULL,
			config_value TEXT NOT NULL,
			PRIMARY KEY (guild_id, config_key)
		)`,
		`CREATE TABLE IF NOT EXISTS quarantined_users (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id       TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			roles_json     TEXT NOT NULL,
			reason         TEXT,
			status         TEXT NOT NULL DEFAULT 'active',
			quarantined_at INTEGER NOT NULL,
			UNIQUE (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS action_permissions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			guild_id    TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			action_type TEXT NOT NULL,
			expires_at  INTEGER NOT NULL,
			is_used     INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS allowed_bots (
			guild_id TEXT NOT NULL,
			bot_id   TEXT NOT NULL,
			PRIMARY KEY (guild_id, bot_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}
