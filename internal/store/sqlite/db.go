package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. Idempotent CREATE TABLE / CREATE INDEX
// statements; the same database file serves the simulator (conversations,
// operators) and the console's local state (preferences, snapshots).
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY,
			customer_phone VARCHAR(32) NOT NULL,
			customer_name VARCHAR(100),
			platform VARCHAR(16) NOT NULL,
			control_mode VARCHAR(8) NOT NULL DEFAULT 'ai',
			needs_human_attention BOOLEAN DEFAULT FALSE,
			last_message_time DATETIME DEFAULT CURRENT_TIMESTAMP,
			latest_content TEXT,
			latest_sender VARCHAR(32),
			latest_timestamp DATETIME,
			unread_count INTEGER DEFAULT 0,
			starred BOOLEAN DEFAULT FALSE,
			starred_at DATETIME DEFAULT NULL,
			archived BOOLEAN DEFAULT FALSE,
			archived_at DATETIME DEFAULT NULL,
			pinned BOOLEAN DEFAULT FALSE,
			pinned_at DATETIME DEFAULT NULL,
			phone_line_id INTEGER DEFAULT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS operators (
			id INTEGER PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key VARCHAR(64) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			scope_key VARCHAR(64) PRIMARY KEY,
			payload TEXT NOT NULL,
			saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_archived ON conversations(archived);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_phone_line ON conversations(phone_line_id);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_message ON conversations(last_message_time DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_attention ON conversations(needs_human_attention);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
