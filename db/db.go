package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS commands (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	command_id TEXT NOT NULL,
	queue_seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	preset INTEGER,
	source TEXT NOT NULL,
	issued_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL,
	type TEXT NOT NULL,
	at TEXT NOT NULL,
	mode TEXT NOT NULL,
	target INTEGER,
	temperature REAL,
	source TEXT,
	reason TEXT
);

CREATE TABLE IF NOT EXISTS heat_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target INTEGER NOT NULL,
	source TEXT NOT NULL,
	started_at TEXT NOT NULL,
	start_temp REAL,
	ended_at TEXT DEFAULT NULL,
	end_reason TEXT DEFAULT NULL,
	end_temp REAL DEFAULT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Open opens the journal database at path and applies the schema. sqlite
// allows one writer, so the pool is limited to a single connection; this
// also keeps ":memory:" databases shared across calls.
func Open(path string) (*sql.DB, error) {
	dbConn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	dbConn.SetMaxOpenConns(1)

	if err := InitSchema(dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}
	return dbConn, nil
}

func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
