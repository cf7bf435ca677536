package state

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS session_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_index INTEGER NOT NULL DEFAULT -1,
			volume REAL NOT NULL DEFAULT 1.0,
			repeat_mode INTEGER NOT NULL DEFAULT 0,
			shuffle INTEGER NOT NULL DEFAULT 0,
			saved_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS queue_tracks (
			position INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			codec TEXT,
			frames INTEGER,
			sample_rate INTEGER,
			title TEXT,
			artist TEXT,
			album TEXT,
			track_number INTEGER
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Columns added after the first release; errors mean they exist.
	_, _ = db.Exec(`ALTER TABLE session_state ADD COLUMN repeat_mode INTEGER NOT NULL DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE session_state ADD COLUMN shuffle INTEGER NOT NULL DEFAULT 0`)
	return nil
}
