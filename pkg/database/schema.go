package database

import (
	"database/sql"
	"fmt"
)

// Schema for the interview store. Questions, analyses and evaluations are
// append-only from the pipeline's perspective; sessions are created by the
// HTTP surface and only ever flip to finished.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	scenario_id     TEXT NOT NULL,
	start_time      DATETIME NOT NULL,
	end_time        DATETIME,
	total_questions INTEGER NOT NULL DEFAULT 0,
	finished        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS questions (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	number     INTEGER NOT NULL,
	text       TEXT NOT NULL,
	asked_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_questions_session ON questions(session_id, number);

CREATE TABLE IF NOT EXISTS response_analyses (
	id                TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL REFERENCES sessions(id),
	question_id       TEXT NOT NULL,
	speech_text       TEXT NOT NULL DEFAULT '',
	facial_expression TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_session ON response_analyses(session_id, created_at);

CREATE TABLE IF NOT EXISTS answer_evaluations (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	question_id TEXT NOT NULL,
	analysis_id TEXT NOT NULL,
	text        TEXT NOT NULL,
	score       REAL NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluations_session ON answer_evaluations(session_id);
`

// EnsureSchema creates all required tables when they do not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ValidateTablesExist verifies the store carries every required table.
func ValidateTablesExist(db *sql.DB) error {
	required := []string{"sessions", "questions", "response_analyses", "answer_evaluations"}

	for _, table := range required {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("required table %s does not exist", table)
		}
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
	}
	return nil
}
