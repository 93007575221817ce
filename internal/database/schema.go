package database

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
)

type table struct {
	name string
	ddl  string
}

var tables = []table{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			created_at {{ts}} NOT NULL
		)`},
	{"profiles", `
		CREATE TABLE IF NOT EXISTS profiles (
			user_id BIGINT PRIMARY KEY REFERENCES users(id),
			total_words INTEGER NOT NULL DEFAULT 0,
			mastered_words INTEGER NOT NULL DEFAULT 0,
			streak_days INTEGER NOT NULL DEFAULT 0,
			max_streak INTEGER NOT NULL DEFAULT 0,
			last_activity TEXT
		)`},
	{"vocabulary", `
		CREATE TABLE IF NOT EXISTS vocabulary (
			id {{pk}},
			user_id BIGINT NOT NULL REFERENCES users(id),
			word_key TEXT NOT NULL,
			source_label TEXT NOT NULL DEFAULT '',
			gloss_word TEXT NOT NULL DEFAULT '',
			discovered_via TEXT NOT NULL,
			mastery_level INTEGER NOT NULL DEFAULT 1,
			previous_mastery_level INTEGER NOT NULL DEFAULT 1,
			exercises_completed INTEGER NOT NULL DEFAULT 0,
			exercises_correct INTEGER NOT NULL DEFAULT 0,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			abandoned_exercises INTEGER NOT NULL DEFAULT 0,
			times_detected INTEGER NOT NULL DEFAULT 0,
			first_seen_at {{ts}} NOT NULL,
			last_seen_at {{ts}},
			last_practiced_at {{ts}},
			mastered_at {{ts}},
			UNIQUE(user_id, word_key),
			CHECK (mastery_level BETWEEN 0 AND 5),
			CHECK (exercises_correct <= exercises_completed)
		)`},
	{"daily_action_ledger", `
		CREATE TABLE IF NOT EXISTS daily_action_ledger (
			user_id BIGINT NOT NULL,
			word_key TEXT NOT NULL,
			action TEXT NOT NULL,
			day TEXT NOT NULL,
			PRIMARY KEY (user_id, word_key, action, day)
		)`},
	{"audit_events", `
		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			word_key TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL DEFAULT '',
			payload {{json}},
			created_at {{ts}} NOT NULL
		)`},
	{"audit_events_user_idx", `
		CREATE INDEX IF NOT EXISTS audit_events_user_idx ON audit_events (user_id, created_at)`},
	{"daily_goals", `
		CREATE TABLE IF NOT EXISTS daily_goals (
			user_id BIGINT NOT NULL REFERENCES users(id),
			day TEXT NOT NULL,
			words_detected INTEGER NOT NULL DEFAULT 0,
			words_practiced INTEGER NOT NULL DEFAULT 0,
			words_mastered INTEGER NOT NULL DEFAULT 0,
			detection_goal INTEGER NOT NULL DEFAULT 3,
			practice_goal INTEGER NOT NULL DEFAULT 5,
			mastery_goal INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, day)
		)`},
	{"translations", `
		CREATE TABLE IF NOT EXISTS translations (
			id {{pk}},
			label TEXT NOT NULL UNIQUE,
			spanish TEXT NOT NULL,
			quechua TEXT NOT NULL,
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`},
	{"exercise_sessions", `
		CREATE TABLE IF NOT EXISTS exercise_sessions (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			started_at {{ts}} NOT NULL,
			ended_at {{ts}}
		)`},
	{"session_items", `
		CREATE TABLE IF NOT EXISTS session_items (
			session_id TEXT NOT NULL REFERENCES exercise_sessions(id),
			position INTEGER NOT NULL,
			kind TEXT NOT NULL,
			word_key TEXT NOT NULL,
			payload {{json}},
			answered BOOLEAN NOT NULL DEFAULT FALSE,
			correct BOOLEAN NOT NULL DEFAULT FALSE,
			answered_at {{ts}},
			PRIMARY KEY (session_id, position)
		)`},
}

func dialect(driver string) *strings.Replacer {
	if driver == DriverPostgres {
		return strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ",
			"{{json}}", "JSONB",
		)
	}
	return strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "TIMESTAMP",
		"{{json}}", "TEXT",
	)
}

// Migrate creates any missing tables
func Migrate(ctx context.Context, db *sqlx.DB) error {
	r := dialect(db.DriverName())
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, r.Replace(t.ddl)); err != nil {
			return eris.Wrapf(err, "failed to create %s", t.name)
		}
	}
	return nil
}
