package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	connectAttempts = 5
	connectInterval = 2 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id           TEXT PRIMARY KEY,
		email        TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		role         TEXT NOT NULL CHECK (role IN ('tutor', 'student', 'parent')),
		date_joined  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS tutor_profiles (
		id         TEXT PRIMARY KEY,
		account_id TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id          TEXT PRIMARY KEY,
		guardian_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS class_sessions (
		id                TEXT PRIMARY KEY,
		tutor_id          TEXT NOT NULL,
		student_id        TEXT NOT NULL,
		scheduled_at      TIMESTAMPTZ NOT NULL,
		status            TEXT NOT NULL CHECK (status IN ('SCHEDULED', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED')),
		attendance_token  TEXT NOT NULL DEFAULT '',
		verification_date TIMESTAMPTZ,
		end_time          TIMESTAMPTZ,
		CHECK (attendance_token = '' OR status = 'SCHEDULED'),
		CHECK ((end_time IS NOT NULL) = (status = 'COMPLETED'))
	)`,
	`CREATE INDEX IF NOT EXISTS class_sessions_tutor_idx ON class_sessions (tutor_id)`,
	`CREATE INDEX IF NOT EXISTS class_sessions_student_idx ON class_sessions (student_id)`,
}

// Open connects to PostgreSQL, retrying while the database comes up.
func Open(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = sqlx.ConnectContext(ctx, "postgres", databaseURL)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msgf("Failed to connect to database (attempt %d/%d)", i+1, connectAttempts)
		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectInterval):
			}
		}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[postgres.Open] failed after %d attempts", connectAttempts)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "[postgres.Migrate]")
		}
	}
	return nil
}
