package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Schema notes: attendance_log deliberately has no foreign key to users, so
// deleting a user keeps its history and reports resolve those rows as
// deleted identities. user_certifications cascades with both parents.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		badge_code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'checked_out',
		photo_url TEXT,
		face_descriptor BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_log (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		action TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_log_timestamp ON attendance_log (timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_log_user ON attendance_log (user_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS certifications (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS user_certifications (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		certification_id BIGINT NOT NULL REFERENCES certifications(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, certification_id)
	)`,
}

// Migrate creates the schema when missing. Statements are idempotent so the
// server can run this unconditionally at startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SeedSampleUsers inserts a few demo users when the directory is empty.
// Dev-only convenience, gated by config.
func SeedSampleUsers(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if count > 0 {
		return nil
	}
	log.Println("users table empty, inserting sample data")
	samples := map[string]string{"a": "Alice", "b": "Bob", "c": "Charlie"}
	for badge, name := range samples {
		if _, err := db.ExecContext(ctx, `INSERT INTO users (badge_code, name) VALUES ($1, $2)`, badge, name); err != nil {
			return fmt.Errorf("seed user %s: %w", name, err)
		}
	}
	return nil
}
