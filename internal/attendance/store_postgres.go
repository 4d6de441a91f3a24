package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kiosk/internal/directory"
	"kiosk/internal/sentinel"
)

// PostgresStore implements Store on Postgres. Per-user serialization comes
// from SELECT ... FOR UPDATE: concurrent transitions for the same user queue
// on the row lock and each sees the previous one's committed status. The
// status update and the log insert commit together or not at all.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, badge_code, name, status, photo_url, face_descriptor IS NOT NULL`

// Find resolves a ref without locking.
func (s *PostgresStore) Find(ctx context.Context, ref Ref) (directory.User, error) {
	query, arg := refQuery(ref, "")
	return scanUser(s.db.QueryRowContext(ctx, query, arg))
}

// Execute runs validate against the row-locked current user and applies the
// resulting status plus one log entry in the same transaction.
func (s *PostgresStore) Execute(ctx context.Context, ref Ref, action Action, at time.Time, validate func(directory.User) (directory.Status, error)) (directory.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.User{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, arg := refQuery(ref, " FOR UPDATE")
	user, err := scanUser(tx.QueryRowContext(ctx, query, arg))
	if err != nil {
		return directory.User{}, err
	}

	next, err := validate(user)
	if err != nil {
		return directory.User{}, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET status = $2 WHERE id = $1`, user.ID, string(next)); err != nil {
		return directory.User{}, fmt.Errorf("update status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_log (user_id, action, timestamp)
		VALUES ($1, $2, $3)
	`, user.ID, string(action), at); err != nil {
		return directory.User{}, fmt.Errorf("append log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return directory.User{}, fmt.Errorf("commit transition: %w", err)
	}
	user.Status = next
	return user, nil
}

func refQuery(ref Ref, suffix string) (string, any) {
	if ref.Badge != "" {
		return `SELECT ` + userColumns + ` FROM users WHERE badge_code = $1` + suffix, ref.Badge
	}
	return `SELECT ` + userColumns + ` FROM users WHERE id = $1` + suffix, ref.ID
}

func scanUser(row *sql.Row) (directory.User, error) {
	var u directory.User
	var status string
	if err := row.Scan(&u.ID, &u.BadgeCode, &u.Name, &status, &u.PhotoURL, &u.FaceEnrolled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return directory.User{}, sentinel.ErrNotFound
		}
		return directory.User{}, fmt.Errorf("read user: %w", err)
	}
	parsed, err := directory.ParseStatus(status)
	if err != nil {
		return directory.User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Status = parsed
	return u, nil
}
