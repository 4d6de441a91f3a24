package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"kiosk/internal/sentinel"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// Repository persists directory entries in Postgres. It handles admin-side
// reads and profile writes; status is written only through the attendance
// engine's store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a user with the default checked_out status and returns its id.
// A taken badge code yields sentinel.ErrConflict.
func (r *Repository) Create(ctx context.Context, name, badgeCode string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (name, badge_code)
		VALUES ($1, $2)
		RETURNING id
	`, name, badgeCode).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("badge code %q: %w", badgeCode, sentinel.ErrConflict)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetByID fetches a user by internal id.
func (r *Repository) GetByID(ctx context.Context, id int64) (User, error) {
	return r.get(ctx, `SELECT id, badge_code, name, status, photo_url, face_descriptor IS NOT NULL FROM users WHERE id = $1`, id)
}

// GetByBadge fetches a user by badge code.
func (r *Repository) GetByBadge(ctx context.Context, badgeCode string) (User, error) {
	return r.get(ctx, `SELECT id, badge_code, name, status, photo_url, face_descriptor IS NOT NULL FROM users WHERE badge_code = $1`, badgeCode)
}

func (r *Repository) get(ctx context.Context, query string, arg any) (User, error) {
	var u User
	var status string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.BadgeCode, &u.Name, &status, &u.PhotoURL, &u.FaceEnrolled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, sentinel.ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.Status, err = ParseStatus(status)
	if err != nil {
		return User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return u, nil
}

// Delete removes a user. Attendance log rows referencing the user are kept;
// report derivation resolves them as deleted identities.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns all users ordered by name.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	return r.list(ctx, `SELECT id, badge_code, name, status, photo_url, face_descriptor IS NOT NULL FROM users ORDER BY name, id`)
}

// ListByStatus returns users currently in the given status, ordered by name.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]User, error) {
	return r.list(ctx, `SELECT id, badge_code, name, status, photo_url, face_descriptor IS NOT NULL FROM users WHERE status = $1 ORDER BY name, id`, string(status))
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var status string
		if err := rows.Scan(&u.ID, &u.BadgeCode, &u.Name, &status, &u.PhotoURL, &u.FaceEnrolled); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.Status, err = ParseStatus(status); err != nil {
			return nil, fmt.Errorf("user %d: %w", u.ID, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetPhoto stores the uploaded photo URL for a user.
func (r *Repository) SetPhoto(ctx context.Context, id int64, url string) error {
	return r.updateOne(ctx, `UPDATE users SET photo_url = $2 WHERE id = $1`, id, url)
}

// SetFaceDescriptor stores the opaque face descriptor blob for a user.
func (r *Repository) SetFaceDescriptor(ctx context.Context, id int64, descriptor []byte) error {
	return r.updateOne(ctx, `UPDATE users SET face_descriptor = $2 WHERE id = $1`, id, descriptor)
}

func (r *Repository) updateOne(ctx context.Context, query string, id int64, arg any) error {
	res, err := r.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
