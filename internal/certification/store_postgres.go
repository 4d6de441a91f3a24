package certification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"kiosk/internal/sentinel"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PostgresStore implements Store on Postgres, relying on the unique and
// foreign key constraints for duplicate and missing-reference detection.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a certification and returns its id.
func (s *PostgresStore) Create(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO certifications (name)
		VALUES ($1)
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("certification %q: %w", name, sentinel.ErrConflict)
		}
		return 0, fmt.Errorf("create certification: %w", err)
	}
	return id, nil
}

// Assign records that the user holds the certification.
func (s *PostgresStore) Assign(ctx context.Context, userID, certID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_certifications (user_id, certification_id)
		VALUES ($1, $2)
	`, userID, certID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return fmt.Errorf("assignment: %w", sentinel.ErrConflict)
			case foreignKeyViolation:
				return fmt.Errorf("user or certification: %w", sentinel.ErrNotFound)
			}
		}
		return fmt.Errorf("assign certification: %w", err)
	}
	return nil
}

// Revoke removes an assignment.
func (s *PostgresStore) Revoke(ctx context.Context, userID, certID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM user_certifications
		WHERE user_id = $1 AND certification_id = $2
	`, userID, certID)
	if err != nil {
		return fmt.Errorf("revoke certification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke certification: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("assignment: %w", sentinel.ErrNotFound)
	}
	return nil
}

// List returns all certifications ordered by name.
func (s *PostgresStore) List(ctx context.Context) ([]Certification, error) {
	return s.query(ctx, `SELECT id, name FROM certifications ORDER BY name`)
}

// ListForUser returns the certifications a user holds, ordered by name.
func (s *PostgresStore) ListForUser(ctx context.Context, userID int64) ([]Certification, error) {
	return s.query(ctx, `
		SELECT c.id, c.name
		FROM certifications c
		JOIN user_certifications uc ON uc.certification_id = c.id
		WHERE uc.user_id = $1
		ORDER BY c.name
	`, userID)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Certification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	defer rows.Close()

	var out []Certification
	for rows.Next() {
		var c Certification
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan certification: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
