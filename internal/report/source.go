package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kiosk/internal/attendance"
)

// PostgresSource reads the attendance log from Postgres. The LEFT JOIN keeps
// entries whose user has since been deleted.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a source.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// EntriesBetween returns log rows with timestamps in [start, end), ascending.
func (s *PostgresSource) EntriesBetween(ctx context.Context, start, end time.Time) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT al.user_id, u.name, al.action, al.timestamp
		FROM attendance_log al
		LEFT JOIN users u ON u.id = al.user_id
		WHERE al.timestamp >= $1 AND al.timestamp < $2
		ORDER BY al.timestamp ASC, al.id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var action string
		if err := rows.Scan(&r.UserID, &r.Name, &action, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		if r.Action, err = attendance.ParseAction(action); err != nil {
			return nil, fmt.Errorf("log row for user %d: %w", r.UserID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
