package certification

import "context"

// Certification is a label a user can hold, unique by name.
type Certification struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Store is the certification registry: plain associative data, no state
// machine. Duplicate names and duplicate assignments surface as
// sentinel.ErrConflict; missing users, certifications, or assignments as
// sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, name string) (int64, error)
	Assign(ctx context.Context, userID, certID int64) error
	Revoke(ctx context.Context, userID, certID int64) error
	List(ctx context.Context) ([]Certification, error)
	ListForUser(ctx context.Context, userID int64) ([]Certification, error)
}
