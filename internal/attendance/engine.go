package attendance

import (
	"context"
	"errors"
	"time"

	"kiosk/internal/clock"
	"kiosk/internal/directory"
	"kiosk/internal/metrics"
)

// Ref identifies a user by internal id or by badge code. Both resolve to the
// same directory entry.
type Ref struct {
	ID    int64
	Badge string
}

// ByID refers to a user by internal id.
func ByID(id int64) Ref { return Ref{ID: id} }

// ByBadge refers to a user by badge code.
func ByBadge(code string) Ref { return Ref{Badge: code} }

// LogEntry is one immutable row of the append-only attendance log. The user
// reference is weak: the user row may be deleted later and the entry stays.
type LogEntry struct {
	ID        int64
	UserID    int64
	Action    Action
	Timestamp time.Time
}

// Store is the persistence boundary for status transitions. Execute must run
// validate under per-user exclusion and, when it succeeds, apply the status
// update and the log append as one atomic unit — a rejected or failed
// transition leaves neither visible.
type Store interface {
	Find(ctx context.Context, ref Ref) (directory.User, error)
	Execute(ctx context.Context, ref Ref, action Action, at time.Time, validate func(directory.User) (directory.Status, error)) (directory.User, error)
}

// Engine is the sole authority over user status. All transitions run through
// Apply; nothing else writes status or appends to the log.
type Engine struct {
	store Store
	clock *clock.Clock
}

// NewEngine creates an engine over a store and a canonical clock.
func NewEngine(store Store, clk *clock.Clock) *Engine {
	return &Engine{store: store, clock: clk}
}

// GetStatus returns the user's directory entry without changing it.
func (e *Engine) GetStatus(ctx context.Context, ref Ref) (directory.User, error) {
	return e.store.Find(ctx, ref)
}

// Apply validates the requested action against the user's current status and,
// when legal, moves the user and appends one log entry stamped with a single
// timestamp. On rejection the user and the log are untouched.
func (e *Engine) Apply(ctx context.Context, ref Ref, action Action) (directory.User, error) {
	at := e.clock.Now()
	user, err := e.store.Execute(ctx, ref, action, at, func(u directory.User) (directory.Status, error) {
		return Next(u.Status, action)
	})
	if err != nil {
		var ite *InvalidTransitionError
		if errors.As(err, &ite) {
			metrics.TransitionRejected(string(action))
		}
		return directory.User{}, err
	}
	metrics.TransitionAccepted(string(action))
	return user, nil
}

// ForceCheckout is the admin override: it checks a user out from either
// checked_in or on_break, bypassing the end-break-first rule. From
// checked_out it is rejected as already checked out.
func (e *Engine) ForceCheckout(ctx context.Context, userID int64) (directory.User, error) {
	return e.Apply(ctx, ByID(userID), ActionForceCheckout)
}

// Event is published to the queue after an accepted transition so workers can
// maintain derived views. Delivery is advisory; the log is the source of truth.
type Event struct {
	UserID int64            `json:"user_id"`
	Name   string           `json:"name"`
	Action Action           `json:"action"`
	Status directory.Status `json:"status"`
	At     time.Time        `json:"at"`
}
