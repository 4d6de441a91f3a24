package attendance

import (
	"errors"
	"fmt"

	"kiosk/internal/directory"
)

// Action is the closed set of log entry kinds. Each accepted transition
// appends exactly one entry carrying one of these codes.
type Action string

const (
	ActionCheckIn       Action = "check_in"
	ActionCheckOut      Action = "check_out"
	ActionBreakStart    Action = "break_start"
	ActionBreakEnd      Action = "break_end"
	ActionForceCheckout Action = "force_checkout"
)

// ErrUnknownAction is returned when an action string from outside the system
// does not name a known action.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction validates a raw action string at the boundary.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCheckIn, ActionCheckOut, ActionBreakStart, ActionBreakEnd, ActionForceCheckout:
		return Action(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// InvalidTransitionError reports that the user's current status forbids the
// requested action. Current and Reason give the caller enough to display
// corrective guidance.
type InvalidTransitionError struct {
	Current directory.Status
	Action  Action
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s from %s: %s", e.Action, e.Current, e.Reason)
}

type transition struct {
	from   map[directory.Status]bool
	to     directory.Status
	reason string // shown when the current status is not in from
}

var table = map[Action]transition{
	ActionCheckIn: {
		from:   map[directory.Status]bool{directory.StatusCheckedOut: true},
		to:     directory.StatusCheckedIn,
		reason: "already checked in or on break",
	},
	ActionCheckOut: {
		from:   map[directory.Status]bool{directory.StatusCheckedIn: true},
		to:     directory.StatusCheckedOut,
		reason: "not checked in",
	},
	ActionBreakStart: {
		from:   map[directory.Status]bool{directory.StatusCheckedIn: true},
		to:     directory.StatusOnBreak,
		reason: "must be checked in to go on a break",
	},
	ActionBreakEnd: {
		from:   map[directory.Status]bool{directory.StatusOnBreak: true},
		to:     directory.StatusCheckedIn,
		reason: "must be on break to return from break",
	},
	ActionForceCheckout: {
		from: map[directory.Status]bool{
			directory.StatusCheckedIn: true,
			directory.StatusOnBreak:   true,
		},
		to:     directory.StatusCheckedOut,
		reason: "already checked out",
	},
}

// Next returns the status the user moves to when action is applied from
// current, or an InvalidTransitionError when the table forbids it. There is
// no path from on_break straight to checked_out except force_checkout.
func Next(current directory.Status, action Action) (directory.Status, error) {
	t, ok := table[action]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !t.from[current] {
		return "", &InvalidTransitionError{Current: current, Action: action, Reason: t.reason}
	}
	return t.to, nil
}
