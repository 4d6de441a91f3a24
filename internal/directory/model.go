package directory

import (
	"errors"
	"fmt"
)

// Status is the closed set of attendance states a user can be in. Only the
// attendance engine moves a user between them.
type Status string

const (
	StatusCheckedOut Status = "checked_out"
	StatusCheckedIn  Status = "checked_in"
	StatusOnBreak    Status = "on_break"
)

// ErrUnknownStatus is returned when a status string from outside the system
// does not name one of the three states.
var ErrUnknownStatus = errors.New("unknown status")

// ParseStatus validates a raw status string at the boundary.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCheckedOut, StatusCheckedIn, StatusOnBreak:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// User is a directory entry. BadgeCode is the external RFID identifier,
// unique when set. Status always holds one of the three enumerated values;
// new users start checked out.
type User struct {
	ID           int64   `json:"id"`
	BadgeCode    string  `json:"rfid_code"`
	Name         string  `json:"name"`
	Status       Status  `json:"status"`
	PhotoURL     *string `json:"photo_url,omitempty"`
	FaceEnrolled bool    `json:"face_enrolled"`
}
