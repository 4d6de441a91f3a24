package report

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"kiosk/internal/attendance"
	"kiosk/internal/clock"
)

// Row is one attendance_log line joined against the directory. Name is nil
// when the owning user has been deleted; the entry still counts.
type Row struct {
	UserID    int64
	Name      *string
	Action    attendance.Action
	Timestamp time.Time
}

// DisplayName resolves a row's identity, marking deleted users instead of
// dropping their history.
func DisplayName(r Row) string {
	if r.Name != nil {
		return *r.Name
	}
	return fmt.Sprintf("user #%d (deleted)", r.UserID)
}

// Interval is a closed start/end pair within the report's date.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Orphan is a close action with no matching open within the date window.
// Surfacing these beats hiding malformed (or cross-midnight) data.
type Orphan struct {
	Action attendance.Action
	At     time.Time
}

// UserDay is the derived picture of one user's day: closed sessions and
// breaks, whatever was still open at the end of the scan, and any orphaned
// closes.
type UserDay struct {
	UserID      int64
	Name        string
	Deleted     bool
	Entries     []Row
	Sessions    []Interval
	Breaks      []Interval
	OpenCheckIn *time.Time
	OpenBreak   *time.Time
	Orphans     []Orphan
}

// Report holds the derived day for every user with log activity on the date.
type Report struct {
	Date  string
	rows  []Row
	users []UserDay
}

// Len reports how many users had activity.
func (r *Report) Len() int { return len(r.users) }

// Users yields the per-user results ordered by display name. The sequence is
// restartable and bounded by the day's log.
func (r *Report) Users() iter.Seq[UserDay] {
	return func(yield func(UserDay) bool) {
		for _, u := range r.users {
			if !yield(u) {
				return
			}
		}
	}
}

// Rows returns the raw log lines for the date in timestamp order.
func (r *Report) Rows() []Row { return r.rows }

// Build folds the date's log rows (timestamp ascending) into per-user
// sessions. A check_out or force_checkout closes the open check-in; break_end
// closes the open break; closes with nothing open become orphans. The day
// boundary is a hard cut: overnight sessions show up as an open check-in on
// day one and an orphaned check-out on day two.
func Build(date string, rows []Row) *Report {
	byUser := make(map[int64]*UserDay)
	var order []int64
	for _, row := range rows {
		day, ok := byUser[row.UserID]
		if !ok {
			day = &UserDay{UserID: row.UserID, Name: DisplayName(row), Deleted: row.Name == nil}
			byUser[row.UserID] = day
			order = append(order, row.UserID)
		}
		day.Entries = append(day.Entries, row)

		switch row.Action {
		case attendance.ActionCheckIn:
			start := row.Timestamp
			day.OpenCheckIn = &start
		case attendance.ActionCheckOut, attendance.ActionForceCheckout:
			if day.OpenCheckIn != nil {
				day.Sessions = append(day.Sessions, Interval{Start: *day.OpenCheckIn, End: row.Timestamp})
				day.OpenCheckIn = nil
			} else {
				day.Orphans = append(day.Orphans, Orphan{Action: row.Action, At: row.Timestamp})
			}
			if row.Action == attendance.ActionForceCheckout && day.OpenBreak != nil {
				// a forced checkout also ends the break in progress
				day.Breaks = append(day.Breaks, Interval{Start: *day.OpenBreak, End: row.Timestamp})
				day.OpenBreak = nil
			}
		case attendance.ActionBreakStart:
			start := row.Timestamp
			day.OpenBreak = &start
		case attendance.ActionBreakEnd:
			if day.OpenBreak != nil {
				day.Breaks = append(day.Breaks, Interval{Start: *day.OpenBreak, End: row.Timestamp})
				day.OpenBreak = nil
			} else {
				day.Orphans = append(day.Orphans, Orphan{Action: row.Action, At: row.Timestamp})
			}
		}
	}

	users := make([]UserDay, 0, len(order))
	for _, id := range order {
		users = append(users, *byUser[id])
	}
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].UserID < users[j].UserID
	})
	return &Report{Date: date, rows: rows, users: users}
}

// Source reads log rows joined with the directory for a time window,
// timestamp ascending. It never mutates anything.
type Source interface {
	EntriesBetween(ctx context.Context, start, end time.Time) ([]Row, error)
}

// Deriver reconstructs per-user sessions for a calendar date in the
// canonical zone.
type Deriver struct {
	source Source
	clock  *clock.Clock
}

// NewDeriver creates a deriver.
func NewDeriver(source Source, clk *clock.Clock) *Deriver {
	return &Deriver{source: source, clock: clk}
}

// Derive builds the report for date ("2006-01-02"). Empty date means today.
func (d *Deriver) Derive(ctx context.Context, date string) (*Report, error) {
	if date == "" {
		date = d.clock.Today()
	}
	start, end, err := d.clock.DayBounds(date)
	if err != nil {
		return nil, err
	}
	rows, err := d.source.EntriesBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("derive report for %s: %w", date, err)
	}
	return Build(date, rows), nil
}
