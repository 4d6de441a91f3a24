package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kiosk/internal/attendance"
	"kiosk/internal/clock"
)

func named(name string) *string { return &name }

func at(hour, min int) time.Time {
	return time.Date(2024, 3, 15, hour, min, 0, 0, time.UTC)
}

func TestBuildSessionWithBreak(t *testing.T) {
	rows := []Row{
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckIn, Timestamp: at(9, 0)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionBreakStart, Timestamp: at(12, 0)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionBreakEnd, Timestamp: at(12, 30)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckOut, Timestamp: at(17, 0)},
	}
	rep := Build("2024-03-15", rows)
	require.Equal(t, 1, rep.Len())

	var day UserDay
	for d := range rep.Users() {
		day = d
	}
	assert.Equal(t, "Alice", day.Name)
	require.Len(t, day.Sessions, 1)
	assert.True(t, day.Sessions[0].Start.Equal(at(9, 0)))
	assert.True(t, day.Sessions[0].End.Equal(at(17, 0)))
	require.Len(t, day.Breaks, 1)
	assert.True(t, day.Breaks[0].Start.Equal(at(12, 0)))
	assert.True(t, day.Breaks[0].End.Equal(at(12, 30)))
	assert.Nil(t, day.OpenCheckIn)
	assert.Nil(t, day.OpenBreak)
	assert.Empty(t, day.Orphans)
}

func TestBuildOrphanedCheckOutSurfaces(t *testing.T) {
	rows := []Row{
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckOut, Timestamp: at(1, 0)},
	}
	rep := Build("2024-03-15", rows)
	for day := range rep.Users() {
		require.Len(t, day.Orphans, 1)
		assert.Equal(t, attendance.ActionCheckOut, day.Orphans[0].Action)
		assert.Empty(t, day.Sessions)
	}
}

func TestBuildStillCheckedInAndOnBreak(t *testing.T) {
	rows := []Row{
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckIn, Timestamp: at(9, 0)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionBreakStart, Timestamp: at(15, 0)},
	}
	rep := Build("2024-03-15", rows)
	for day := range rep.Users() {
		require.NotNil(t, day.OpenCheckIn)
		assert.True(t, day.OpenCheckIn.Equal(at(9, 0)))
		require.NotNil(t, day.OpenBreak)
		assert.Empty(t, day.Sessions)
	}
}

func TestBuildForceCheckoutClosesSessionAndBreak(t *testing.T) {
	rows := []Row{
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckIn, Timestamp: at(9, 0)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionBreakStart, Timestamp: at(12, 0)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionForceCheckout, Timestamp: at(18, 0)},
	}
	rep := Build("2024-03-15", rows)
	for day := range rep.Users() {
		require.Len(t, day.Sessions, 1)
		assert.True(t, day.Sessions[0].End.Equal(at(18, 0)))
		require.Len(t, day.Breaks, 1)
		assert.True(t, day.Breaks[0].End.Equal(at(18, 0)))
		assert.Nil(t, day.OpenCheckIn)
		assert.Nil(t, day.OpenBreak)
	}
}

func TestBuildDeletedUserIsMarkedNotDropped(t *testing.T) {
	rows := []Row{
		{UserID: 7, Name: nil, Action: attendance.ActionCheckIn, Timestamp: at(9, 0)},
		{UserID: 7, Name: nil, Action: attendance.ActionCheckOut, Timestamp: at(10, 0)},
	}
	rep := Build("2024-03-15", rows)
	require.Equal(t, 1, rep.Len())
	for day := range rep.Users() {
		assert.Equal(t, "user #7 (deleted)", day.Name)
		assert.True(t, day.Deleted)
		assert.Len(t, day.Sessions, 1)
	}
}

func TestBuildUsersSortedByNameAndRestartable(t *testing.T) {
	rows := []Row{
		{UserID: 2, Name: named("Zoe"), Action: attendance.ActionCheckIn, Timestamp: at(8, 0)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckIn, Timestamp: at(9, 0)},
		{UserID: 3, Name: named("Bob"), Action: attendance.ActionCheckIn, Timestamp: at(10, 0)},
	}
	rep := Build("2024-03-15", rows)

	collect := func() []string {
		var names []string
		for day := range rep.Users() {
			names = append(names, day.Name)
		}
		return names
	}
	first := collect()
	assert.Equal(t, []string{"Alice", "Bob", "Zoe"}, first)
	assert.Equal(t, first, collect(), "sequence must be restartable")

	// early break must not poison later iterations
	for range rep.Users() {
		break
	}
	assert.Equal(t, first, collect())
}

type fakeSource struct {
	rows  []Row
	start time.Time
	end   time.Time
}

func (f *fakeSource) EntriesBetween(_ context.Context, start, end time.Time) ([]Row, error) {
	f.start, f.end = start, end
	var out []Row
	for _, r := range f.rows {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestDeriveCutsAtDayBoundary(t *testing.T) {
	src := &fakeSource{rows: []Row{
		// overnight shift: check-in on the 14th, check-out on the 15th
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckIn, Timestamp: time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckOut, Timestamp: time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)},
	}}
	d := NewDeriver(src, clock.Fixed(at(12, 0)))

	rep, err := d.Derive(context.Background(), "2024-03-15")
	require.NoError(t, err)
	for day := range rep.Users() {
		require.Len(t, day.Orphans, 1, "next-day check-out is orphaned, not stitched")
		assert.Empty(t, day.Sessions)
	}

	rep, err = d.Derive(context.Background(), "2024-03-14")
	require.NoError(t, err)
	for day := range rep.Users() {
		require.NotNil(t, day.OpenCheckIn)
		assert.Empty(t, day.Sessions)
	}
}

func TestDeriveDefaultsToToday(t *testing.T) {
	src := &fakeSource{}
	d := NewDeriver(src, clock.Fixed(at(12, 0)))
	rep, err := d.Derive(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", rep.Date)
	assert.True(t, src.start.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, src.end.Equal(time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)))
}

func TestDeriveRejectsBadDate(t *testing.T) {
	d := NewDeriver(&fakeSource{}, clock.Fixed(at(12, 0)))
	_, err := d.Derive(context.Background(), "15-03-2024")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	rows := []Row{
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckIn, Timestamp: at(9, 0)},
		{UserID: 7, Name: nil, Action: attendance.ActionCheckOut, Timestamp: at(10, 30)},
	}
	rep := Build("2024-03-15", rows)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rep))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Action,Timestamp", lines[0])
	assert.Equal(t, "Alice,check_in,2024-03-15 09:00:00", lines[1])
	assert.Equal(t, "user #7 (deleted),check_out,2024-03-15 10:30:00", lines[2])
}

func TestWritePDFProducesDocument(t *testing.T) {
	rows := []Row{
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckIn, Timestamp: at(9, 0)},
		{UserID: 1, Name: named("Alice"), Action: attendance.ActionCheckOut, Timestamp: at(17, 0)},
	}
	rep := Build("2024-03-15", rows)

	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, rep))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
