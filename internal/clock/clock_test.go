package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownZone(t *testing.T) {
	_, err := New("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestNewDefaultsToUTC(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, c.Location())
}

func TestFixedToday(t *testing.T) {
	c := Fixed(time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, "2024-03-15", c.Today())
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	c := Fixed(time.Date(2024, 3, 15, 12, 0, 0, 0, loc))

	start, end, err := c.DayBounds("2024-03-15")
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, loc)))
	assert.True(t, end.Equal(time.Date(2024, 3, 16, 0, 0, 0, 0, loc)))

	// midnight in the canonical zone, not UTC
	assert.Equal(t, "2024-03-15", start.Format("2006-01-02"))

	_, _, err = c.DayBounds("not-a-date")
	assert.Error(t, err)
}

func TestFakeAdvance(t *testing.T) {
	fake := NewFake(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	c := fake.Clock()
	first := c.Now()
	fake.Advance(90 * time.Minute)
	assert.Equal(t, 90*time.Minute, c.Now().Sub(first))
}
