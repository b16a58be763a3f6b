package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, NewClock(9, 30), c)

	c, err = ParseClock("17:05:59")
	require.NoError(t, err)
	assert.Equal(t, "17:05", c.String())

	_, err = ParseClock("25:00")
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestClock_Scan(t *testing.T) {
	var c Clock

	require.NoError(t, c.Scan([]byte("08:15:00")))
	assert.Equal(t, NewClock(8, 15), c)

	require.NoError(t, c.Scan("10:00"))
	assert.Equal(t, NewClock(10, 0), c)

	require.NoError(t, c.Scan(time.Date(0, 1, 1, 14, 45, 0, 0, time.UTC)))
	assert.Equal(t, NewClock(14, 45), c)

	assert.Error(t, c.Scan(42))
}

func TestClock_Value(t *testing.T) {
	v, err := NewClock(9, 0).Value()
	require.NoError(t, err)
	assert.Equal(t, "09:00:00", v)
}

func TestClock_JSON(t *testing.T) {
	data, err := json.Marshal(NewClock(9, 5))
	require.NoError(t, err)
	assert.Equal(t, `"09:05"`, string(data))

	var c Clock
	require.NoError(t, json.Unmarshal([]byte(`"18:30"`), &c))
	assert.Equal(t, NewClock(18, 30), c)
}

func TestClock_On(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	date := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)
	at := NewClock(9, 0).On(date)

	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, loc, at.Location())
	assert.True(t, SameDay(date, at))
}

func TestInterval_Overlaps(t *testing.T) {
	slotStart, slotEnd := NewClock(9, 0), NewClock(10, 0)

	tests := []struct {
		name string
		busy Interval
		want bool
	}{
		{"partial inside", Interval{NewClock(9, 30), NewClock(9, 45)}, true},
		{"covers slot", Interval{NewClock(8, 0), NewClock(11, 0)}, true},
		{"overlaps start", Interval{NewClock(8, 30), NewClock(9, 1)}, true},
		{"adjacent before", Interval{NewClock(8, 0), NewClock(9, 0)}, false},
		{"adjacent after", Interval{NewClock(10, 0), NewClock(11, 0)}, false},
		{"disjoint", Interval{NewClock(12, 0), NewClock(13, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.busy.Overlaps(slotStart, slotEnd))
		})
	}
}

func TestProject_Windows(t *testing.T) {
	loc := time.UTC
	p := &Project{AdvanceBookingDays: 30, MinAdvanceHours: 24}
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, loc)

	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, loc), p.LastBookableDay(now, loc))
	assert.Equal(t, time.Date(2026, 1, 2, 10, 0, 0, 0, loc), p.EarliestStart(now, loc))
}

func TestProject_TZ(t *testing.T) {
	p := &Project{ID: 1, Timezone: "Europe/Berlin"}
	loc, err := p.TZ()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	p.Timezone = "Mars/Olympus"
	_, err = p.TZ()
	assert.Error(t, err)
}

func TestLocation_Capacity(t *testing.T) {
	var nilLoc *Location
	assert.Equal(t, 1, nilLoc.Capacity())
	assert.Equal(t, 1, (&Location{MaxConcurrentBookings: 0}).Capacity())
	assert.Equal(t, 3, (&Location{MaxConcurrentBookings: 3}).Capacity())
}
