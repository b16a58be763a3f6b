package schedule

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidClock = errors.New("invalid wall-clock time")

// Clock is a local wall-clock time of day, stored as minutes since midnight.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock accepts "15:04" and "15:04:05". Seconds are dropped.
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
}

// ClockOf returns the wall clock of t in t's own location.
func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute())
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On places the clock on the calendar day of date, in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, date.Location())
}

func (c Clock) Value() (driver.Value, error) {
	return c.String() + ":00", nil
}

func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*c = ClockOf(v)
		return nil
	case []byte:
		return c.parseInto(string(v))
	case string:
		return c.parseInto(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidClock, src)
	}
}

func (c *Clock) parseInto(s string) error {
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return c.parseInto(s)
}

// Interval is a half-open wall-clock range [Start, End).
type Interval struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

func (i Interval) Overlaps(start, end Clock) bool {
	return start < i.End && end > i.Start
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date, ignoring locations.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
