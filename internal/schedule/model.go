package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Project carries the scheduling rules every temporal computation is threaded through.
type Project struct {
	ID                 int64           `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	Timezone           string          `db:"timezone" json:"timezone"`
	AdvanceBookingDays int             `db:"advance_booking_days" json:"advance_booking_days"`
	MinAdvanceHours    int             `db:"min_advance_hours" json:"min_advance_hours"`
	MinBookingAmount   decimal.Decimal `db:"min_booking_amount" json:"min_booking_amount"`
	ReferencePrefix    string          `db:"reference_prefix" json:"reference_prefix"`
	WebhookURL         *string         `db:"webhook_url" json:"-"`
	WebhookSecret      *string         `db:"webhook_secret" json:"-"`
	NotificationEmail  *string         `db:"notification_email" json:"-"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

func (p *Project) TZ() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("project %d timezone %q: %w", p.ID, p.Timezone, err)
	}
	return loc, nil
}

// MinAdvance is the minimum lead time between now and a slot start.
func (p *Project) MinAdvance() time.Duration {
	return time.Duration(p.MinAdvanceHours) * time.Hour
}

// LastBookableDay is the last calendar day, in loc, that accepts bookings.
func (p *Project) LastBookableDay(now time.Time, loc *time.Location) time.Time {
	return StartOfDay(now.In(loc)).AddDate(0, 0, p.AdvanceBookingDays)
}

// EarliestStart is the earliest instant a booking may start at.
func (p *Project) EarliestStart(now time.Time, loc *time.Location) time.Time {
	return now.In(loc).Add(p.MinAdvance())
}

type Location struct {
	ID                    int64     `db:"id" json:"id"`
	ProjectID             int64     `db:"project_id" json:"project_id"`
	Name                  string    `db:"name" json:"name"`
	MaxConcurrentBookings int       `db:"max_concurrent_bookings" json:"max_concurrent_bookings"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	CalendarRef           *string   `db:"calendar_ref" json:"-"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

func (l *Location) Capacity() int {
	if l == nil || l.MaxConcurrentBookings < 1 {
		return 1
	}
	return l.MaxConcurrentBookings
}

// TimeSlot is a recurring weekly window a location offers.
type TimeSlot struct {
	ID         int64     `db:"id" json:"id"`
	LocationID int64     `db:"location_id" json:"location_id"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"`
	StartTime  Clock     `db:"start_time" json:"start_time"`
	EndTime    Clock     `db:"end_time" json:"end_time"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type BlockedDate struct {
	ID         int64     `db:"id" json:"id"`
	LocationID int64     `db:"location_id" json:"location_id"`
	Date       time.Time `db:"date" json:"date"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type CreateTimeSlotRequest struct {
	DayOfWeek *int   `json:"day_of_week" binding:"required,min=0,max=6"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

type CreateBlockedDateRequest struct {
	Date   string  `json:"date" binding:"required"`
	Reason *string `json:"reason"`
}
