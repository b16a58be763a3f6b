package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"slotbook/internal/schedule"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusCompleted},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCancelled: {StatusPending, StatusConfirmed},
}

// Occupies reports whether a booking in this status consumes slot capacity.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID              int64           `db:"id" json:"id"`
	PublicID        string          `db:"public_id" json:"public_id"`
	ProjectID       int64           `db:"project_id" json:"project_id"`
	LocationID      *int64          `db:"location_id" json:"location_id"`
	ReferenceNumber string          `db:"reference_number" json:"reference_number"`
	ScheduledDate   time.Time       `db:"scheduled_date" json:"-"`
	StartTime       schedule.Clock  `db:"start_time" json:"start_time"`
	EndTime         schedule.Clock  `db:"end_time" json:"end_time"`
	Status          Status          `db:"status" json:"status"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerEmail   string          `db:"customer_email" json:"customer_email"`
	CustomerPhone   *string         `db:"customer_phone" json:"customer_phone,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Total           decimal.Decimal `db:"total" json:"total"`
	PromoCodeID     *int64          `db:"promo_code_id" json:"promo_code_id,omitempty"`
	CalendarEventID *string         `db:"calendar_event_id" json:"-"`
	ReminderSentAt  *time.Time      `db:"reminder_sent_at" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	LineItems       []LineItem      `db:"-" json:"line_items,omitempty"`
}

func (b Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	return json.Marshal(struct {
		alias
		ScheduledDate string `json:"scheduled_date"`
	}{
		alias:         alias(b),
		ScheduledDate: b.ScheduledDate.Format(schedule.DateLayout),
	})
}

// StartsAt places the booking's wall-clock start in tz.
func (b *Booking) StartsAt(tz *time.Location) time.Time {
	return b.StartTime.On(onDay(b.ScheduledDate, tz))
}

func (b *Booking) EndsAt(tz *time.Location) time.Time {
	return b.EndTime.On(onDay(b.ScheduledDate, tz))
}

func (b *Booking) slotKey() SlotKey {
	return SlotKey{ProjectID: b.ProjectID, LocationID: b.LocationID, Date: b.ScheduledDate, Start: b.StartTime}
}

// onDay keeps the calendar date of d and moves it to tz.
func onDay(d time.Time, tz *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, tz)
}

// LineItem is a price snapshot taken when the booking was made.
type LineItem struct {
	ID          int64           `db:"id" json:"id"`
	BookingID   int64           `db:"booking_id" json:"-"`
	ServiceID   int64           `db:"service_id" json:"service_id"`
	ServiceName string          `db:"service_name" json:"service_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"total_price"`
}

type LineItemRequest struct {
	ServiceID int64 `json:"service_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1,max=100"`
}

type CreateBookingRequest struct {
	ProjectID     int64             `json:"-"`
	LocationID    *int64            `json:"location_id"`
	Date          string            `json:"date" binding:"required"`
	StartTime     string            `json:"start_time" binding:"required"`
	EndTime       string            `json:"end_time" binding:"required"`
	CustomerName  string            `json:"customer_name" binding:"required,max=255"`
	CustomerEmail string            `json:"customer_email" binding:"required,email"`
	CustomerPhone *string           `json:"customer_phone" binding:"omitempty,max=32"`
	Notes         *string           `json:"notes" binding:"omitempty,max=2000"`
	Items         []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	PromoCode     string            `json:"promo_code"`
}

type RescheduleRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=pending confirmed completed cancelled"`
}

// SlotKey identifies one occurrence of a slot. Bookings without a location
// share a per-project key.
type SlotKey struct {
	ProjectID  int64
	LocationID *int64
	Date       time.Time
	Start      schedule.Clock
}

func (k SlotKey) String() string {
	var loc int64
	if k.LocationID != nil {
		loc = *k.LocationID
	}
	return fmt.Sprintf("%d:%d:%s:%s", k.ProjectID, loc, k.Date.Format(schedule.DateLayout), k.Start)
}
