package booking

import (
	"context"
	"time"

	"slotbook/internal/schedule"
)

type Repository interface {
	// WithinSlotLock runs fn in a transaction that holds an exclusive lock on key.
	// The lock is released on commit or rollback.
	WithinSlotLock(ctx context.Context, key SlotKey, fn func(tx Tx) error) error

	GetByID(ctx context.Context, id int64) (*Booking, error)
	GetByPublicID(ctx context.Context, publicID string) (*Booking, error)
	ListLineItems(ctx context.Context, bookingID int64) ([]LineItem, error)
	ListByProjectDate(ctx context.Context, projectID int64, date time.Time) ([]Booking, error)
	CountActiveByStart(ctx context.Context, locationID int64, date time.Time) (map[schedule.Clock]int, error)
	SetCalendarEventID(ctx context.Context, id int64, eventID *string) error
	ListDueReminders(ctx context.Context, from, to time.Time) ([]Booking, error)
	MarkReminderSent(ctx context.Context, id int64) (bool, error)
}

// Tx is the set of writes that must happen under a slot lock.
type Tx interface {
	CountActiveForSlot(ctx context.Context, key SlotKey, excludeID int64) (int, error)
	CountCreatedBetween(ctx context.Context, projectID int64, from, to time.Time) (int, error)
	Insert(ctx context.Context, b *Booking) error
	InsertLineItems(ctx context.Context, bookingID int64, items []LineItem) error
	IncrementPromoUses(ctx context.Context, promoID int64) (bool, error)
	// UpdateSchedule moves a pending or confirmed booking. It reports false when
	// the booking no longer occupies a slot.
	UpdateSchedule(ctx context.Context, id int64, date time.Time, start, end schedule.Clock) (bool, error)
	UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error)
}
