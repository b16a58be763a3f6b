package booking

import (
	"context"

	"slotbook/internal/schedule"
)

type EventName string

const (
	EventCreated     EventName = "booking.created"
	EventConfirmed   EventName = "booking.confirmed"
	EventCancelled   EventName = "booking.cancelled"
	EventRescheduled EventName = "booking.rescheduled"
)

var statusEvents = map[Status]EventName{
	StatusConfirmed: EventConfirmed,
	StatusCancelled: EventCancelled,
}

// Event is handed to the Notifier after the booking change has been committed.
// Previous is set for reschedules only. Location is nil for bookings without one.
type Event struct {
	Name     EventName
	Booking  *Booking
	Previous *Booking
	Project  *schedule.Project
	Location *schedule.Location
}

// Notifier fans out post-commit side effects. Notify must not block on delivery
// and its failures never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
