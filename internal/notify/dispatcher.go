package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"slotbook/internal/booking"
	"slotbook/internal/calendar"
	"slotbook/internal/email"
	"slotbook/internal/logger"
	"slotbook/internal/metrics"
	"slotbook/internal/schedule"
)

type WebhookQueue interface {
	Enqueue(ctx context.Context, url, secret, event string, data interface{}) (string, error)
}

type Mailer interface {
	SendBookingReceived(ctx context.Context, to, name string, d email.BookingDetails) error
	SendBookingConfirmation(ctx context.Context, to, name string, d email.BookingDetails) error
	SendCancellation(ctx context.Context, to, name string, d email.BookingDetails) error
	SendRescheduled(ctx context.Context, to, name string, d email.BookingDetails, previous time.Time) error
	SendOwnerAlert(ctx context.Context, to, event, customer string, d email.BookingDetails) error
}

type SMSSender interface {
	Enabled() bool
	Send(ctx context.Context, phone, body string) (string, error)
}

type CalendarSync interface {
	CreateEvent(ctx context.Context, calendarRef string, event calendar.Event) (string, error)
	DeleteEvent(ctx context.Context, calendarRef, eventID string) (bool, error)
}

type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, locationID int64, date time.Time)
}

type EventStore interface {
	SetCalendarEventID(ctx context.Context, id int64, eventID *string) error
}

// Deps lists the channels a Dispatcher fans out to. Nil channels are skipped.
type Deps struct {
	Webhooks WebhookQueue
	Mail     Mailer
	SMS      SMSSender
	Calendar CalendarSync
	Cache    CacheInvalidator
	Store    EventStore
}

// Dispatcher implements booking.Notifier. Each event is delivered on its own
// goroutine with a context detached from the request.
type Dispatcher struct {
	deps Deps
	wg   sync.WaitGroup
}

func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{deps: deps}
}

func (d *Dispatcher) Notify(ctx context.Context, ev booking.Event) {
	ev = snapshot(ev)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Deliver(context.WithoutCancel(ctx), ev)
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func snapshot(ev booking.Event) booking.Event {
	if ev.Booking != nil {
		b := *ev.Booking
		b.LineItems = append([]booking.LineItem(nil), ev.Booking.LineItems...)
		ev.Booking = &b
	}
	if ev.Previous != nil {
		p := *ev.Previous
		ev.Previous = &p
	}
	return ev
}

// Deliver runs every channel for ev. Failures are logged and counted.
func (d *Dispatcher) Deliver(ctx context.Context, ev booking.Event) {
	if ev.Booking == nil || ev.Project == nil {
		return
	}

	tz, err := ev.Project.TZ()
	if err != nil {
		tz = time.UTC
	}

	d.syncCalendar(ctx, ev, tz)
	d.sendWebhook(ctx, ev)
	d.sendEmails(ctx, ev, tz)
	d.sendSMS(ctx, ev, tz)
}

func record(channel string, err error, ev booking.Event) {
	if err != nil {
		metrics.RecordNotification(channel, "error")
		logger.Warn("notification failed",
			"channel", channel,
			"event", string(ev.Name),
			"booking_id", ev.Booking.ID,
			"error", err,
		)
		return
	}
	metrics.RecordNotification(channel, "ok")
}

type webhookPayload struct {
	Booking  *booking.Booking `json:"booking"`
	Previous *previousSlot    `json:"previous,omitempty"`
}

type previousSlot struct {
	Date      string `json:"scheduled_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (d *Dispatcher) sendWebhook(ctx context.Context, ev booking.Event) {
	if d.deps.Webhooks == nil || ev.Project.WebhookURL == nil || *ev.Project.WebhookURL == "" {
		return
	}

	payload := webhookPayload{Booking: ev.Booking}
	if ev.Previous != nil {
		payload.Previous = &previousSlot{
			Date:      ev.Previous.ScheduledDate.Format(schedule.DateLayout),
			StartTime: ev.Previous.StartTime.String(),
			EndTime:   ev.Previous.EndTime.String(),
		}
	}

	var secret string
	if ev.Project.WebhookSecret != nil {
		secret = *ev.Project.WebhookSecret
	}

	_, err := d.deps.Webhooks.Enqueue(ctx, *ev.Project.WebhookURL, secret, string(ev.Name), payload)
	record("webhook", err, ev)
}

func (d *Dispatcher) syncCalendar(ctx context.Context, ev booking.Event, tz *time.Location) {
	if d.deps.Calendar == nil || ev.Location == nil || ev.Location.CalendarRef == nil {
		return
	}
	ref := *ev.Location.CalendarRef
	b := ev.Booking

	switch ev.Name {
	case booking.EventCreated, booking.EventConfirmed:
		if b.CalendarEventID != nil {
			return
		}
		d.createEvent(ctx, ev, ref, tz)

	case booking.EventRescheduled:
		if b.CalendarEventID != nil {
			d.deleteEvent(ctx, ev, ref)
		}
		if ev.Previous != nil {
			d.invalidate(ctx, ev.Location.ID, ev.Previous.ScheduledDate)
		}
		d.createEvent(ctx, ev, ref, tz)

	case booking.EventCancelled:
		if b.CalendarEventID == nil {
			return
		}
		d.deleteEvent(ctx, ev, ref)
		d.invalidate(ctx, ev.Location.ID, b.ScheduledDate)
	}
}

func (d *Dispatcher) createEvent(ctx context.Context, ev booking.Event, ref string, tz *time.Location) {
	b := ev.Booking
	id, err := d.deps.Calendar.CreateEvent(ctx, ref, calendar.Event{
		Summary:       fmt.Sprintf("%s - %s", b.ReferenceNumber, b.CustomerName),
		Description:   description(b),
		Start:         b.StartsAt(tz),
		End:           b.EndsAt(tz),
		AttendeeEmail: b.CustomerEmail,
	})
	record("calendar", err, ev)
	if err != nil {
		return
	}

	b.CalendarEventID = &id
	if d.deps.Store != nil {
		record("calendar", d.deps.Store.SetCalendarEventID(ctx, b.ID, &id), ev)
	}
	d.invalidate(ctx, ev.Location.ID, b.ScheduledDate)
}

func (d *Dispatcher) deleteEvent(ctx context.Context, ev booking.Event, ref string) {
	b := ev.Booking
	if _, err := d.deps.Calendar.DeleteEvent(ctx, ref, *b.CalendarEventID); err != nil {
		record("calendar", err, ev)
		return
	}

	b.CalendarEventID = nil
	if d.deps.Store != nil {
		record("calendar", d.deps.Store.SetCalendarEventID(ctx, b.ID, nil), ev)
	}
}

func (d *Dispatcher) invalidate(ctx context.Context, locationID int64, date time.Time) {
	if d.deps.Cache != nil {
		d.deps.Cache.InvalidateCache(ctx, locationID, date)
	}
}

func description(b *booking.Booking) string {
	s := fmt.Sprintf("Customer: %s <%s>\nTotal: %s", b.CustomerName, b.CustomerEmail, b.Total.StringFixed(2))
	for _, item := range b.LineItems {
		s += fmt.Sprintf("\n%dx %s", item.Quantity, item.ServiceName)
	}
	if b.Notes != nil && *b.Notes != "" {
		s += "\n\n" + *b.Notes
	}
	return s
}

func details(ev booking.Event, tz *time.Location) email.BookingDetails {
	b := ev.Booking
	d := email.BookingDetails{
		Reference:   b.ReferenceNumber,
		ProjectName: ev.Project.Name,
		When:        b.StartsAt(tz),
		Until:       b.EndsAt(tz),
		Total:       b.Total.StringFixed(2),
		PublicID:    b.PublicID,
	}
	if ev.Location != nil {
		d.LocationName = ev.Location.Name
	}
	return d
}

var ownerAlerts = map[booking.EventName]string{
	booking.EventCreated:     "New booking",
	booking.EventCancelled:   "Booking cancelled",
	booking.EventRescheduled: "Booking rescheduled",
}

func (d *Dispatcher) sendEmails(ctx context.Context, ev booking.Event, tz *time.Location) {
	if d.deps.Mail == nil {
		return
	}
	b := ev.Booking
	det := details(ev, tz)

	var err error
	switch ev.Name {
	case booking.EventCreated:
		err = d.deps.Mail.SendBookingReceived(ctx, b.CustomerEmail, b.CustomerName, det)
	case booking.EventConfirmed:
		err = d.deps.Mail.SendBookingConfirmation(ctx, b.CustomerEmail, b.CustomerName, det)
	case booking.EventCancelled:
		err = d.deps.Mail.SendCancellation(ctx, b.CustomerEmail, b.CustomerName, det)
	case booking.EventRescheduled:
		previous := det.When
		if ev.Previous != nil {
			previous = ev.Previous.StartsAt(tz)
		}
		err = d.deps.Mail.SendRescheduled(ctx, b.CustomerEmail, b.CustomerName, det, previous)
	default:
		return
	}
	record("email", err, ev)

	alert, ok := ownerAlerts[ev.Name]
	if !ok || ev.Project.NotificationEmail == nil || *ev.Project.NotificationEmail == "" {
		return
	}
	record("email", d.deps.Mail.SendOwnerAlert(ctx, *ev.Project.NotificationEmail, alert, b.CustomerName, det), ev)
}

func smsText(ev booking.Event, tz *time.Location) string {
	b := ev.Booking
	when := b.StartsAt(tz).Format("Jan 2 15:04")

	switch ev.Name {
	case booking.EventCreated:
		return fmt.Sprintf("%s: booking %s received for %s.", ev.Project.Name, b.ReferenceNumber, when)
	case booking.EventConfirmed:
		return fmt.Sprintf("%s: booking %s confirmed for %s.", ev.Project.Name, b.ReferenceNumber, when)
	case booking.EventCancelled:
		return fmt.Sprintf("%s: booking %s has been cancelled.", ev.Project.Name, b.ReferenceNumber)
	case booking.EventRescheduled:
		return fmt.Sprintf("%s: booking %s moved to %s.", ev.Project.Name, b.ReferenceNumber, when)
	}
	return ""
}

func (d *Dispatcher) sendSMS(ctx context.Context, ev booking.Event, tz *time.Location) {
	if d.deps.SMS == nil || !d.deps.SMS.Enabled() {
		return
	}
	b := ev.Booking
	if b.CustomerPhone == nil || *b.CustomerPhone == "" {
		return
	}

	text := smsText(ev, tz)
	if text == "" {
		return
	}
	_, err := d.deps.SMS.Send(ctx, *b.CustomerPhone, text)
	record("sms", err, ev)
}
