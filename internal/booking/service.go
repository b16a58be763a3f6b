package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/catalog"
	"slotbook/internal/db"
	"slotbook/internal/logger"
	"slotbook/internal/metrics"
	"slotbook/internal/promo"
	"slotbook/internal/schedule"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultReferencePrefix = "BK"
	maxReferenceAttempts   = 5
)

type ProjectResolver interface {
	GetProject(ctx context.Context, id int64) (*schedule.Project, error)
	ResolveLocation(ctx context.Context, projectID int64, locationID *int64) (*schedule.Location, error)
}

type SlotSource interface {
	ListActiveTimeSlots(ctx context.Context, locationID int64, dayOfWeek int) ([]schedule.TimeSlot, error)
	IsDateBlocked(ctx context.Context, locationID int64, date time.Time) (bool, error)
}

type Service interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*Booking, error)
	Reschedule(ctx context.Context, id int64, req RescheduleRequest) (*Booking, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Booking, error)
	Cancel(ctx context.Context, publicID string) (*Booking, error)
	GetBooking(ctx context.Context, id int64) (*Booking, error)
	ListBookings(ctx context.Context, projectID int64, date string) ([]Booking, error)
}

type service struct {
	repo     Repository
	projects ProjectResolver
	slots    SlotSource
	catalog  catalog.Repository
	promos   promo.Service
	notifier Notifier
	now      func() time.Time
}

func NewService(
	repo Repository,
	projects ProjectResolver,
	slots SlotSource,
	catalogRepo catalog.Repository,
	promos promo.Service,
	notifier Notifier,
) Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &service{
		repo:     repo,
		projects: projects,
		slots:    slots,
		catalog:  catalogRepo,
		promos:   promos,
		notifier: notifier,
		now:      time.Now,
	}
}

// ReferenceNumber formats {PREFIX}-{YYYYMMDD}-{NNN}.
func ReferenceNumber(prefix string, day time.Time, seq int) string {
	if prefix == "" {
		prefix = defaultReferencePrefix
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, day.Format("20060102"), seq)
}

type slotRequest struct {
	date  time.Time
	start schedule.Clock
	end   schedule.Clock
}

func parseSlot(tz *time.Location, date, start, end string) (slotRequest, error) {
	d, err := schedule.ParseDate(date, tz)
	if err != nil {
		return slotRequest{}, newError(ErrInvalidRequest, "Date must be YYYY-MM-DD")
	}
	s, err := schedule.ParseClock(start)
	if err != nil {
		return slotRequest{}, newError(ErrInvalidRequest, "Start time must be HH:MM")
	}
	e, err := schedule.ParseClock(end)
	if err != nil {
		return slotRequest{}, newError(ErrInvalidRequest, "End time must be HH:MM")
	}
	if e <= s {
		return slotRequest{}, newError(ErrInvalidRequest, "End time must be after start time")
	}
	return slotRequest{date: d, start: s, end: e}, nil
}

func (s *service) loadProject(ctx context.Context, id int64) (*schedule.Project, *time.Location, error) {
	project, err := s.projects.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, schedule.ErrProjectNotFound) {
			return nil, nil, newError(ErrProjectNotFound, "Project not found")
		}
		return nil, nil, err
	}
	tz, err := project.TZ()
	if err != nil {
		return nil, nil, err
	}
	return project, tz, nil
}

// resolveLocation returns nil without error when the project has no active location.
func (s *service) resolveLocation(ctx context.Context, projectID int64, locationID *int64) (*schedule.Location, error) {
	location, err := s.projects.ResolveLocation(ctx, projectID, locationID)
	switch {
	case err == nil:
		return location, nil
	case errors.Is(err, schedule.ErrNoActiveLocation):
		return nil, nil
	case errors.Is(err, schedule.ErrLocationNotFound):
		return nil, newError(ErrLocationNotFound, "Location not found")
	default:
		return nil, err
	}
}

// checkWindow enforces the lead time and the lookahead of the project.
func (s *service) checkWindow(project *schedule.Project, tz *time.Location, slot slotRequest, now time.Time) error {
	earliest := project.EarliestStart(now, tz)
	if slot.start.On(slot.date).Before(earliest) {
		return tooSoon(earliest)
	}
	if slot.date.After(project.LastBookableDay(now, tz)) {
		return newError(ErrAdvanceLimitExceeded, "Bookings are accepted up to %d days in advance", project.AdvanceBookingDays)
	}
	return nil
}

// checkSlotOffered requires the tuple to match an active time slot on an unblocked date.
func (s *service) checkSlotOffered(ctx context.Context, location *schedule.Location, slot slotRequest) error {
	if location == nil {
		return nil
	}

	blocked, err := s.slots.IsDateBlocked(ctx, location.ID, slot.date)
	if err != nil {
		return err
	}
	if blocked {
		return newError(ErrSlotUnavailable, "Date not available")
	}

	offered, err := s.slots.ListActiveTimeSlots(ctx, location.ID, int(slot.date.Weekday()))
	if err != nil {
		return err
	}
	for _, ts := range offered {
		if ts.StartTime == slot.start && ts.EndTime == slot.end {
			return nil
		}
	}
	return newError(ErrSlotUnavailable, "No slot %s-%s on %s", slot.start, slot.end, slot.date.Format(schedule.DateLayout))
}

func (s *service) priceItems(ctx context.Context, projectID int64, reqs []LineItemRequest) ([]LineItem, decimal.Decimal, error) {
	ids := make([]int64, 0, len(reqs))
	for _, item := range reqs {
		if item.Quantity < 1 {
			return nil, decimal.Zero, newError(ErrInvalidRequest, "Quantity must be at least 1")
		}
		ids = append(ids, item.ServiceID)
	}

	services, err := s.catalog.ResolveServices(ctx, projectID, ids)
	if err != nil {
		return nil, decimal.Zero, err
	}

	items := make([]LineItem, 0, len(reqs))
	subtotal := decimal.Zero
	for _, req := range reqs {
		svc, ok := services[req.ServiceID]
		if !ok || !svc.IsActive {
			return nil, decimal.Zero, newError(ErrServiceNotFound, "Service %d not found", req.ServiceID)
		}

		total := svc.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		items = append(items, LineItem{
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Quantity:    req.Quantity,
			UnitPrice:   svc.Price,
			TotalPrice:  total,
		})
		subtotal = subtotal.Add(total)
	}
	return items, subtotal, nil
}

func (s *service) CreateBooking(ctx context.Context, req CreateBookingRequest) (*Booking, error) {
	b, project, location, err := s.createBooking(ctx, req)
	switch {
	case err == nil:
		metrics.RecordBooking("created")
	case errors.Is(err, ErrSlotFull):
		metrics.RecordBooking("slot_full")
	default:
		var bookingErr *Error
		if errors.As(err, &bookingErr) {
			metrics.RecordBooking("rejected")
		} else {
			metrics.RecordBooking("error")
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Info("booking created",
		"booking_id", b.ID,
		"reference", b.ReferenceNumber,
		"project_id", b.ProjectID,
		"date", b.ScheduledDate.Format(schedule.DateLayout),
		"start", b.StartTime.String(),
	)

	s.notifier.Notify(ctx, Event{Name: EventCreated, Booking: b, Project: project, Location: location})
	return b, nil
}

func (s *service) createBooking(ctx context.Context, req CreateBookingRequest) (*Booking, *schedule.Project, *schedule.Location, error) {
	now := s.now()

	project, tz, err := s.loadProject(ctx, req.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}

	slot, err := parseSlot(tz, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, nil, nil, err
	}

	location, err := s.resolveLocation(ctx, project.ID, req.LocationID)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := s.checkWindow(project, tz, slot, now); err != nil {
		return nil, nil, nil, err
	}
	if err := s.checkSlotOffered(ctx, location, slot); err != nil {
		return nil, nil, nil, err
	}

	items, subtotal, err := s.priceItems(ctx, project.ID, req.Items)
	if err != nil {
		return nil, nil, nil, err
	}

	if subtotal.LessThan(project.MinBookingAmount) {
		return nil, nil, nil, belowMinimum(project.MinBookingAmount)
	}

	promoItems := make([]promo.Item, len(items))
	for i, item := range items {
		promoItems[i] = promo.Item{ServiceID: item.ServiceID, Total: item.TotalPrice}
	}
	applied := s.promos.Apply(ctx, project.ID, req.PromoCode, promoItems, subtotal, now)

	b := &Booking{
		PublicID:      uuid.NewString(),
		ProjectID:     project.ID,
		ScheduledDate: slot.date,
		StartTime:     slot.start,
		EndTime:       slot.end,
		Status:        StatusPending,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		Subtotal:      subtotal,
	}
	if location != nil {
		b.LocationID = &location.ID
	}

	capacity := location.Capacity()
	key := b.slotKey()
	day := schedule.StartOfDay(now.In(tz))

	for attempt := 0; ; attempt++ {
		err = s.repo.WithinSlotLock(ctx, key, func(tx Tx) error {
			taken, err := tx.CountActiveForSlot(ctx, key, 0)
			if err != nil {
				return err
			}
			if taken >= capacity {
				return newError(ErrSlotFull, "This time is fully booked, please pick a different time")
			}

			b.DiscountAmount = decimal.Zero
			b.PromoCodeID = nil
			if applied != nil {
				ok, err := tx.IncrementPromoUses(ctx, applied.Promo.ID)
				if err != nil {
					return err
				}
				if ok {
					b.DiscountAmount = applied.Discount
					b.PromoCodeID = &applied.Promo.ID
				}
			}
			b.Total = decimal.Max(subtotal.Sub(b.DiscountAmount), decimal.Zero)

			created, err := tx.CountCreatedBetween(ctx, project.ID, day, day.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			// Later attempts skip past numbers already taken by concurrent bookings.
			b.ReferenceNumber = ReferenceNumber(project.ReferencePrefix, day, created+1+attempt)

			if err := tx.Insert(ctx, b); err != nil {
				return err
			}
			return tx.InsertLineItems(ctx, b.ID, items)
		})

		if err == nil {
			break
		}
		if db.IsUniqueViolation(err) && attempt+1 < maxReferenceAttempts {
			logger.Warn("reference number taken, retrying", "reference", b.ReferenceNumber, "attempt", attempt+1)
			continue
		}
		return nil, nil, nil, err
	}

	b.LineItems = items
	return b, project, location, nil
}

func (s *service) getBooking(ctx context.Context, id int64) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(ErrNotFound, "Booking not found")
		}
		return nil, err
	}
	return b, nil
}

// bookingLocation loads the booking's own location; bookings without one have capacity 1.
func (s *service) bookingLocation(ctx context.Context, b *Booking) (*schedule.Location, error) {
	if b.LocationID == nil {
		return nil, nil
	}
	return s.resolveLocation(ctx, b.ProjectID, b.LocationID)
}

func (s *service) Reschedule(ctx context.Context, id int64, req RescheduleRequest) (*Booking, error) {
	now := s.now()

	b, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.Occupies() {
		return nil, newError(ErrInvalidTransition, "Cannot reschedule a %s booking", b.Status)
	}

	project, tz, err := s.loadProject(ctx, b.ProjectID)
	if err != nil {
		return nil, err
	}

	slot, err := parseSlot(tz, req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	location, err := s.bookingLocation(ctx, b)
	if err != nil {
		return nil, err
	}

	if err := s.checkWindow(project, tz, slot, now); err != nil {
		return nil, err
	}
	if err := s.checkSlotOffered(ctx, location, slot); err != nil {
		return nil, err
	}

	previous := *b
	key := SlotKey{ProjectID: b.ProjectID, LocationID: b.LocationID, Date: slot.date, Start: slot.start}
	capacity := location.Capacity()

	err = s.repo.WithinSlotLock(ctx, key, func(tx Tx) error {
		taken, err := tx.CountActiveForSlot(ctx, key, b.ID)
		if err != nil {
			return err
		}
		if taken >= capacity {
			return newError(ErrSlotFull, "This time is fully booked, please pick a different time")
		}
		moved, err := tx.UpdateSchedule(ctx, b.ID, slot.date, slot.start, slot.end)
		if err != nil {
			return err
		}
		if !moved {
			return newError(ErrInvalidTransition, "Booking was modified concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.ScheduledDate = slot.date
	b.StartTime = slot.start
	b.EndTime = slot.end
	b.UpdatedAt = now

	logger.Info("booking rescheduled",
		"booking_id", b.ID,
		"from", previous.ScheduledDate.Format(schedule.DateLayout)+" "+previous.StartTime.String(),
		"to", req.Date+" "+slot.start.String(),
	)

	s.notifier.Notify(ctx, Event{Name: EventRescheduled, Booking: b, Previous: &previous, Project: project, Location: location})
	return b, nil
}

func (s *service) UpdateStatus(ctx context.Context, id int64, next Status) (*Booking, error) {
	b, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, b, next)
}

func (s *service) transition(ctx context.Context, b *Booking, next Status) (*Booking, error) {
	from := b.Status
	if !from.CanTransitionTo(next) {
		return nil, newError(ErrInvalidTransition, "Cannot change a %s booking to %s", from, next)
	}

	project, _, err := s.loadProject(ctx, b.ProjectID)
	if err != nil {
		return nil, err
	}

	location, err := s.bookingLocation(ctx, b)
	if err != nil {
		// Cancelling or completing does not need a live location.
		if next.Occupies() || !errors.Is(err, ErrLocationNotFound) {
			return nil, err
		}
		location = nil
	}

	reactivating := !from.Occupies() && next.Occupies()
	key := b.slotKey()

	err = s.repo.WithinSlotLock(ctx, key, func(tx Tx) error {
		if reactivating {
			taken, err := tx.CountActiveForSlot(ctx, key, b.ID)
			if err != nil {
				return err
			}
			if taken >= location.Capacity() {
				return newError(ErrSlotFull, "This time is fully booked, please pick a different time")
			}
		}

		ok, err := tx.UpdateStatus(ctx, b.ID, from, next)
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrInvalidTransition, "Booking was modified concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.Status = next
	b.UpdatedAt = s.now()
	metrics.RecordStatusChange(string(from), string(next))
	logger.Info("booking status changed", "booking_id", b.ID, "from", from, "to", next)

	if name, ok := statusEvents[next]; ok {
		s.notifier.Notify(ctx, Event{Name: name, Booking: b, Project: project, Location: location})
	}
	return b, nil
}

func (s *service) Cancel(ctx context.Context, publicID string) (*Booking, error) {
	if _, err := uuid.Parse(publicID); err != nil {
		return nil, newError(ErrNotFound, "Booking not found")
	}

	b, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(ErrNotFound, "Booking not found")
		}
		return nil, err
	}
	return s.transition(ctx, b, StatusCancelled)
}

func (s *service) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	b, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListLineItems(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.LineItems = items
	return b, nil
}

func (s *service) ListBookings(ctx context.Context, projectID int64, date string) ([]Booking, error) {
	_, tz, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	d, err := schedule.ParseDate(date, tz)
	if err != nil {
		return nil, newError(ErrInvalidRequest, "Date must be YYYY-MM-DD")
	}

	bookings, err := s.repo.ListByProjectDate(ctx, projectID, d)
	if err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	return bookings, nil
}
