package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/metrics"
	"slotbook/internal/schedule"
)

var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

type ProjectResolver interface {
	GetProject(ctx context.Context, id int64) (*schedule.Project, error)
	ResolveLocation(ctx context.Context, projectID int64, locationID *int64) (*schedule.Location, error)
}

type SlotSource interface {
	ListActiveTimeSlots(ctx context.Context, locationID int64, dayOfWeek int) ([]schedule.TimeSlot, error)
	IsDateBlocked(ctx context.Context, locationID int64, date time.Time) (bool, error)
}

// OccupancyCounter counts pending and confirmed bookings per start time.
type OccupancyCounter interface {
	CountActiveByStart(ctx context.Context, locationID int64, date time.Time) (map[schedule.Clock]int, error)
}

type BusyProvider interface {
	GetBusyIntervals(ctx context.Context, location *schedule.Location, date time.Time, tz *time.Location) []schedule.Interval
}

type Service interface {
	ComputeAvailability(ctx context.Context, projectID int64, locationID *int64, date string, now time.Time) (*Result, error)
}

type service struct {
	projects  ProjectResolver
	slots     SlotSource
	occupancy OccupancyCounter
	busy      BusyProvider
}

func NewService(projects ProjectResolver, slots SlotSource, occupancy OccupancyCounter, busy BusyProvider) Service {
	return &service{
		projects:  projects,
		slots:     slots,
		occupancy: occupancy,
		busy:      busy,
	}
}

// ComputeAvailability is a lock-free read. Its counts may be stale by the time a
// booking is attempted.
func (s *service) ComputeAvailability(ctx context.Context, projectID int64, locationID *int64, dateStr string, now time.Time) (*Result, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	tz, err := project.TZ()
	if err != nil {
		return nil, err
	}

	date, err := schedule.ParseDate(dateStr, tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, dateStr)
	}

	if date.After(project.LastBookableDay(now, tz)) {
		metrics.RecordAvailability("too_far")
		return empty(dateStr, MessageTooFarAhead), nil
	}

	earliest := project.EarliestStart(now, tz)
	if date.Before(schedule.StartOfDay(earliest)) {
		metrics.RecordAvailability("too_soon")
		return empty(dateStr, MessageTooSoon), nil
	}

	location, err := s.projects.ResolveLocation(ctx, projectID, locationID)
	if err != nil {
		if errors.Is(err, schedule.ErrNoActiveLocation) {
			metrics.RecordAvailability("no_location")
			return empty(dateStr, MessageNoActiveLocation), nil
		}
		return nil, err
	}

	blocked, err := s.slots.IsDateBlocked(ctx, location.ID, date)
	if err != nil {
		return nil, err
	}
	if blocked {
		metrics.RecordAvailability("blocked")
		res := empty(dateStr, MessageDateUnavailable)
		res.LocationID = &location.ID
		return res, nil
	}

	baseSlots, err := s.slots.ListActiveTimeSlots(ctx, location.ID, int(date.Weekday()))
	if err != nil {
		return nil, err
	}

	occupancy, err := s.occupancy.CountActiveByStart(ctx, location.ID, date)
	if err != nil {
		return nil, err
	}

	capacity := location.Capacity()

	// Locations with capacity > 1 skip the external calendar: every booking
	// mirrors an event there and would block its own remaining spots.
	var busy []schedule.Interval
	if capacity <= 1 && s.busy != nil {
		busy = s.busy.GetBusyIntervals(ctx, location, date, tz)
	}

	boundaryDay := schedule.SameDay(date, earliest)

	res := &Result{Date: dateStr, LocationID: &location.ID, Slots: make([]Slot, 0, len(baseSlots))}
	offered := make(map[schedule.Clock]bool, len(baseSlots))
	for _, slot := range baseSlots {
		// Occupancy is keyed by start time, so a start is offered at most once.
		if offered[slot.StartTime] {
			continue
		}
		offered[slot.StartTime] = true

		if boundaryDay && slot.StartTime.On(date).Before(earliest) {
			continue
		}

		taken := occupancy[slot.StartTime]
		if taken >= capacity {
			continue
		}

		if overlapsAny(busy, slot.StartTime, slot.EndTime) {
			continue
		}

		out := Slot{Start: slot.StartTime, End: slot.EndTime}
		if capacity > 1 {
			left := capacity - taken
			out.SpotsLeft = &left
		}
		res.Slots = append(res.Slots, out)
	}

	metrics.RecordAvailability("ok")
	return res, nil
}

func overlapsAny(busy []schedule.Interval, start, end schedule.Clock) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
