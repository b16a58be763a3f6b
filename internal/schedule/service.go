package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slotbook/internal/db"
)

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrLocationNotFound = errors.New("location not found")
	ErrNoActiveLocation = errors.New("no active location")
	ErrTimeSlotInvalid  = errors.New("invalid time slot")
	ErrDateInvalid      = errors.New("invalid date")
	ErrTimeSlotExists   = errors.New("time slot already exists")
	ErrDateBlocked      = errors.New("date already blocked")
)

type Service interface {
	GetProject(ctx context.Context, id int64) (*Project, error)
	ResolveLocation(ctx context.Context, projectID int64, locationID *int64) (*Location, error)
	CreateTimeSlot(ctx context.Context, locationID int64, req CreateTimeSlotRequest) (*TimeSlot, error)
	CreateBlockedDate(ctx context.Context, locationID int64, req CreateBlockedDateRequest) (*BlockedDate, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetProject(ctx context.Context, id int64) (*Project, error) {
	project, err := s.repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

// ResolveLocation returns the explicitly requested location, which must be an active
// location of the project, or the project's first active location when locationID is nil.
func (s *service) ResolveLocation(ctx context.Context, projectID int64, locationID *int64) (*Location, error) {
	if locationID != nil {
		location, err := s.repo.GetLocation(ctx, *locationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrLocationNotFound
			}
			return nil, err
		}
		if location.ProjectID != projectID || !location.IsActive {
			return nil, ErrLocationNotFound
		}
		return location, nil
	}

	location, err := s.repo.FirstActiveLocation(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveLocation
		}
		return nil, err
	}
	return location, nil
}

func (s *service) CreateTimeSlot(ctx context.Context, locationID int64, req CreateTimeSlotRequest) (*TimeSlot, error) {
	exists, err := s.repo.LocationExists(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrLocationNotFound
	}

	if req.DayOfWeek == nil || *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
		return nil, ErrTimeSlotInvalid
	}

	start, err := ParseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeSlotInvalid, err)
	}
	end, err := ParseClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeSlotInvalid, err)
	}
	if end <= start {
		return nil, ErrTimeSlotInvalid
	}

	// One slot per (location, day, start): occurrences share a capacity key.
	slot, err := s.repo.CreateTimeSlot(ctx, locationID, *req.DayOfWeek, start, end)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrTimeSlotExists
		}
		return nil, err
	}
	return slot, nil
}

func (s *service) CreateBlockedDate(ctx context.Context, locationID int64, req CreateBlockedDateRequest) (*BlockedDate, error) {
	location, err := s.repo.GetLocation(ctx, locationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}

	// Dates carry no zone in storage; the project zone only matters for parsing.
	project, err := s.GetProject(ctx, location.ProjectID)
	if err != nil {
		return nil, err
	}
	tz, err := project.TZ()
	if err != nil {
		return nil, err
	}

	date, err := ParseDate(req.Date, tz)
	if err != nil {
		return nil, ErrDateInvalid
	}

	blocked, err := s.repo.CreateBlockedDate(ctx, locationID, date, req.Reason)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDateBlocked
		}
		return nil, err
	}
	return blocked, nil
}
