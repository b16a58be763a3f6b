package schedule

import (
	"context"
	"time"
)

type Repository interface {
	GetProject(ctx context.Context, id int64) (*Project, error)
	GetLocation(ctx context.Context, id int64) (*Location, error)
	LocationExists(ctx context.Context, id int64) (bool, error)
	FirstActiveLocation(ctx context.Context, projectID int64) (*Location, error)
	ListActiveTimeSlots(ctx context.Context, locationID int64, dayOfWeek int) ([]TimeSlot, error)
	IsDateBlocked(ctx context.Context, locationID int64, date time.Time) (bool, error)
	CreateTimeSlot(ctx context.Context, locationID int64, dayOfWeek int, start, end Clock) (*TimeSlot, error)
	CreateBlockedDate(ctx context.Context, locationID int64, date time.Time, reason *string) (*BlockedDate, error)
}
