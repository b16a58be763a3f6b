package schedule

import (
	"context"
	"time"

	"slotbook/internal/db"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProject(ctx context.Context, id int64) (*Project, error) {
	query := `
		SELECT id, name, timezone, advance_booking_days, min_advance_hours, min_booking_amount,
		       reference_prefix, webhook_url, webhook_secret, notification_email, created_at
		FROM projects
		WHERE id = $1
	`

	var project Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}

	return &project, nil
}

func (r *repository) GetLocation(ctx context.Context, id int64) (*Location, error) {
	query := `
		SELECT id, project_id, name, max_concurrent_bookings, is_active, calendar_ref, created_at
		FROM locations
		WHERE id = $1
	`

	var location Location
	if err := r.db.GetContext(ctx, &location, query, id); err != nil {
		return nil, err
	}

	return &location, nil
}

func (r *repository) FirstActiveLocation(ctx context.Context, projectID int64) (*Location, error) {
	query := `
		SELECT id, project_id, name, max_concurrent_bookings, is_active, calendar_ref, created_at
		FROM locations
		WHERE project_id = $1 AND is_active = true
		ORDER BY id ASC
		LIMIT 1
	`

	var location Location
	if err := r.db.GetContext(ctx, &location, query, projectID); err != nil {
		return nil, err
	}

	return &location, nil
}

func (r *repository) ListActiveTimeSlots(ctx context.Context, locationID int64, dayOfWeek int) ([]TimeSlot, error) {
	query := `
		SELECT id, location_id, day_of_week, start_time, end_time, is_active, created_at
		FROM time_slots
		WHERE location_id = $1 AND day_of_week = $2 AND is_active = true
		ORDER BY start_time ASC
	`

	var slots []TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, locationID, dayOfWeek); err != nil {
		return nil, err
	}

	return slots, nil
}

func (r *repository) LocationExists(ctx context.Context, id int64) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1)`, id)
}

func (r *repository) IsDateBlocked(ctx context.Context, locationID int64, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM blocked_dates
			WHERE location_id = $1 AND date = $2
		)
	`
	return db.Exists(ctx, r.db, query, locationID, date.Format(DateLayout))
}

func (r *repository) CreateTimeSlot(ctx context.Context, locationID int64, dayOfWeek int, start, end Clock) (*TimeSlot, error) {
	query := `
		INSERT INTO time_slots (location_id, day_of_week, start_time, end_time, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING id, location_id, day_of_week, start_time, end_time, is_active, created_at
	`

	var slot TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, locationID, dayOfWeek, start, end); err != nil {
		return nil, err
	}

	return &slot, nil
}

func (r *repository) CreateBlockedDate(ctx context.Context, locationID int64, date time.Time, reason *string) (*BlockedDate, error) {
	query := `
		INSERT INTO blocked_dates (location_id, date, reason)
		VALUES ($1, $2, $3)
		RETURNING id, location_id, date, reason, created_at
	`

	var blocked BlockedDate
	if err := r.db.GetContext(ctx, &blocked, query, locationID, date.Format(DateLayout), reason); err != nil {
		return nil, err
	}

	return &blocked, nil
}
