package booking

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/db"
	"slotbook/internal/schedule"

	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"
)

const bookingColumns = `
	id, public_id, project_id, location_id, reference_number, scheduled_date, start_time, end_time,
	status, customer_name, customer_email, customer_phone, notes, subtotal, discount_amount, total,
	promo_code_id, calendar_event_id, reminder_sent_at, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// lockID maps a slot key onto the int64 space of Postgres advisory locks.
// A collision only serializes two unrelated slots.
func lockID(key SlotKey) int64 {
	return int64(xxhash.Sum64String("slot:" + key.String()))
}

func (r *repository) WithinSlotLock(ctx context.Context, key SlotKey, fn func(tx Tx) error) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID(key)); err != nil {
			return fmt.Errorf("acquire slot lock %s: %w", key, err)
		}
		return fn(&txRepository{tx: tx})
	})
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var b Booking
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) GetByPublicID(ctx context.Context, publicID string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE public_id = $1`

	var b Booking
	if err := r.db.GetContext(ctx, &b, query, publicID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repository) ListLineItems(ctx context.Context, bookingID int64) ([]LineItem, error) {
	query := `
		SELECT id, booking_id, service_id, service_name, quantity, unit_price, total_price
		FROM booking_line_items
		WHERE booking_id = $1
		ORDER BY id
	`

	var items []LineItem
	if err := r.db.SelectContext(ctx, &items, query, bookingID); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByProjectDate(ctx context.Context, projectID int64, date time.Time) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE project_id = $1 AND scheduled_date = $2
		ORDER BY start_time, id
	`

	var bookings []Booking
	if err := r.db.SelectContext(ctx, &bookings, query, projectID, date.Format(schedule.DateLayout)); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repository) CountActiveByStart(ctx context.Context, locationID int64, date time.Time) (map[schedule.Clock]int, error) {
	query := `
		SELECT start_time, COUNT(*) AS taken
		FROM bookings
		WHERE location_id = $1 AND scheduled_date = $2 AND status IN ('pending', 'confirmed')
		GROUP BY start_time
	`

	var rows []struct {
		Start schedule.Clock `db:"start_time"`
		Taken int            `db:"taken"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, locationID, date.Format(schedule.DateLayout)); err != nil {
		return nil, err
	}

	counts := make(map[schedule.Clock]int, len(rows))
	for _, row := range rows {
		counts[row.Start] = row.Taken
	}
	return counts, nil
}

func (r *repository) SetCalendarEventID(ctx context.Context, id int64, eventID *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bookings SET calendar_event_id = $2 WHERE id = $1`, id, eventID)
	return err
}

// ListDueReminders returns active, unreminded bookings whose local start falls in [from, to).
func (r *repository) ListDueReminders(ctx context.Context, from, to time.Time) ([]Booking, error) {
	query := `
		SELECT b.id, b.public_id, b.project_id, b.location_id, b.reference_number, b.scheduled_date,
		       b.start_time, b.end_time, b.status, b.customer_name, b.customer_email, b.customer_phone,
		       b.notes, b.subtotal, b.discount_amount, b.total, b.promo_code_id, b.calendar_event_id,
		       b.reminder_sent_at, b.created_at, b.updated_at
		FROM bookings b
		JOIN projects p ON p.id = b.project_id
		WHERE b.status IN ('pending', 'confirmed')
		  AND b.reminder_sent_at IS NULL
		  AND ((b.scheduled_date + b.start_time) AT TIME ZONE p.timezone) >= $1
		  AND ((b.scheduled_date + b.start_time) AT TIME ZONE p.timezone) < $2
		ORDER BY b.id
	`

	var bookings []Booking
	if err := r.db.SelectContext(ctx, &bookings, query, from, to); err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkReminderSent claims the reminder. It returns false if another worker got there first.
func (r *repository) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET reminder_sent_at = NOW()
		WHERE id = $1 AND reminder_sent_at IS NULL
	`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

type txRepository struct {
	tx *sqlx.Tx
}

func (t *txRepository) CountActiveForSlot(ctx context.Context, key SlotKey, excludeID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE project_id = $1
		  AND location_id IS NOT DISTINCT FROM $2
		  AND scheduled_date = $3
		  AND start_time = $4
		  AND status IN ('pending', 'confirmed')
		  AND id <> $5
	`

	var count int
	err := t.tx.GetContext(ctx, &count, query,
		key.ProjectID, key.LocationID, key.Date.Format(schedule.DateLayout), key.Start, excludeID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (t *txRepository) CountCreatedBetween(ctx context.Context, projectID int64, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE project_id = $1 AND created_at >= $2 AND created_at < $3
	`

	var count int
	if err := t.tx.GetContext(ctx, &count, query, projectID, from, to); err != nil {
		return 0, err
	}
	return count, nil
}

func (t *txRepository) Insert(ctx context.Context, b *Booking) error {
	query := `
		INSERT INTO bookings (
			public_id, project_id, location_id, reference_number, scheduled_date, start_time, end_time,
			status, customer_name, customer_email, customer_phone, notes, subtotal, discount_amount,
			total, promo_code_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`

	return t.tx.QueryRowxContext(ctx, query,
		b.PublicID, b.ProjectID, b.LocationID, b.ReferenceNumber, b.ScheduledDate.Format(schedule.DateLayout),
		b.StartTime, b.EndTime, b.Status, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Notes,
		b.Subtotal, b.DiscountAmount, b.Total, b.PromoCodeID,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (t *txRepository) InsertLineItems(ctx context.Context, bookingID int64, items []LineItem) error {
	query := `
		INSERT INTO booking_line_items (booking_id, service_id, service_name, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for i := range items {
		items[i].BookingID = bookingID
		err := t.tx.QueryRowxContext(ctx, query,
			bookingID, items[i].ServiceID, items[i].ServiceName, items[i].Quantity, items[i].UnitPrice, items[i].TotalPrice,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("insert line item %d: %w", items[i].ServiceID, err)
		}
	}
	return nil
}

// IncrementPromoUses bumps the usage counter unless the promo is already exhausted.
func (t *txRepository) IncrementPromoUses(ctx context.Context, promoID int64) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE promo_codes SET current_uses = current_uses + 1
		WHERE id = $1 AND (max_uses IS NULL OR current_uses < max_uses)
	`, promoID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

func (t *txRepository) UpdateSchedule(ctx context.Context, id int64, date time.Time, start, end schedule.Clock) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE bookings
		SET scheduled_date = $2, start_time = $3, end_time = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
	`, id, date.Format(schedule.DateLayout), start, end)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// UpdateStatus only applies when the booking is still in from.
func (t *txRepository) UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE bookings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}
