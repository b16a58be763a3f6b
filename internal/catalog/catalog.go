// Package catalog resolves the effective name and price of a service for a project:
// a project-level override when present, the catalog default otherwise.
package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Service struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"is_active"`
}

type serviceRow struct {
	ID             int64               `db:"id"`
	Name           string              `db:"name"`
	Price          decimal.Decimal     `db:"price"`
	IsActive       bool                `db:"is_active"`
	CustomName     *string             `db:"custom_name"`
	CustomPrice    decimal.NullDecimal `db:"custom_price"`
	OverrideActive *bool               `db:"override_active"`
}

// Effective returns the custom value when set, the fallback otherwise.
func Effective[T any](custom *T, fallback T) T {
	if custom != nil {
		return *custom
	}
	return fallback
}

func (r serviceRow) effective() Service {
	var customPrice *decimal.Decimal
	if r.CustomPrice.Valid {
		customPrice = &r.CustomPrice.Decimal
	}

	return Service{
		ID:       r.ID,
		Name:     Effective(r.CustomName, r.Name),
		Price:    Effective(customPrice, r.Price),
		IsActive: r.IsActive && Effective(r.OverrideActive, true),
	}
}

type Repository interface {
	// ResolveServices returns the effective services keyed by id. Unknown ids are absent.
	ResolveServices(ctx context.Context, projectID int64, ids []int64) (map[int64]Service, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ResolveServices(ctx context.Context, projectID int64, ids []int64) (map[int64]Service, error) {
	query := `
		SELECT s.id, s.name, s.price, s.is_active,
		       ps.custom_name, ps.custom_price, ps.is_active AS override_active
		FROM services s
		LEFT JOIN project_services ps ON ps.service_id = s.id AND ps.project_id = $1
		WHERE s.id = ANY($2)
	`

	var rows []serviceRow
	if err := r.db.SelectContext(ctx, &rows, query, projectID, pq.Array(ids)); err != nil {
		return nil, err
	}

	out := make(map[int64]Service, len(rows))
	for _, row := range rows {
		out[row.ID] = row.effective()
	}
	return out, nil
}
