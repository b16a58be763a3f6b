package promo

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	FindByCode(ctx context.Context, projectID int64, code string) (*PromoCode, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByCode(ctx context.Context, projectID int64, code string) (*PromoCode, error) {
	query := `
		SELECT id, project_id, code, discount_type, discount_value, max_uses, current_uses,
		       min_order_amount, starts_at, expires_at, service_ids, is_active
		FROM promo_codes
		WHERE project_id = $1 AND code = $2
	`

	var p PromoCode
	if err := r.db.GetContext(ctx, &p, query, projectID, NormalizeCode(code)); err != nil {
		return nil, err
	}

	return &p, nil
}
