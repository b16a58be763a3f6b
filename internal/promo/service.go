package promo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"slotbook/internal/logger"

	"github.com/shopspring/decimal"
)

// Applied is a promo that passed validation together with the discount it grants.
type Applied struct {
	Promo    *PromoCode
	Discount decimal.Decimal
}

type Service interface {
	// Apply returns nil when code is empty, unknown, invalid or grants no discount.
	// A bad code never produces an error for the caller.
	Apply(ctx context.Context, projectID int64, code string, items []Item, subtotal decimal.Decimal, now time.Time) *Applied
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Apply(ctx context.Context, projectID int64, code string, items []Item, subtotal decimal.Decimal, now time.Time) *Applied {
	if NormalizeCode(code) == "" {
		return nil
	}

	p, err := s.repo.FindByCode(ctx, projectID, code)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn("promo lookup failed", "project_id", projectID, "error", err)
		}
		return nil
	}

	if !p.IsValid(now, subtotal) {
		return nil
	}

	discount := Discount(ApplicableSubtotal(items, p), p)
	if discount.Sign() <= 0 {
		return nil
	}

	return &Applied{Promo: p, Discount: discount}
}
