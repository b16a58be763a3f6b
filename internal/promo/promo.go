package promo

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

type PromoCode struct {
	ID             int64               `db:"id" json:"id"`
	ProjectID      int64               `db:"project_id" json:"project_id"`
	Code           string              `db:"code" json:"code"`
	DiscountType   DiscountType        `db:"discount_type" json:"discount_type"`
	DiscountValue  decimal.Decimal     `db:"discount_value" json:"discount_value"`
	MaxUses        *int                `db:"max_uses" json:"max_uses,omitempty"`
	CurrentUses    int                 `db:"current_uses" json:"current_uses"`
	MinOrderAmount decimal.NullDecimal `db:"min_order_amount" json:"min_order_amount"`
	StartsAt       *time.Time          `db:"starts_at" json:"starts_at,omitempty"`
	ExpiresAt      *time.Time          `db:"expires_at" json:"expires_at,omitempty"`
	ServiceIDs     pq.Int64Array       `db:"service_ids" json:"service_ids"`
	IsActive       bool                `db:"is_active" json:"is_active"`
}

// Item is the pricing view of a line item.
type Item struct {
	ServiceID int64
	Total     decimal.Decimal
}

// NormalizeCode is the canonical stored form of a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (p *PromoCode) IsValid(now time.Time, subtotal decimal.Decimal) bool {
	if p == nil || !p.IsActive {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	if p.MinOrderAmount.Valid && subtotal.LessThan(p.MinOrderAmount.Decimal) {
		return false
	}
	return true
}

func (p *PromoCode) AppliesTo(serviceID int64) bool {
	if len(p.ServiceIDs) == 0 {
		return true
	}
	for _, id := range p.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

// ApplicableSubtotal sums the items the promo applies to.
func ApplicableSubtotal(items []Item, p *PromoCode) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		if p.AppliesTo(item.ServiceID) {
			sum = sum.Add(item.Total)
		}
	}
	return sum
}

// Discount never returns a negative value or one larger than amount.
func Discount(amount decimal.Decimal, p *PromoCode) decimal.Decimal {
	if amount.Sign() <= 0 || p.DiscountValue.Sign() <= 0 {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch p.DiscountType {
	case DiscountPercent:
		d = amount.Mul(p.DiscountValue).Div(hundred).Round(2)
	case DiscountFixed:
		d = p.DiscountValue
	default:
		return decimal.Zero
	}

	return decimal.Min(d, amount)
}
