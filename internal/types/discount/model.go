package discount

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/automart/settlement/internal/money"
)

type DiscountType string

const (
	TypePercentage DiscountType = "percentage"
	TypeFixed      DiscountType = "fixed"
)

type DiscountStatus string

const (
	StatusActive   DiscountStatus = "active"
	StatusInactive DiscountStatus = "inactive"
	StatusExpired  DiscountStatus = "expired"
)

type Discount struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`

	Type  DiscountType    `db:"type" json:"type"`
	Value decimal.Decimal `db:"value" json:"value"`

	// MaxDiscountAmount caps percentage discounts when set.
	MaxDiscountAmount *money.Money `db:"max_discount_amount" json:"max_discount_amount,omitempty"`
	MinOrderAmount    money.Money  `db:"min_order_amount" json:"min_order_amount"`

	MaxUses        int64 `db:"max_uses" json:"max_uses,omitempty"` // 0 = unlimited
	MaxUsesPerUser int64 `db:"max_uses_per_user" json:"max_uses_per_user"`

	Status     DiscountStatus `db:"status" json:"status"`
	ValidFrom  time.Time      `db:"valid_from" json:"valid_from"`
	ValidUntil time.Time      `db:"valid_until" json:"valid_until"`

	TimesUsed int64     `db:"times_used" json:"times_used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsValid is a pure function of the clock and the stored counters.
func (d *Discount) IsValid(now time.Time) bool {
	if d.Status != StatusActive {
		return false
	}
	if now.Before(d.ValidFrom) || now.After(d.ValidUntil) {
		return false
	}
	if d.MaxUses > 0 && d.TimesUsed >= d.MaxUses {
		return false
	}
	return true
}

// Calculate returns the discount for the given order amount. Percentage
// discounts round half-up to 2 places and respect MaxDiscountAmount. Fixed
// discounts clamp to the order amount so a total can never go negative.
func (d *Discount) Calculate(amount money.Money) money.Money {
	switch d.Type {
	case TypePercentage:
		v := amount.Percent(d.Value)
		if d.MaxDiscountAmount != nil {
			v = v.Min(*d.MaxDiscountAmount)
		}
		return v
	default:
		return money.New(d.Value, amount.Currency).Min(amount)
	}
}
