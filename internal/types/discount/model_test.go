package discount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/automart/settlement/internal/money"
)

func activeDiscount() *Discount {
	now := time.Now().UTC()
	return &Discount{
		Code:       "SAVE20",
		Type:       TypePercentage,
		Value:      decimal.NewFromInt(20),
		Status:     StatusActive,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
	}
}

func TestCalculatePercentage(t *testing.T) {
	d := activeDiscount()
	got := d.Calculate(money.MustFromString("1000.00", "BDT"))
	assert.Equal(t, "200.00", got.StringFixed())
}

func TestCalculatePercentageCapped(t *testing.T) {
	d := activeDiscount()
	cap := money.MustFromString("150.00", "BDT")
	d.MaxDiscountAmount = &cap

	got := d.Calculate(money.MustFromString("1000.00", "BDT"))
	assert.Equal(t, "150.00", got.StringFixed())
}

func TestCalculateFixed(t *testing.T) {
	d := activeDiscount()
	d.Type = TypeFixed
	d.Value = decimal.NewFromInt(50)

	got := d.Calculate(money.MustFromString("200.00", "BDT"))
	assert.Equal(t, "50.00", got.StringFixed())
}

func TestCalculateFixedClampsToOrderAmount(t *testing.T) {
	d := activeDiscount()
	d.Type = TypeFixed
	d.Value = decimal.NewFromInt(50)

	got := d.Calculate(money.MustFromString("30.00", "BDT"))
	assert.Equal(t, "30.00", got.StringFixed())
}

func TestIsValid(t *testing.T) {
	now := time.Now().UTC()

	d := activeDiscount()
	assert.True(t, d.IsValid(now))

	d = activeDiscount()
	d.Status = StatusInactive
	assert.False(t, d.IsValid(now))

	d = activeDiscount()
	d.ValidFrom = now.Add(time.Minute)
	assert.False(t, d.IsValid(now))

	d = activeDiscount()
	d.ValidUntil = now.Add(-time.Minute)
	assert.False(t, d.IsValid(now))

	d = activeDiscount()
	d.MaxUses = 5
	d.TimesUsed = 5
	assert.False(t, d.IsValid(now))

	// MaxUses of zero means unlimited.
	d = activeDiscount()
	d.TimesUsed = 10000
	assert.True(t, d.IsValid(now))
}
