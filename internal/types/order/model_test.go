package order

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/automart/settlement/internal/money"
)

func TestCalculateTotal(t *testing.T) {
	o := &Order{
		Subtotal: money.MustFromString("350.00", "BDT"),
		Tax:      money.MustFromString("10.00", "BDT"),
		Shipping: money.MustFromString("25.00", "BDT"),
		Discount: money.MustFromString("20.00", "BDT"),
	}

	assert.NoError(t, o.CalculateTotal())
	assert.Equal(t, "365.00", o.Total.StringFixed())
}

func TestCalculateTotalCurrencyMismatch(t *testing.T) {
	o := &Order{
		Subtotal: money.MustFromString("350.00", "BDT"),
		Tax:      money.MustFromString("10.00", "USD"),
		Shipping: money.Zero("BDT"),
		Discount: money.Zero("BDT"),
	}

	assert.Equal(t, money.ErrCurrencyMismatch, o.CalculateTotal())
}

func TestConfirm(t *testing.T) {
	o := &Order{Status: StatusPending}
	assert.NoError(t, o.Confirm())
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.NotNil(t, o.ConfirmedAt)

	// Confirming twice is a transition error, not a no-op.
	assert.Equal(t, ErrInvalidStateTransition, o.Confirm())
}

func TestShip(t *testing.T) {
	o := &Order{Status: StatusConfirmed}
	assert.NoError(t, o.Ship("TRK-1", "https://courier.example/TRK-1"))
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, "TRK-1", o.TrackingNumber)
	assert.NotNil(t, o.ShippedAt)
}

func TestShipFromProcessing(t *testing.T) {
	o := &Order{Status: StatusProcessing}
	assert.NoError(t, o.Ship("", ""))
	assert.Equal(t, StatusShipped, o.Status)
	assert.Empty(t, o.TrackingNumber)
}

func TestShipFromPending(t *testing.T) {
	o := &Order{Status: StatusPending}
	assert.Equal(t, ErrInvalidStateTransition, o.Ship("TRK-1", ""))
	assert.Equal(t, StatusPending, o.Status)
}

func TestDeliver(t *testing.T) {
	o := &Order{Status: StatusShipped}
	assert.NoError(t, o.Deliver())
	assert.Equal(t, StatusDelivered, o.Status)

	assert.Equal(t, ErrInvalidStateTransition, o.Deliver())
}

func TestCancel(t *testing.T) {
	for _, status := range []OrderStatus{StatusPending, StatusConfirmed} {
		o := &Order{Status: status}
		assert.NoError(t, o.Cancel())
		assert.Equal(t, StatusCancelled, o.Status)
	}

	for _, status := range []OrderStatus{StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded} {
		o := &Order{Status: status}
		assert.Equal(t, ErrInvalidStateTransition, o.Cancel())
		assert.Equal(t, status, o.Status)
	}
}

func TestMarkRefunded(t *testing.T) {
	for _, status := range []OrderStatus{StatusConfirmed, StatusDelivered} {
		o := &Order{Status: status}
		assert.NoError(t, o.MarkRefunded())
		assert.Equal(t, StatusRefunded, o.Status)
	}

	o := &Order{Status: StatusPending}
	assert.Equal(t, ErrInvalidStateTransition, o.MarkRefunded())
}
