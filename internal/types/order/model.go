package order

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/money"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

// ItemKind tags which catalog an order's item came from.
type ItemKind string

const (
	ItemCar  ItemKind = "car"
	ItemPart ItemKind = "part"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnknownItemKind        = errors.New("unknown item kind")
)

type Address struct {
	Line       string `db:"line" json:"line"`
	City       string `db:"city" json:"city"`
	State      string `db:"state" json:"state"`
	PostalCode string `db:"postal_code" json:"postal_code"`
	Country    string `db:"country" json:"country"`
}

// Order is a purchase of a car or a part. Item fields are a snapshot taken at
// checkout so later listing edits never alter historical orders. Status only
// changes through the named transition methods.
type Order struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Number   string    `db:"number" json:"number"`
	BuyerID  uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID uuid.UUID `db:"seller_id" json:"seller_id"`

	ItemKind        ItemKind    `db:"item_kind" json:"item_kind"`
	ItemID          uuid.UUID   `db:"item_id" json:"item_id"`
	ItemName        string      `db:"item_name" json:"item_name"`
	ItemDescription string      `db:"item_description" json:"item_description"`
	UnitPrice       money.Money `db:"unit_price" json:"unit_price"`
	Quantity        int64       `db:"quantity" json:"quantity"`

	Subtotal money.Money `db:"subtotal" json:"subtotal"`
	Tax      money.Money `db:"tax" json:"tax"`
	Shipping money.Money `db:"shipping" json:"shipping"`
	Discount money.Money `db:"discount" json:"discount"`
	Total    money.Money `db:"total" json:"total"`

	ShippingAddress Address `db:"shipping_address" json:"shipping_address"`
	BillingAddress  Address `db:"billing_address" json:"billing_address"`

	Status         OrderStatus `db:"status" json:"status"`
	TrackingNumber string      `db:"tracking_number" json:"tracking_number,omitempty"`
	TrackingURL    string      `db:"tracking_url" json:"tracking_url,omitempty"`
	BuyerNotes     string      `db:"buyer_notes" json:"buyer_notes,omitempty"`
	SellerNotes    string      `db:"seller_notes" json:"seller_notes,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RefundedAt  *time.Time `db:"refunded_at" json:"refunded_at,omitempty"`

	Version int64 `db:"version" json:"-"`
}

// CalculateTotal recomputes total = subtotal + tax + shipping - discount.
// Client-submitted totals are never trusted; this always overwrites.
func (o *Order) CalculateTotal() error {
	t, err := o.Subtotal.Add(o.Tax)
	if err != nil {
		return err
	}
	if t, err = t.Add(o.Shipping); err != nil {
		return err
	}
	if t, err = t.Sub(o.Discount); err != nil {
		return err
	}
	o.Total = t
	return nil
}

func (o *Order) Confirm() error {
	if o.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	o.Status = StatusConfirmed
	o.ConfirmedAt = &now
	return nil
}

func (o *Order) Ship(trackingNumber, trackingURL string) error {
	if o.Status != StatusConfirmed && o.Status != StatusProcessing {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	o.Status = StatusShipped
	o.ShippedAt = &now
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	if trackingURL != "" {
		o.TrackingURL = trackingURL
	}
	return nil
}

func (o *Order) Deliver() error {
	if o.Status != StatusShipped {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	return nil
}

func (o *Order) Cancel() error {
	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	return nil
}

// MarkRefunded is called only when a completed refund finalizes. Refunded is
// terminal.
func (o *Order) MarkRefunded() error {
	if o.Status != StatusConfirmed && o.Status != StatusDelivered {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	o.Status = StatusRefunded
	o.RefundedAt = &now
	return nil
}
