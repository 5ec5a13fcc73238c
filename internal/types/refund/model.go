package refund

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/money"
)

type RefundStatus string

const (
	StatusPending   RefundStatus = "pending"
	StatusApproved  RefundStatus = "approved"
	StatusCompleted RefundStatus = "completed"
	StatusRejected  RefundStatus = "rejected"
)

type Reason string

const (
	ReasonItemDefective      Reason = "item_defective"
	ReasonItemNotAsDescribed Reason = "item_not_as_described"
	ReasonBuyerChangedMind   Reason = "buyer_changed_mind"
	ReasonSellerCancelled    Reason = "seller_cancelled"
	ReasonDuplicateOrder     Reason = "duplicate_order"
	ReasonPaymentError       Reason = "payment_error"
	ReasonOther              Reason = "other"
)

var ErrInvalidStateTransition = errors.New("invalid state transition")

func ValidReason(r Reason) bool {
	switch r {
	case ReasonItemDefective, ReasonItemNotAsDescribed, ReasonBuyerChangedMind,
		ReasonSellerCancelled, ReasonDuplicateOrder, ReasonPaymentError, ReasonOther:
		return true
	}
	return false
}

// Refund reverses part or all of a completed payment. An order may carry
// several refunds; their sum never exceeds the order total.
type Refund struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrderID   uuid.UUID `db:"order_id" json:"order_id"`
	PaymentID uuid.UUID `db:"payment_id" json:"payment_id"`

	Reason      Reason      `db:"reason" json:"reason"`
	Amount      money.Money `db:"amount" json:"amount"`
	Percentage  int         `db:"percentage" json:"percentage"`
	Description string      `db:"description" json:"description"`
	AdminNotes  string      `db:"admin_notes" json:"admin_notes,omitempty"`

	Status RefundStatus `db:"status" json:"status"`

	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	Version int64 `db:"version" json:"-"`
}

func (r *Refund) Approve(notes string) error {
	if r.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	r.Status = StatusApproved
	r.ApprovedAt = &now
	if notes != "" {
		r.AdminNotes = notes
	}
	return nil
}

func (r *Refund) Reject(notes string) error {
	if r.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	r.Status = StatusRejected
	if notes != "" {
		r.AdminNotes = notes
	}
	return nil
}

func (r *Refund) Complete() error {
	if r.Status != StatusApproved {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.CompletedAt = &now
	return nil
}
