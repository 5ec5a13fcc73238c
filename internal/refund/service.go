package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/notification"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/refund"
)

var (
	ErrRefundNotFound     = errors.New("refund not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotRefundable = errors.New("order is not refundable")
	ErrPaymentNotSettled  = errors.New("order has no completed payment")
	ErrInvalidAmount      = errors.New("invalid refund amount")
	ErrInvalidReason      = errors.New("invalid refund reason")
	// ErrExceedsOrderTotal guards the money-conservation invariant: completed
	// and in-flight refunds for an order can never sum past its total.
	ErrExceedsOrderTotal = errors.New("refunds exceed order total")
	ErrPermissionDenied  = errors.New("permission denied")
)

type CreateRequest struct {
	OrderID     uuid.UUID     `json:"order_id"`
	Reason      refund.Reason `json:"reason"`
	Amount      string        `json:"amount"`
	Percentage  int           `json:"percentage"`
	Description string        `json:"description"`
}

type Service struct {
	store    Store
	notifier notification.Notifier
}

func NewService(store Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Request opens a refund on behalf of the buyer. The amount is validated
// against the order total minus everything already requested or paid out.
func (s *Service) Request(ctx context.Context, actor middleware.Actor, req CreateRequest) (*refund.Refund, error) {
	o, err := s.store.FindOrderByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID {
		return nil, ErrPermissionDenied
	}
	if o.Status != order.StatusConfirmed && o.Status != order.StatusDelivered {
		return nil, ErrOrderNotRefundable
	}
	if !refund.ValidReason(req.Reason) {
		return nil, ErrInvalidReason
	}

	p, err := s.store.FindPaymentByOrder(ctx, o.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPaymentNotSettled
		}
		return nil, err
	}
	if p.Status != payment.StatusCompleted {
		return nil, ErrPaymentNotSettled
	}

	amount, percentage, err := resolveAmount(req, o.Total)
	if err != nil {
		return nil, err
	}

	outstanding, err := s.outstandingTotal(ctx, o)
	if err != nil {
		return nil, err
	}
	projected, err := outstanding.Add(amount)
	if err != nil {
		return nil, err
	}
	if o.Total.LessThan(projected) {
		return nil, ErrExceedsOrderTotal
	}

	r := &refund.Refund{
		ID:          uuid.New(),
		OrderID:     o.ID,
		PaymentID:   p.ID,
		Reason:      req.Reason,
		Amount:      amount,
		Percentage:  percentage,
		Description: req.Description,
		Status:      refund.StatusPending,
		RequestedAt: time.Now().UTC(),
		Version:     1,
	}
	if err := s.store.CreateRefund(ctx, r); err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}
	s.publish("refund.requested", r, o.Number)
	return r, nil
}

// Approve is admin-only.
func (s *Service) Approve(ctx context.Context, actor middleware.Actor, id uuid.UUID, notes string) (*refund.Refund, error) {
	return s.adminTransition(ctx, actor, id, "refund.approved", func(r *refund.Refund) error {
		return r.Approve(notes)
	})
}

// Reject is admin-only and terminal.
func (s *Service) Reject(ctx context.Context, actor middleware.Actor, id uuid.UUID, notes string) (*refund.Refund, error) {
	return s.adminTransition(ctx, actor, id, "refund.rejected", func(r *refund.Refund) error {
		return r.Reject(notes)
	})
}

// Complete finalizes an approved refund: the refund and order become
// terminal, the payment flips to refunded and the seller wallet is debited,
// all in one database transaction. An insufficient seller balance fails the
// whole operation; manual intervention is required, never a partial refund.
func (s *Service) Complete(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*refund.Refund, error) {
	if actor.Role != middleware.RoleAdmin {
		return nil, ErrPermissionDenied
	}
	r, err := s.store.FindRefundByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRefundNotFound
		}
		return nil, err
	}
	o, err := s.store.FindOrderByID(ctx, r.OrderID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.FindPaymentByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	w, err := s.store.FindWalletByUser(ctx, o.SellerID)
	if err != nil {
		return nil, err
	}

	if err := r.Complete(); err != nil {
		return nil, err
	}
	if err := o.MarkRefunded(); err != nil {
		return nil, err
	}
	if err := p.MarkRefunded(); err != nil {
		return nil, err
	}
	txn, err := w.Debit(r.Amount, "refund for order "+o.Number)
	if err != nil {
		return nil, err
	}
	txn.OrderID = &o.ID
	txn.PaymentID = &p.ID

	if err := s.store.CompleteRefund(ctx, r, o, p, w, txn); err != nil {
		return nil, err
	}
	s.publish("refund.completed", r, o.Number)
	return r, nil
}

func (s *Service) adminTransition(ctx context.Context, actor middleware.Actor, id uuid.UUID, event string, apply func(*refund.Refund) error) (*refund.Refund, error) {
	if actor.Role != middleware.RoleAdmin {
		return nil, ErrPermissionDenied
	}
	r, err := s.store.FindRefundByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRefundNotFound
		}
		return nil, err
	}
	if err := apply(r); err != nil {
		return nil, err
	}
	if err := s.store.UpdateRefund(ctx, r); err != nil {
		return nil, err
	}
	s.publish(event, r, "")
	return r, nil
}

// outstandingTotal sums every refund for the order that is not rejected.
func (s *Service) outstandingTotal(ctx context.Context, o *order.Order) (money.Money, error) {
	refunds, err := s.store.ListRefundsByOrder(ctx, o.ID)
	if err != nil {
		return money.Money{}, err
	}
	total := money.Zero(o.Total.Currency)
	for _, r := range refunds {
		if r.Status == refund.StatusRejected {
			continue
		}
		if total, err = total.Add(r.Amount); err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}

func resolveAmount(req CreateRequest, orderTotal money.Money) (money.Money, int, error) {
	if req.Amount != "" {
		m, err := money.FromString(req.Amount, orderTotal.Currency)
		if err != nil || !m.IsPositive() {
			return money.Money{}, 0, ErrInvalidAmount
		}
		// Amount-based refunds carry no percentage.
		return m, 0, nil
	}
	if req.Percentage < 1 || req.Percentage > 100 {
		return money.Money{}, 0, ErrInvalidAmount
	}
	return orderTotal.Percent(decimal.NewFromInt(int64(req.Percentage))), req.Percentage, nil
}

func (s *Service) publish(event string, r *refund.Refund, orderNumber string) {
	s.notifier.Publish(event, map[string]any{
		"refund_id":    r.ID.String(),
		"order_id":     r.OrderID.String(),
		"order_number": orderNumber,
		"status":       string(r.Status),
		"amount":       r.Amount.StringFixed(),
		"currency":     r.Amount.Currency,
	})
}
