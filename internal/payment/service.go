package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/automart/settlement/internal/gateway"
	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/notification"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/wallet"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicatePayment = errors.New("payment already exists for this order")
	ErrOrderNotPayable  = errors.New("order is not payable")
	ErrNotRetryable     = errors.New("only failed payments can be retried")
	ErrValidationFailed = errors.New("gateway validation failed")
	ErrPermissionDenied = errors.New("permission denied")
)

// Callback is one gateway redirect/IPN delivery, already decoded from the
// provider's form post. Raw keeps the payload verbatim for audit.
type Callback struct {
	TranID           string
	ValID            string
	Status           string
	ErrorDescription string
	Raw              json.RawMessage
}

// Contact is the buyer profile slice the gateway session needs.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Service struct {
	store      Store
	gateway    gateway.Client
	notifier   notification.Notifier
	feePercent decimal.Decimal
}

func NewService(store Store, gw gateway.Client, notifier notification.Notifier, feePercent decimal.Decimal) *Service {
	return &Service{store: store, gateway: gw, notifier: notifier, feePercent: feePercent}
}

// Create records the pending payment for an order. The amount is always the
// order total; a client-submitted amount is never consulted.
func (s *Service) Create(ctx context.Context, actor middleware.Actor, orderID uuid.UUID, method string) (*payment.Payment, error) {
	o, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID {
		return nil, ErrPermissionDenied
	}
	if o.Status != order.StatusPending {
		return nil, ErrOrderNotPayable
	}
	if _, err := s.store.FindPaymentByOrder(ctx, o.ID); err == nil {
		return nil, ErrDuplicatePayment
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	p := &payment.Payment{
		ID:            uuid.New(),
		OrderID:       o.ID,
		Method:        method,
		Amount:        o.Total,
		Status:        payment.StatusPending,
		TransactionID: newTransactionID(),
		CreatedAt:     time.Now().UTC(),
		Version:       1,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		// The unique index on order_id is the authority; the pre-check above
		// only gives a nicer error without a round trip through the gateway.
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

// InitiateSession opens a hosted-payment-page session for the order's pending
// payment, creating the payment record if checkout skipped the explicit
// create step. Gateway failures leave both order and payment pending.
func (s *Service) InitiateSession(ctx context.Context, actor middleware.Actor, orderID uuid.UUID, contact Contact) (*gateway.Session, *payment.Payment, error) {
	o, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}
	if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID {
		return nil, nil, ErrPermissionDenied
	}
	if o.Status != order.StatusPending {
		return nil, nil, ErrOrderNotPayable
	}

	p, err := s.store.FindPaymentByOrder(ctx, o.ID)
	if errors.Is(err, storage.ErrNotFound) {
		p, err = s.Create(ctx, actor, o.ID, "gateway")
	}
	if err != nil {
		return nil, nil, err
	}
	if p.Status != payment.StatusPending && p.Status != payment.StatusProcessing {
		return nil, nil, ErrOrderNotPayable
	}

	session, err := s.gateway.Initiate(ctx, o, gateway.Buyer(contact))
	if err != nil {
		return nil, nil, err
	}
	p.SessionID = session.SessionID
	if err := s.store.UpdatePayment(ctx, p); err != nil {
		return nil, nil, err
	}
	return session, p, nil
}

// Retry moves a failed payment back to processing and opens a fresh session.
func (s *Service) Retry(ctx context.Context, actor middleware.Actor, paymentID uuid.UUID, contact Contact) (*gateway.Session, *payment.Payment, error) {
	p, err := s.store.FindPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrPaymentNotFound
		}
		return nil, nil, err
	}
	o, err := s.store.FindOrderByID(ctx, p.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Role != middleware.RoleAdmin && o.BuyerID != actor.UserID {
		return nil, nil, ErrPermissionDenied
	}
	if p.Status != payment.StatusFailed {
		return nil, nil, ErrNotRetryable
	}
	if err := p.MarkProcessing(); err != nil {
		return nil, nil, err
	}

	session, err := s.gateway.Initiate(ctx, o, gateway.Buyer(contact))
	if err != nil {
		return nil, nil, err
	}
	p.SessionID = session.SessionID
	if err := s.store.UpdatePayment(ctx, p); err != nil {
		return nil, nil, err
	}
	return session, p, nil
}

// HandleSuccess processes a success callback. The payload is never trusted on
// its own: the gateway's validation endpoint must independently confirm the
// reference id before anything is marked completed. Handling is idempotent on
// the gateway transaction id — a redelivered callback returns the recorded
// result and credits nothing twice.
func (s *Service) HandleSuccess(ctx context.Context, cb Callback) (*payment.Payment, error) {
	o, err := s.store.FindOrderByNumber(ctx, cb.TranID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	p, err := s.store.FindPaymentByOrder(ctx, o.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Status == payment.StatusCompleted && p.GatewayTxnID == cb.ValID {
		return p, nil
	}

	validation, err := s.gateway.Validate(ctx, cb.ValID)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, validation.FailReason)
	}

	w, err := s.sellerWallet(ctx, o)
	if err != nil {
		return nil, err
	}

	if err := p.MarkCompleted(cb.ValID, cb.Raw); err != nil {
		return nil, err
	}
	if err := o.Confirm(); err != nil {
		return nil, err
	}
	net := s.netAmount(o)
	txn, err := w.Credit(net, "sale of order "+o.Number)
	if err != nil {
		return nil, err
	}
	txn.OrderID = &o.ID
	txn.PaymentID = &p.ID

	if err := s.store.Settle(ctx, o, p, w, txn); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// A concurrent delivery of the same callback won the race. If it
			// settled the payment, this retry is a duplicate, not a failure.
			settled, ferr := s.store.FindPaymentByOrder(ctx, o.ID)
			if ferr == nil && settled.Status == payment.StatusCompleted && settled.GatewayTxnID == cb.ValID {
				return settled, nil
			}
		}
		return nil, err
	}

	s.notifier.Publish("payment.completed", map[string]any{
		"order_id":       o.ID.String(),
		"order_number":   o.Number,
		"payment_id":     p.ID.String(),
		"gateway_txn_id": p.GatewayTxnID,
		"amount":         p.Amount.StringFixed(),
		"currency":       p.Amount.Currency,
	})
	return p, nil
}

// HandleFail records a failed payment attempt. The order stays pending and
// remains eligible for retry or cancellation.
func (s *Service) HandleFail(ctx context.Context, cb Callback) (*payment.Payment, error) {
	return s.resolve(ctx, cb, payment.StatusFailed, func(p *payment.Payment) error {
		msg := cb.ErrorDescription
		if msg == "" {
			msg = "payment failed"
		}
		return p.MarkFailed(msg, cb.Raw)
	})
}

// HandleCancel records a buyer-cancelled gateway session.
func (s *Service) HandleCancel(ctx context.Context, cb Callback) (*payment.Payment, error) {
	return s.resolve(ctx, cb, payment.StatusCancelled, func(p *payment.Payment) error {
		return p.MarkCancelled(cb.Raw)
	})
}

func (s *Service) resolve(ctx context.Context, cb Callback, terminal payment.PaymentStatus, apply func(*payment.Payment) error) (*payment.Payment, error) {
	o, err := s.store.FindOrderByNumber(ctx, cb.TranID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	p, err := s.store.FindPaymentByOrder(ctx, o.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.Status == terminal {
		return p, nil
	}
	if err := apply(p); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePayment(ctx, p); err != nil {
		return nil, err
	}
	s.notifier.Publish("payment."+string(terminal), map[string]any{
		"order_id":     o.ID.String(),
		"order_number": o.Number,
		"payment_id":   p.ID.String(),
	})
	return p, nil
}

func (s *Service) sellerWallet(ctx context.Context, o *order.Order) (*wallet.Wallet, error) {
	w, err := s.store.FindWalletByUser(ctx, o.SellerID)
	if errors.Is(err, storage.ErrNotFound) {
		w = wallet.New(o.SellerID, o.Total.Currency)
		cerr := s.store.CreateWallet(ctx, w)
		if errors.Is(cerr, storage.ErrDuplicate) {
			// Lost the creation race; the other writer's row wins.
			return s.store.FindWalletByUser(ctx, o.SellerID)
		}
		if cerr != nil {
			return nil, cerr
		}
		return w, nil
	}
	return w, err
}

// netAmount is the order total minus the platform fee.
func (s *Service) netAmount(o *order.Order) money.Money {
	fee := o.Total.Percent(s.feePercent)
	net, _ := o.Total.Sub(fee)
	return net
}

func newTransactionID() string {
	return "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}
