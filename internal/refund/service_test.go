package refund

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/automart/settlement/internal/middleware"
	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/notification"
	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/refund"
	"github.com/automart/settlement/internal/types/wallet"
)

type mockStore struct {
	createRefundFn       func(ctx context.Context, r *refund.Refund) error
	findRefundByIDFn     func(ctx context.Context, id uuid.UUID) (*refund.Refund, error)
	listRefundsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]refund.Refund, error)
	updateRefundFn       func(ctx context.Context, r *refund.Refund) error
	findOrderByIDFn      func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	findPaymentByOrderFn func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error)
	findWalletByUserFn   func(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	completeRefundFn     func(ctx context.Context, r *refund.Refund, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error
}

func (m *mockStore) CreateRefund(ctx context.Context, r *refund.Refund) error {
	return m.createRefundFn(ctx, r)
}
func (m *mockStore) FindRefundByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	return m.findRefundByIDFn(ctx, id)
}
func (m *mockStore) ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]refund.Refund, error) {
	return m.listRefundsByOrderFn(ctx, orderID)
}
func (m *mockStore) UpdateRefund(ctx context.Context, r *refund.Refund) error {
	return m.updateRefundFn(ctx, r)
}
func (m *mockStore) FindOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.findOrderByIDFn(ctx, id)
}
func (m *mockStore) FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
	return m.findPaymentByOrderFn(ctx, orderID)
}
func (m *mockStore) FindWalletByUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	return m.findWalletByUserFn(ctx, userID)
}
func (m *mockStore) CompleteRefund(ctx context.Context, r *refund.Refund, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error {
	return m.completeRefundFn(ctx, r, o, p, w, t)
}

func deliveredOrder() *order.Order {
	return &order.Order{
		ID:       uuid.New(),
		Number:   "ORD-AB12CD34",
		BuyerID:  uuid.New(),
		SellerID: uuid.New(),
		Total:    money.MustFromString("365.00", "BDT"),
		Status:   order.StatusDelivered,
	}
}

func completedPayment(o *order.Order) *payment.Payment {
	return &payment.Payment{
		ID:      uuid.New(),
		OrderID: o.ID,
		Amount:  o.Total,
		Status:  payment.StatusCompleted,
	}
}

func buyerActor(o *order.Order) middleware.Actor {
	return middleware.Actor{UserID: o.BuyerID, Role: middleware.RoleBuyer}
}

func adminActor() middleware.Actor {
	return middleware.Actor{UserID: uuid.New(), Role: middleware.RoleAdmin}
}

func requestStore(o *order.Order, existing []refund.Refund) (*mockStore, **refund.Refund) {
	var created *refund.Refund
	return &mockStore{
		findOrderByIDFn: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return completedPayment(o), nil
		},
		listRefundsByOrderFn: func(ctx context.Context, orderID uuid.UUID) ([]refund.Refund, error) {
			return existing, nil
		},
		createRefundFn: func(ctx context.Context, r *refund.Refund) error {
			created = r
			return nil
		},
	}, &created
}

func TestRequestFixedAmount(t *testing.T) {
	o := deliveredOrder()
	store, created := requestStore(o, nil)
	svc := NewService(store, notification.Noop{})

	r, err := svc.Request(context.Background(), buyerActor(o), CreateRequest{
		OrderID: o.ID,
		Reason:  refund.ReasonItemDefective,
		Amount:  "100.00",
	})
	assert.NoError(t, err)
	assert.Equal(t, *created, r)
	assert.Equal(t, refund.StatusPending, r.Status)
	assert.Equal(t, "100.00", r.Amount.StringFixed())
	// A fixed amount is not a share of the order total.
	assert.Equal(t, 0, r.Percentage)
}

func TestRequestPercentage(t *testing.T) {
	o := deliveredOrder()
	store, _ := requestStore(o, nil)
	svc := NewService(store, notification.Noop{})

	r, err := svc.Request(context.Background(), buyerActor(o), CreateRequest{
		OrderID:    o.ID,
		Reason:     refund.ReasonItemNotAsDescribed,
		Percentage: 50,
	})
	assert.NoError(t, err)
	assert.Equal(t, "182.50", r.Amount.StringFixed())
	assert.Equal(t, 50, r.Percentage)
}

func TestRequestExceedsOrderTotal(t *testing.T) {
	o := deliveredOrder()
	existing := []refund.Refund{
		{OrderID: o.ID, Status: refund.StatusCompleted, Amount: money.MustFromString("300.00", "BDT")},
	}
	store, _ := requestStore(o, existing)
	svc := NewService(store, notification.Noop{})

	_, err := svc.Request(context.Background(), buyerActor(o), CreateRequest{
		OrderID: o.ID,
		Reason:  refund.ReasonOther,
		Amount:  "100.00",
	})
	assert.Equal(t, ErrExceedsOrderTotal, err)
}

func TestRequestRejectedRefundsDoNotCount(t *testing.T) {
	o := deliveredOrder()
	existing := []refund.Refund{
		{OrderID: o.ID, Status: refund.StatusRejected, Amount: money.MustFromString("300.00", "BDT")},
	}
	store, _ := requestStore(o, existing)
	svc := NewService(store, notification.Noop{})

	r, err := svc.Request(context.Background(), buyerActor(o), CreateRequest{
		OrderID: o.ID,
		Reason:  refund.ReasonOther,
		Amount:  "365.00",
	})
	assert.NoError(t, err)
	assert.Equal(t, "365.00", r.Amount.StringFixed())
}

func TestRequestInvalidAmounts(t *testing.T) {
	o := deliveredOrder()
	store, _ := requestStore(o, nil)
	svc := NewService(store, notification.Noop{})

	for _, req := range []CreateRequest{
		{OrderID: o.ID, Reason: refund.ReasonOther, Amount: "-5.00"},
		{OrderID: o.ID, Reason: refund.ReasonOther, Amount: "abc"},
		{OrderID: o.ID, Reason: refund.ReasonOther, Percentage: 0},
		{OrderID: o.ID, Reason: refund.ReasonOther, Percentage: 101},
	} {
		_, err := svc.Request(context.Background(), buyerActor(o), req)
		assert.Equal(t, ErrInvalidAmount, err)
	}
}

func TestRequestInvalidReason(t *testing.T) {
	o := deliveredOrder()
	store, _ := requestStore(o, nil)
	svc := NewService(store, notification.Noop{})

	_, err := svc.Request(context.Background(), buyerActor(o), CreateRequest{
		OrderID: o.ID,
		Reason:  "felt_like_it",
		Amount:  "10.00",
	})
	assert.Equal(t, ErrInvalidReason, err)
}

func TestRequestOrderNotRefundable(t *testing.T) {
	o := deliveredOrder()
	o.Status = order.StatusPending
	store, _ := requestStore(o, nil)
	svc := NewService(store, notification.Noop{})

	_, err := svc.Request(context.Background(), buyerActor(o), CreateRequest{
		OrderID: o.ID,
		Reason:  refund.ReasonOther,
		Amount:  "10.00",
	})
	assert.Equal(t, ErrOrderNotRefundable, err)
}

func TestRequestPaymentNotSettled(t *testing.T) {
	o := deliveredOrder()
	store := &mockStore{
		findOrderByIDFn: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return &payment.Payment{OrderID: orderID, Status: payment.StatusFailed}, nil
		},
	}
	svc := NewService(store, notification.Noop{})

	_, err := svc.Request(context.Background(), buyerActor(o), CreateRequest{
		OrderID: o.ID,
		Reason:  refund.ReasonOther,
		Amount:  "10.00",
	})
	assert.Equal(t, ErrPaymentNotSettled, err)
}

func TestRequestForeignOrder(t *testing.T) {
	o := deliveredOrder()
	store, _ := requestStore(o, nil)
	svc := NewService(store, notification.Noop{})

	actor := middleware.Actor{UserID: uuid.New(), Role: middleware.RoleBuyer}
	_, err := svc.Request(context.Background(), actor, CreateRequest{OrderID: o.ID})
	assert.Equal(t, ErrPermissionDenied, err)
}

func TestApproveRequiresAdmin(t *testing.T) {
	svc := NewService(&mockStore{}, notification.Noop{})

	actor := middleware.Actor{UserID: uuid.New(), Role: middleware.RoleBuyer}
	_, err := svc.Approve(context.Background(), actor, uuid.New(), "")
	assert.Equal(t, ErrPermissionDenied, err)
}

func TestApprove(t *testing.T) {
	r := &refund.Refund{ID: uuid.New(), Status: refund.StatusPending}
	store := &mockStore{
		findRefundByIDFn: func(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
			return r, nil
		},
		updateRefundFn: func(ctx context.Context, r *refund.Refund) error {
			return nil
		},
	}
	svc := NewService(store, notification.Noop{})

	got, err := svc.Approve(context.Background(), adminActor(), r.ID, "verified with courier")
	assert.NoError(t, err)
	assert.Equal(t, refund.StatusApproved, got.Status)
	assert.Equal(t, "verified with courier", got.AdminNotes)
}

func TestComplete(t *testing.T) {
	o := deliveredOrder()
	p := completedPayment(o)
	w := wallet.New(o.SellerID, "BDT")
	_, err := w.Credit(money.MustFromString("328.50", "BDT"), "sale")
	assert.NoError(t, err)

	r := &refund.Refund{
		ID:        uuid.New(),
		OrderID:   o.ID,
		PaymentID: p.ID,
		Amount:    money.MustFromString("100.00", "BDT"),
		Status:    refund.StatusApproved,
	}

	completed := 0
	store := &mockStore{
		findRefundByIDFn: func(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
			return r, nil
		},
		findOrderByIDFn: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return p, nil
		},
		findWalletByUserFn: func(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
			return w, nil
		},
		completeRefundFn: func(ctx context.Context, r *refund.Refund, o *order.Order, p *payment.Payment, w *wallet.Wallet, txn *wallet.Transaction) error {
			completed++
			assert.Equal(t, wallet.TypeDebit, txn.Type)
			return nil
		},
	}
	svc := NewService(store, notification.Noop{})

	got, err := svc.Complete(context.Background(), adminActor(), r.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, refund.StatusCompleted, got.Status)
	assert.Equal(t, order.StatusRefunded, o.Status)
	assert.Equal(t, payment.StatusRefunded, p.Status)
	assert.Equal(t, "228.50", w.Balance.StringFixed())
}

func TestCompleteInsufficientSellerBalance(t *testing.T) {
	o := deliveredOrder()
	p := completedPayment(o)
	w := wallet.New(o.SellerID, "BDT")

	r := &refund.Refund{
		ID:        uuid.New(),
		OrderID:   o.ID,
		PaymentID: p.ID,
		Amount:    money.MustFromString("100.00", "BDT"),
		Status:    refund.StatusApproved,
	}
	store := &mockStore{
		findRefundByIDFn: func(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
			return r, nil
		},
		findOrderByIDFn: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return p, nil
		},
		findWalletByUserFn: func(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
			return w, nil
		},
	}
	svc := NewService(store, notification.Noop{})

	_, err := svc.Complete(context.Background(), adminActor(), r.ID)
	assert.Equal(t, wallet.ErrInsufficientBalance, err)
	assert.Equal(t, "0.00", w.Balance.StringFixed())
}

func TestCompleteRequiresApproved(t *testing.T) {
	o := deliveredOrder()
	r := &refund.Refund{ID: uuid.New(), OrderID: o.ID, Status: refund.StatusPending}
	store := &mockStore{
		findRefundByIDFn: func(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
			return r, nil
		},
		findOrderByIDFn: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return completedPayment(o), nil
		},
		findWalletByUserFn: func(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
			return wallet.New(o.SellerID, "BDT"), nil
		},
	}
	svc := NewService(store, notification.Noop{})

	_, err := svc.Complete(context.Background(), adminActor(), r.ID)
	assert.Equal(t, refund.ErrInvalidStateTransition, err)
}
