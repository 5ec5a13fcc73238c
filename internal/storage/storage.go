package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/types/discount"
	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/refund"
	"github.com/automart/settlement/internal/types/wallet"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a version-checked update lost a race; the caller saw
	// stale state and must reload before retrying.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate is a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
	// UpdateOrder is version checked; a stale version returns ErrConflict.
	UpdateOrder(ctx context.Context, o *order.Order) error
}

type PaymentRepository interface {
	// CreatePayment returns ErrDuplicate when the order already has a payment.
	CreatePayment(ctx context.Context, p *payment.Payment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error)
	UpdatePayment(ctx context.Context, p *payment.Payment) error
}

type RefundRepository interface {
	CreateRefund(ctx context.Context, r *refund.Refund) error
	FindRefundByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error)
	ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]refund.Refund, error)
	UpdateRefund(ctx context.Context, r *refund.Refund) error
}

type WalletRepository interface {
	CreateWallet(ctx context.Context, w *wallet.Wallet) error
	FindWalletByUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	// ApplyWalletChange persists the wallet row and its transaction record in
	// one database transaction so neither can exist without the other.
	ApplyWalletChange(ctx context.Context, w *wallet.Wallet, t *wallet.Transaction) error
	ListWalletTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error)
}

type DiscountRepository interface {
	FindDiscountByCode(ctx context.Context, code string) (*discount.Discount, error)
	CountDiscountUsageByUser(ctx context.Context, discountID, userID uuid.UUID) (int64, error)
	// ApplyDiscountUsage increments the global counter (guarded against
	// max_uses in SQL) and records the per-user usage row in one transaction.
	// The usage row is only inserted while the user stays under
	// maxUsesPerUser; either guard failing yields ErrConflict.
	ApplyDiscountUsage(ctx context.Context, discountID, userID uuid.UUID, maxUsesPerUser int64) error
}

// SettlementRepository holds the composite mutations that must be atomic
// across entities.
type SettlementRepository interface {
	// Settle completes the payment, confirms the order and credits the seller
	// wallet in a single database transaction. Every row update is version
	// checked; any lost race rolls the whole settlement back with ErrConflict.
	Settle(ctx context.Context, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error
	// CompleteRefund finalizes a refund, marks the order and payment refunded
	// and debits the seller wallet, atomically.
	CompleteRefund(ctx context.Context, r *refund.Refund, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error
}

type Storage interface {
	OrderRepository
	PaymentRepository
	RefundRepository
	WalletRepository
	DiscountRepository
	SettlementRepository

	Ping(ctx context.Context) error
	Close() error
}
