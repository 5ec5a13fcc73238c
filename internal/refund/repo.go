package refund

import (
	"context"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/refund"
	"github.com/automart/settlement/internal/types/wallet"
)

type Store interface {
	CreateRefund(ctx context.Context, r *refund.Refund) error
	FindRefundByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error)
	ListRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]refund.Refund, error)
	UpdateRefund(ctx context.Context, r *refund.Refund) error

	FindOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error)
	FindWalletByUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)

	CompleteRefund(ctx context.Context, r *refund.Refund, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error
}
