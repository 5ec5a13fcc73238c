package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/wallet"
)

// Store is everything the orchestrator touches: payments, the orders they
// settle, and the seller wallets they credit.
type Store interface {
	CreatePayment(ctx context.Context, p *payment.Payment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error)
	UpdatePayment(ctx context.Context, p *payment.Payment) error

	FindOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	FindOrderByNumber(ctx context.Context, number string) (*order.Order, error)

	CreateWallet(ctx context.Context, w *wallet.Wallet) error
	FindWalletByUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)

	Settle(ctx context.Context, o *order.Order, p *payment.Payment, w *wallet.Wallet, t *wallet.Transaction) error
}
