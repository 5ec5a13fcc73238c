package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/types/wallet"
)

type WalletRepository interface {
	CreateWallet(ctx context.Context, w *wallet.Wallet) error
	FindWalletByUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	ApplyWalletChange(ctx context.Context, w *wallet.Wallet, t *wallet.Transaction) error
	ListWalletTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error)
}
