package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/wallet"
)

type mockRepo struct {
	createWalletFn           func(ctx context.Context, w *wallet.Wallet) error
	findWalletByUserFn       func(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	applyWalletChangeFn      func(ctx context.Context, w *wallet.Wallet, t *wallet.Transaction) error
	listWalletTransactionsFn func(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error)
}

func (m *mockRepo) CreateWallet(ctx context.Context, w *wallet.Wallet) error {
	return m.createWalletFn(ctx, w)
}
func (m *mockRepo) FindWalletByUser(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	return m.findWalletByUserFn(ctx, userID)
}
func (m *mockRepo) ApplyWalletChange(ctx context.Context, w *wallet.Wallet, t *wallet.Transaction) error {
	return m.applyWalletChangeFn(ctx, w, t)
}
func (m *mockRepo) ListWalletTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error) {
	return m.listWalletTransactionsFn(ctx, walletID, limit)
}

func TestGetMineCreatesOnFirstAccess(t *testing.T) {
	userID := uuid.New()
	var created *wallet.Wallet
	repo := &mockRepo{
		findWalletByUserFn: func(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
			return nil, storage.ErrNotFound
		},
		createWalletFn: func(ctx context.Context, w *wallet.Wallet) error {
			created = w
			return nil
		},
		listWalletTransactionsFn: func(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error) {
			return nil, nil
		},
	}
	svc := NewService(repo)

	dto, err := svc.GetMine(context.Background(), userID, "BDT")
	assert.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, userID, dto.Wallet.UserID)
	assert.Equal(t, "0.00", dto.Wallet.Balance.StringFixed())
	assert.Empty(t, dto.Transactions)
}

func TestGetMineLosesCreationRace(t *testing.T) {
	userID := uuid.New()
	persisted := wallet.New(userID, "BDT")
	_, err := persisted.Credit(money.MustFromString("500.00", "BDT"), "sale")
	assert.NoError(t, err)

	lookups := 0
	repo := &mockRepo{
		findWalletByUserFn: func(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
			lookups++
			if lookups == 1 {
				return nil, storage.ErrNotFound
			}
			return persisted, nil
		},
		createWalletFn: func(ctx context.Context, w *wallet.Wallet) error {
			return storage.ErrDuplicate
		},
		listWalletTransactionsFn: func(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error) {
			// History must be read for the persisted row, not the local one.
			assert.Equal(t, persisted.ID, walletID)
			return nil, nil
		},
	}
	svc := NewService(repo)

	dto, err := svc.GetMine(context.Background(), userID, "BDT")
	assert.NoError(t, err)
	assert.Equal(t, persisted.ID, dto.Wallet.ID)
	assert.Equal(t, "500.00", dto.Wallet.Balance.StringFixed())
}

func TestGetMineExisting(t *testing.T) {
	userID := uuid.New()
	w := wallet.New(userID, "BDT")
	txn, err := w.Credit(money.MustFromString("50.00", "BDT"), "sale")
	assert.NoError(t, err)

	repo := &mockRepo{
		findWalletByUserFn: func(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
			return w, nil
		},
		listWalletTransactionsFn: func(ctx context.Context, walletID uuid.UUID, limit int) ([]wallet.Transaction, error) {
			assert.Equal(t, w.ID, walletID)
			assert.Equal(t, historyLimit, limit)
			return []wallet.Transaction{*txn}, nil
		},
	}
	svc := NewService(repo)

	dto, err := svc.GetMine(context.Background(), userID, "BDT")
	assert.NoError(t, err)
	assert.Equal(t, "50.00", dto.Wallet.Balance.StringFixed())
	assert.Len(t, dto.Transactions, 1)
}

func TestCredit(t *testing.T) {
	w := wallet.New(uuid.New(), "BDT")
	applied := 0
	repo := &mockRepo{
		findWalletByUserFn: func(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
			return w, nil
		},
		applyWalletChangeFn: func(ctx context.Context, w *wallet.Wallet, t *wallet.Transaction) error {
			applied++
			return nil
		},
	}
	svc := NewService(repo)

	txn, err := svc.Credit(context.Background(), w.UserID, money.MustFromString("75.00", "BDT"), "promo credit")
	assert.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, wallet.TypeCredit, txn.Type)
	assert.Equal(t, "75.00", w.Balance.StringFixed())
}

func TestDebitInsufficient(t *testing.T) {
	w := wallet.New(uuid.New(), "BDT")
	applied := 0
	repo := &mockRepo{
		findWalletByUserFn: func(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
			return w, nil
		},
		applyWalletChangeFn: func(ctx context.Context, w *wallet.Wallet, t *wallet.Transaction) error {
			applied++
			return nil
		},
	}
	svc := NewService(repo)

	_, err := svc.Debit(context.Background(), w.UserID, money.MustFromString("10.00", "BDT"), "refund")
	assert.Equal(t, wallet.ErrInsufficientBalance, err)
	// Nothing reaches storage on a failed debit.
	assert.Equal(t, 0, applied)
}
