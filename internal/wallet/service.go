package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/money"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/wallet"
)

const historyLimit = 50

type WalletDTO struct {
	Wallet       *wallet.Wallet       `json:"wallet"`
	Transactions []wallet.Transaction `json:"transactions"`
}

type Service struct {
	repo WalletRepository
}

func NewService(repo WalletRepository) *Service {
	return &Service{repo: repo}
}

// GetMine returns the caller's wallet with recent history, creating an empty
// wallet on first access.
func (s *Service) GetMine(ctx context.Context, userID uuid.UUID, currency string) (*WalletDTO, error) {
	w, err := s.repo.FindWalletByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		w = wallet.New(userID, currency)
		if cerr := s.repo.CreateWallet(ctx, w); errors.Is(cerr, storage.ErrDuplicate) {
			// Lost the creation race; the other writer's row wins.
			if w, err = s.repo.FindWalletByUser(ctx, userID); err != nil {
				return nil, err
			}
		} else if cerr != nil {
			return nil, cerr
		}
	} else if err != nil {
		return nil, err
	}

	txns, err := s.repo.ListWalletTransactions(ctx, w.ID, historyLimit)
	if err != nil {
		return nil, err
	}
	return &WalletDTO{Wallet: w, Transactions: txns}, nil
}

// Credit adds funds to a user's wallet; the wallet row and transaction record
// land in one database transaction.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount money.Money, description string) (*wallet.Transaction, error) {
	w, err := s.repo.FindWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	t, err := w.Credit(amount, description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApplyWalletChange(ctx, w, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Debit removes funds; an amount above the balance fails with
// wallet.ErrInsufficientBalance and writes nothing.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount money.Money, description string) (*wallet.Transaction, error) {
	w, err := s.repo.FindWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	t, err := w.Debit(amount, description)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApplyWalletChange(ctx, w, t); err != nil {
		return nil, err
	}
	return t, nil
}
