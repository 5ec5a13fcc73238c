package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/money"
)

type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
)

// Wallet holds a user's running balance. The balance is a cached value:
// replaying the transaction log from zero must reproduce it exactly,
// and balance = total_earned - total_spent at all times.
type Wallet struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`

	Balance     money.Money `db:"balance" json:"balance"`
	TotalEarned money.Money `db:"total_earned" json:"total_earned"`
	TotalSpent  money.Money `db:"total_spent" json:"total_spent"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Version int64 `db:"version" json:"-"`
}

// Transaction is the immutable audit record for one balance change.
type Transaction struct {
	ID       uuid.UUID `db:"id" json:"id"`
	WalletID uuid.UUID `db:"wallet_id" json:"wallet_id"`

	Type        TransactionType `db:"type" json:"type"`
	Amount      money.Money     `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`

	OrderID   *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	PaymentID *uuid.UUID `db:"payment_id" json:"payment_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func New(userID uuid.UUID, currency string) *Wallet {
	return &Wallet{
		ID:          uuid.New(),
		UserID:      userID,
		Balance:     money.Zero(currency),
		TotalEarned: money.Zero(currency),
		TotalSpent:  money.Zero(currency),
		CreatedAt:   time.Now().UTC(),
	}
}

// Credit increases the balance and returns the transaction record that must be
// persisted atomically with the wallet row.
func (w *Wallet) Credit(amount money.Money, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	balance, err := w.Balance.Add(amount)
	if err != nil {
		return nil, err
	}
	earned, err := w.TotalEarned.Add(amount)
	if err != nil {
		return nil, err
	}
	w.Balance = balance
	w.TotalEarned = earned
	return &Transaction{
		ID:          uuid.New(),
		WalletID:    w.ID,
		Type:        TypeCredit,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Debit decreases the balance. A debit that would go negative fails with
// ErrInsufficientBalance and mutates nothing.
func (w *Wallet) Debit(amount money.Money, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if w.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	balance, err := w.Balance.Sub(amount)
	if err != nil {
		return nil, err
	}
	spent, err := w.TotalSpent.Add(amount)
	if err != nil {
		return nil, err
	}
	w.Balance = balance
	w.TotalSpent = spent
	return &Transaction{
		ID:          uuid.New(),
		WalletID:    w.ID,
		Type:        TypeDebit,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
