package wallet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/automart/settlement/internal/money"
)

func TestCredit(t *testing.T) {
	w := New(uuid.New(), "BDT")

	txn, err := w.Credit(money.MustFromString("328.50", "BDT"), "sale of order ORD-1")
	assert.NoError(t, err)
	assert.Equal(t, "328.50", w.Balance.StringFixed())
	assert.Equal(t, "328.50", w.TotalEarned.StringFixed())
	assert.Equal(t, "0.00", w.TotalSpent.StringFixed())
	assert.Equal(t, TypeCredit, txn.Type)
	assert.Equal(t, w.ID, txn.WalletID)
	assert.Equal(t, "sale of order ORD-1", txn.Description)
}

func TestCreditNonPositive(t *testing.T) {
	w := New(uuid.New(), "BDT")

	_, err := w.Credit(money.Zero("BDT"), "nothing")
	assert.Equal(t, ErrNonPositiveAmount, err)

	_, err = w.Credit(money.MustFromString("-5.00", "BDT"), "negative")
	assert.Equal(t, ErrNonPositiveAmount, err)
	assert.Equal(t, "0.00", w.Balance.StringFixed())
}

func TestDebit(t *testing.T) {
	w := New(uuid.New(), "BDT")
	_, err := w.Credit(money.MustFromString("100.00", "BDT"), "sale")
	assert.NoError(t, err)

	txn, err := w.Debit(money.MustFromString("40.00", "BDT"), "refund for order ORD-1")
	assert.NoError(t, err)
	assert.Equal(t, "60.00", w.Balance.StringFixed())
	assert.Equal(t, "100.00", w.TotalEarned.StringFixed())
	assert.Equal(t, "40.00", w.TotalSpent.StringFixed())
	assert.Equal(t, TypeDebit, txn.Type)
}

func TestDebitInsufficientBalance(t *testing.T) {
	w := New(uuid.New(), "BDT")
	_, err := w.Credit(money.MustFromString("30.00", "BDT"), "sale")
	assert.NoError(t, err)

	txn, err := w.Debit(money.MustFromString("50.00", "BDT"), "refund")
	assert.Equal(t, ErrInsufficientBalance, err)
	assert.Nil(t, txn)

	// A failed debit leaves every counter untouched.
	assert.Equal(t, "30.00", w.Balance.StringFixed())
	assert.Equal(t, "0.00", w.TotalSpent.StringFixed())
}

func TestBalanceEqualsEarnedMinusSpent(t *testing.T) {
	w := New(uuid.New(), "BDT")

	amounts := []struct {
		credit bool
		amount string
	}{
		{true, "100.00"},
		{true, "250.75"},
		{false, "80.25"},
		{true, "10.00"},
		{false, "100.00"},
	}
	for _, a := range amounts {
		var err error
		if a.credit {
			_, err = w.Credit(money.MustFromString(a.amount, "BDT"), "credit")
		} else {
			_, err = w.Debit(money.MustFromString(a.amount, "BDT"), "debit")
		}
		assert.NoError(t, err)

		expected, serr := w.TotalEarned.Sub(w.TotalSpent)
		assert.NoError(t, serr)
		assert.True(t, w.Balance.Equal(expected))
	}

	assert.Equal(t, "180.50", w.Balance.StringFixed())
}

func TestReplayingTransactionLogReproducesBalance(t *testing.T) {
	w := New(uuid.New(), "BDT")

	var log []*Transaction
	for _, a := range []struct {
		credit bool
		amount string
	}{
		{true, "328.50"},
		{true, "41.25"},
		{false, "100.00"},
		{true, "0.01"},
		{false, "69.76"},
	} {
		var txn *Transaction
		var err error
		if a.credit {
			txn, err = w.Credit(money.MustFromString(a.amount, "BDT"), "credit")
		} else {
			txn, err = w.Debit(money.MustFromString(a.amount, "BDT"), "debit")
		}
		assert.NoError(t, err)
		log = append(log, txn)
	}

	// Replaying the full log from zero rebuilds the cached balance exactly.
	replayed := money.Zero("BDT")
	for _, txn := range log {
		var err error
		switch txn.Type {
		case TypeCredit:
			replayed, err = replayed.Add(txn.Amount)
		case TypeDebit:
			replayed, err = replayed.Sub(txn.Amount)
		}
		assert.NoError(t, err)
	}
	assert.True(t, w.Balance.Equal(replayed))
	assert.Equal(t, "200.00", replayed.StringFixed())
}
