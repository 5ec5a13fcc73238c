package payment

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/automart/settlement/internal/money"
)

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
	StatusRefunded   PaymentStatus = "refunded"
)

var ErrInvalidStateTransition = errors.New("invalid state transition")

// Payment is the single payment record for an order. The raw gateway payload
// is stored verbatim for audit and dispute handling.
type Payment struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OrderID uuid.UUID `db:"order_id" json:"order_id"`

	Method string      `db:"method" json:"method"`
	Amount money.Money `db:"amount" json:"amount"`

	Status        PaymentStatus `db:"status" json:"status"`
	TransactionID string        `db:"transaction_id" json:"transaction_id"`
	GatewayTxnID  string        `db:"gateway_txn_id" json:"gateway_txn_id,omitempty"`
	SessionID     string        `db:"session_id" json:"session_id,omitempty"`

	GatewayResponse json.RawMessage `db:"gateway_response" json:"gateway_response,omitempty"`
	ErrorMessage    string          `db:"error_message" json:"error_message,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`

	Version int64 `db:"version" json:"-"`
}

func (p *Payment) MarkProcessing() error {
	if p.Status != StatusPending && p.Status != StatusFailed {
		return ErrInvalidStateTransition
	}
	p.Status = StatusProcessing
	return nil
}

// MarkCompleted records the validated gateway transaction id and the raw
// callback payload.
func (p *Payment) MarkCompleted(gatewayTxnID string, raw json.RawMessage) error {
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return ErrInvalidStateTransition
	}
	now := time.Now().UTC()
	p.Status = StatusCompleted
	p.GatewayTxnID = gatewayTxnID
	p.GatewayResponse = raw
	p.ProcessedAt = &now
	return nil
}

func (p *Payment) MarkFailed(errMessage string, raw json.RawMessage) error {
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return ErrInvalidStateTransition
	}
	p.Status = StatusFailed
	p.ErrorMessage = errMessage
	p.GatewayResponse = raw
	return nil
}

func (p *Payment) MarkCancelled(raw json.RawMessage) error {
	if p.Status != StatusPending {
		return ErrInvalidStateTransition
	}
	p.Status = StatusCancelled
	p.GatewayResponse = raw
	return nil
}

// MarkRefunded is set when a refund against this payment completes.
func (p *Payment) MarkRefunded() error {
	if p.Status != StatusCompleted {
		return ErrInvalidStateTransition
	}
	p.Status = StatusRefunded
	return nil
}
