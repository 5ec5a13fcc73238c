package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/automart/settlement/internal/gateway"
	"github.com/automart/settlement/internal/notification"
	"github.com/automart/settlement/internal/storage"
	"github.com/automart/settlement/internal/types/order"
	"github.com/automart/settlement/internal/types/payment"
	"github.com/automart/settlement/internal/types/wallet"
)

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGatewaySuccessCallback(t *testing.T) {
	o := pendingOrder()
	p := &payment.Payment{ID: uuid.New(), OrderID: o.ID, Status: payment.StatusProcessing, Amount: o.Total}

	store := &mockStore{
		findOrderByNumberFn: func(ctx context.Context, number string) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return p, nil
		},
		findWalletByUserFn: func(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
			return wallet.New(o.SellerID, "BDT"), nil
		},
		settleFn: func(ctx context.Context, o *order.Order, p *payment.Payment, w *wallet.Wallet, txn *wallet.Transaction) error {
			return nil
		},
	}
	gw := &mockGateway{
		validateFn: func(ctx context.Context, refID string) (*gateway.Validation, error) {
			return &gateway.Validation{Valid: true}, nil
		},
	}
	h := NewHandler(NewService(store, gw, notification.Noop{}, decimal.NewFromInt(10)))

	form := url.Values{}
	form.Set("tran_id", o.Number)
	form.Set("val_id", "VAL-1")
	form.Set("status", "VALID")

	rec := postForm(t, h.CallbackRoutes(), "/success", form)
	assert.Equal(t, http.StatusOK, rec.Code)

	var got payment.Payment
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, payment.StatusCompleted, got.Status)
	assert.Equal(t, "VAL-1", got.GatewayTxnID)
	// The raw callback payload is preserved in the payment record.
	assert.Contains(t, string(p.GatewayResponse), `"tran_id"`)
}

func TestGatewaySuccessUnknownOrder(t *testing.T) {
	store := &mockStore{
		findOrderByNumberFn: func(ctx context.Context, number string) (*order.Order, error) {
			return nil, storage.ErrNotFound
		},
	}
	h := NewHandler(NewService(store, &mockGateway{}, notification.Noop{}, decimal.NewFromInt(10)))

	form := url.Values{}
	form.Set("tran_id", "ORD-UNKNOWN")

	rec := postForm(t, h.CallbackRoutes(), "/success", form)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "order_not_found")
}

func TestGatewayFailCallback(t *testing.T) {
	o := pendingOrder()
	p := &payment.Payment{ID: uuid.New(), OrderID: o.ID, Status: payment.StatusProcessing}
	store := &mockStore{
		findOrderByNumberFn: func(ctx context.Context, number string) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return p, nil
		},
		updatePaymentFn: func(ctx context.Context, p *payment.Payment) error {
			return nil
		},
	}
	h := NewHandler(NewService(store, &mockGateway{}, notification.Noop{}, decimal.NewFromInt(10)))

	form := url.Values{}
	form.Set("tran_id", o.Number)
	form.Set("error_description", "card declined")

	rec := postForm(t, h.CallbackRoutes(), "/fail", form)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payment.StatusFailed, p.Status)
	assert.Equal(t, "card declined", p.ErrorMessage)
}

func TestGatewayTimeoutIsRetryable(t *testing.T) {
	o := pendingOrder()
	p := &payment.Payment{ID: uuid.New(), OrderID: o.ID, Status: payment.StatusProcessing, Amount: o.Total}
	store := &mockStore{
		findOrderByNumberFn: func(ctx context.Context, number string) (*order.Order, error) {
			return o, nil
		},
		findPaymentByOrderFn: func(ctx context.Context, orderID uuid.UUID) (*payment.Payment, error) {
			return p, nil
		},
	}
	gw := &mockGateway{
		validateFn: func(ctx context.Context, refID string) (*gateway.Validation, error) {
			return nil, gateway.ErrTimeout
		},
	}
	h := NewHandler(NewService(store, gw, notification.Noop{}, decimal.NewFromInt(10)))

	form := url.Values{}
	form.Set("tran_id", o.Number)
	form.Set("val_id", "VAL-1")

	rec := postForm(t, h.CallbackRoutes(), "/success", form)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)
}

func TestParseCallback(t *testing.T) {
	form := url.Values{}
	form.Set("tran_id", "ORD-AB12CD34")
	form.Set("val_id", "VAL-1")
	form.Set("status", "VALID")
	form.Set("bank_tran_id", "BANK-9")

	req := httptest.NewRequest(http.MethodPost, "/success", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	cb, err := parseCallback(req)
	assert.NoError(t, err)
	assert.Equal(t, "ORD-AB12CD34", cb.TranID)
	assert.Equal(t, "VAL-1", cb.ValID)
	assert.Equal(t, "VALID", cb.Status)
	// Fields outside the known set survive in the raw payload.
	assert.Contains(t, string(cb.Raw), "BANK-9")
}
