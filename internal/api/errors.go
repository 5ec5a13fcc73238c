// Package api holds the JSON error envelope shared by all handlers. Every
// error response carries a stable machine-readable code so clients can build
// retry logic on codes instead of messages.
package api

import (
	"encoding/json"
	"net/http"
)

const (
	CodeValidation          = "validation_error"
	CodeInvalidTransition   = "invalid_state_transition"
	CodeDuplicatePayment    = "duplicate_payment"
	CodeOrderNotFound       = "order_not_found"
	CodePaymentNotFound     = "payment_not_found"
	CodeRefundNotFound      = "refund_not_found"
	CodeWalletNotFound      = "wallet_not_found"
	CodeDiscountNotFound    = "discount_not_found"
	CodeInsufficientBalance = "insufficient_balance"
	CodeExceedsOrderTotal   = "exceeds_order_total"
	CodeGatewayTimeout      = "gateway_timeout"
	CodeGatewayRejected     = "gateway_rejected"
	CodeGatewayUnreachable  = "gateway_unreachable"
	CodeValidationFailed    = "gateway_validation_failed"
	CodePermissionDenied    = "permission_denied"
	CodeConflict            = "conflict"
	CodeInternal            = "internal_error"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Retryable is set for transient failures such as gateway timeouts.
	Retryable bool `json:"retryable,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, ErrorResponse{Code: code, Message: message})
}

func WriteRetryableError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, ErrorResponse{Code: code, Message: message, Retryable: true})
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
