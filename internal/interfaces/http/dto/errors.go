package dto

import (
	"net/http"
	"strings"

	"github.com/rentals/backend/internal/domain/shared"
)

// Transport error codes. Domain errors keep the code of their
// shared.DomainError sentinel.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
)

// Ledger and settlement codes
const (
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeWalletInactive      = "WALLET_INACTIVE"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeCurrencyMismatch    = "CURRENCY_MISMATCH"
	ErrCodeAlreadySettled      = "ALREADY_SETTLED"
	ErrCodeExceedsOutstanding  = "EXCEEDS_OUTSTANDING"
	ErrCodeInvoiceCancelled    = "INVOICE_CANCELLED"
	ErrCodeAlreadyRefunded     = "ALREADY_REFUNDED"
	ErrCodeInvalidSignature    = "INVALID_SIGNATURE"
	ErrCodeMalformedEvent      = "MALFORMED_EVENT"
	ErrCodeOutcomeUnknown      = "OUTCOME_UNKNOWN"
	ErrCodeInvalidState        = shared.CodeInvalidState
	ErrCodeNotFound            = shared.CodeNotFound
	ErrCodeAlreadyExists       = shared.CodeAlreadyExists
	ErrCodeInvalidInput        = shared.CodeInvalidInput
	ErrCodeConcurrencyConflict = shared.CodeConcurrencyConflict
)

// Job trigger codes
const (
	ErrCodeJobNotFound       = "JOB_NOT_FOUND"
	ErrCodeJobAlreadyRunning = "JOB_ALREADY_RUNNING"
	ErrCodeJobFailed         = "JOB_FAILED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	// Money movement rejected by a business rule -> 422
	ErrCodeInsufficientFunds:  http.StatusUnprocessableEntity,
	ErrCodeExceedsOutstanding: http.StatusUnprocessableEntity,
	ErrCodeWalletInactive:     http.StatusUnprocessableEntity,
	ErrCodeCurrencyMismatch:   http.StatusUnprocessableEntity,
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,

	// Already happened -> 409
	ErrCodeAlreadySettled:      http.StatusConflict,
	ErrCodeAlreadyRefunded:     http.StatusConflict,
	ErrCodeInvoiceCancelled:    http.StatusConflict,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeJobAlreadyRunning:   http.StatusConflict,

	// Webhook rejections -> 400, so the sender sees a permanent failure
	ErrCodeInvalidSignature: http.StatusBadRequest,
	ErrCodeMalformedEvent:   http.StatusBadRequest,
	ErrCodeInvalidAmount:    http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,

	// The sender must redeliver
	ErrCodeOutcomeUnknown: http.StatusServiceUnavailable,

	ErrCodeNotFound:    http.StatusNotFound,
	ErrCodeJobNotFound: http.StatusNotFound,
	ErrCodeJobFailed:   http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code. Domain
// validation codes (INVALID_*) without an explicit entry are 400;
// everything else unknown is 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
