package finance

import "github.com/rentals/backend/internal/domain/shared"

// Settlement error taxonomy. Callers match with errors.Is; messages may be
// specialised with WithMessage without breaking the match.
var (
	ErrInsufficientFunds  = shared.NewDomainError("INSUFFICIENT_FUNDS", "Wallet balance is insufficient for this debit")
	ErrWalletInactive     = shared.NewDomainError("WALLET_INACTIVE", "Wallet is not active")
	ErrInvalidAmount      = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrCurrencyMismatch   = shared.NewDomainError("CURRENCY_MISMATCH", "Amount currency does not match")
	ErrAlreadySettled     = shared.NewDomainError("ALREADY_SETTLED", "Invoice is already paid")
	ErrExceedsOutstanding = shared.NewDomainError("EXCEEDS_OUTSTANDING", "Payment amount exceeds invoice outstanding")
	ErrInvoiceCancelled   = shared.NewDomainError("INVOICE_CANCELLED", "Invoice is cancelled")
	ErrAlreadyRefunded    = shared.NewDomainError("ALREADY_REFUNDED", "Transaction already has a refund")
	ErrInvalidSignature   = shared.NewDomainError("INVALID_SIGNATURE", "Webhook signature verification failed")
	ErrMalformedEvent     = shared.NewDomainError("MALFORMED_EVENT", "Webhook payload does not match a known schema")
	ErrOutcomeUnknown     = shared.NewDomainError("OUTCOME_UNKNOWN", "Gateway did not answer in time; outcome unknown")
	ErrInvalidTransition  = shared.NewDomainError("INVALID_STATE", "Status transition not allowed")
)
