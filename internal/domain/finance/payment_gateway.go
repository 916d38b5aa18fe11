package finance

import (
	"context"

	"github.com/rentals/backend/internal/domain/shared/valueobject"
)

// PaymentProviderPaystack is the provider name for Paystack webhooks
const PaymentProviderPaystack = "paystack"

// SignatureVerifier authenticates a raw webhook body against the header
// signature. It returns ErrInvalidSignature on mismatch.
type SignatureVerifier interface {
	Provider() string
	Verify(payload []byte, signature string) error
}

// GatewayTransactionStatus is the gateway's view of a charge
type GatewayTransactionStatus string

const (
	GatewayTransactionSuccess   GatewayTransactionStatus = "success"
	GatewayTransactionFailed    GatewayTransactionStatus = "failed"
	GatewayTransactionAbandoned GatewayTransactionStatus = "abandoned"
	GatewayTransactionPending   GatewayTransactionStatus = "pending"
)

// GatewayTransaction is the result of asking the gateway about a reference
type GatewayTransaction struct {
	Reference   string
	Status      GatewayTransactionStatus
	AmountMinor int64
	Currency    valueobject.Currency
}

// TransactionVerifier confirms a charge with the gateway before money is
// credited. Implementations bound the call with a timeout and report an
// expired call as ErrOutcomeUnknown, never as a failed charge.
type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*GatewayTransaction, error)
}
