package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"

	"github.com/rentals/backend/internal/domain/finance"
)

// HMACSignatureVerifier checks the hex HMAC-SHA512 Paystack puts in the
// x-paystack-signature header
type HMACSignatureVerifier struct {
	provider string
	secret   []byte
}

// NewHMACSignatureVerifier creates a verifier for provider keyed by secret
func NewHMACSignatureVerifier(provider, secret string) *HMACSignatureVerifier {
	if provider == "" {
		provider = finance.PaymentProviderPaystack
	}
	return &HMACSignatureVerifier{provider: provider, secret: []byte(secret)}
}

// Provider returns the provider name
func (v *HMACSignatureVerifier) Provider() string {
	return v.provider
}

// Verify compares signature with the expected digest in constant time.
// An empty secret rejects everything.
func (v *HMACSignatureVerifier) Verify(payload []byte, signature string) error {
	if len(v.secret) == 0 {
		return finance.ErrInvalidSignature.WithMessage("Webhook secret is not configured")
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return finance.ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(v.secret, payload)) {
		return finance.ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA512 of payload
func Sign(secret, payload []byte) []byte {
	mac := hmac.New(sha512.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignHex returns the header value a sender would attach to payload
func SignHex(secret string, payload []byte) string {
	return hex.EncodeToString(Sign([]byte(secret), payload))
}

var _ finance.SignatureVerifier = (*HMACSignatureVerifier)(nil)
