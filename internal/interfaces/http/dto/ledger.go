package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CreateWalletRequest opens (or returns) an owner's wallet in a currency
// @Description Request body for opening a wallet
type CreateWalletRequest struct {
	OwnerID  string `json:"owner_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Currency string `json:"currency" binding:"omitempty,len=3" example:"NGN"`
}

// PostingRequest credits or debits a wallet. Reference makes the posting
// idempotent per wallet.
// @Description Request body for a wallet credit or debit
type PostingRequest struct {
	Amount      string `json:"amount" binding:"required" example:"1000.00"`
	Currency    string `json:"currency" binding:"omitempty,len=3" example:"NGN"`
	Reference   string `json:"reference" binding:"required,max=200,ledger_ref" example:"TOPUP-20261018-001"`
	Description string `json:"description" binding:"max=500" example:"Wallet top-up"`
}

// CreateInvoiceRequest bills a tenant. due_date is YYYY-MM-DD or RFC 3339.
// @Description Request body for creating an invoice
type CreateInvoiceRequest struct {
	TenantID    string `json:"tenant_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	ApartmentID string `json:"apartment_id" binding:"omitempty,uuid" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	PropertyID  string `json:"property_id" binding:"omitempty,uuid" example:"6ba7b811-9dad-11d1-80b4-00c04fd430c8"`
	Kind        string `json:"kind" binding:"omitempty,oneof=rent late_fee charge" example:"rent" enums:"rent,late_fee,charge"`
	Amount      string `json:"amount" binding:"required" example:"5000.00"`
	Currency    string `json:"currency" binding:"omitempty,len=3" example:"NGN"`
	DueDate     string `json:"due_date" binding:"required" example:"2026-11-01"`
	Description string `json:"description" binding:"max=500" example:"November rent"`
}

// RecordPaymentRequest applies money received outside the wallet ledger
// @Description Request body for recording an external payment
type RecordPaymentRequest struct {
	PayerID      string            `json:"payer_id" binding:"omitempty,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount       string            `json:"amount" binding:"required" example:"2500.00"`
	Currency     string            `json:"currency" binding:"omitempty,len=3" example:"NGN"`
	Method       string            `json:"method" binding:"required,oneof=gateway bank_transfer cash" example:"bank_transfer" enums:"gateway,bank_transfer,cash"`
	Reference    string            `json:"reference" binding:"omitempty,max=200,ledger_ref" example:"TRF-20261018-001"`
	Channel      string            `json:"channel" binding:"max=50" example:"bank"`
	Confirmation map[string]string `json:"confirmation"`
}

// PayFromWalletRequest settles an invoice from a wallet
// @Description Request body for paying an invoice from a wallet
type PayFromWalletRequest struct {
	WalletID  string `json:"wallet_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount    string `json:"amount" binding:"required" example:"5000.00"`
	Currency  string `json:"currency" binding:"omitempty,len=3" example:"NGN"`
	Reference string `json:"reference" binding:"required,max=150,ledger_ref" example:"INVPAY-20261018-001"`
}

// AllocatePrepaymentsRequest draws a tenant's prepaid credit into one of
// their open invoices. TenantID must own the invoice.
// @Description Request body for allocating prepaid credit to an invoice
type AllocatePrepaymentsRequest struct {
	TenantID string `json:"tenant_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// FundPrepaymentRequest adds pre-funded credit for a tenant
// @Description Request body for funding a tenant prepayment
type FundPrepaymentRequest struct {
	TenantID  string `json:"tenant_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount    string `json:"amount" binding:"required" example:"15000.00"`
	Currency  string `json:"currency" binding:"omitempty,len=3" example:"NGN"`
	Reference string `json:"reference" binding:"omitempty,max=200,ledger_ref" example:"PRE-20261018-001"`
}

// CreateRefundRequest opens a refund for a wallet transaction. Amount
// defaults to the full transaction amount and charge to zero; both are in
// currency, which must match the transaction's.
// @Description Request body for opening a refund
type CreateRefundRequest struct {
	TransactionID string `json:"transaction_id" binding:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Amount        string `json:"amount" example:"1000.00"`
	Charge        string `json:"charge" example:"50.00"`
	Currency      string `json:"currency" binding:"omitempty,len=3" example:"NGN"`
	Reason        string `json:"reason" binding:"max=500" example:"Duplicate charge"`
}

// RejectRefundRequest closes a pending refund
// @Description Request body for rejecting a refund
type RejectRefundRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"Charge was valid"`
}

// UpsertFeeConfigRequest replaces a channel's active fee rule
// @Description Request body for a channel fee rule
type UpsertFeeConfigRequest struct {
	Channel     string `json:"channel" binding:"required,max=50" example:"card"`
	Percentage  string `json:"percentage" binding:"required" example:"1.5"`
	FixedAmount string `json:"fixed_amount" example:"100.00"`
}

// UpsertLateFeeRuleRequest replaces a property's late fee policy
// @Description Request body for a property late fee rule
type UpsertLateFeeRuleRequest struct {
	Enabled     bool   `json:"enabled" example:"true"`
	GraceDays   int    `json:"grace_days" binding:"min=0,max=365" example:"5"`
	Percentage  string `json:"percentage" example:"10"`
	FixedAmount string `json:"fixed_amount" example:"0.00"`
}

// FeeQuoteRequest asks what a channel would charge on an amount
type FeeQuoteRequest struct {
	Channel  string `form:"channel" binding:"required"`
	Amount   string `form:"amount" binding:"required"`
	Currency string `form:"currency" binding:"omitempty,len=3"`
}

// ParseMoney reads a decimal amount in currency, or in fallback when
// currency is empty
func ParseMoney(amount, currency string, fallback valueobject.Currency) (valueobject.Money, error) {
	c := fallback
	if currency != "" {
		c = valueobject.Currency(strings.ToUpper(currency))
	}
	if !c.IsValid() {
		return valueobject.Money{}, shared.ErrInvalidInput.WithMessage("Unsupported currency: " + string(c))
	}
	m, err := valueobject.NewMoneyFromString(strings.TrimSpace(amount), c)
	if err != nil {
		return valueobject.Money{}, shared.ErrInvalidInput.WithMessage("Invalid amount: " + amount)
	}
	if !m.IsWholeMinor() {
		return valueobject.Money{}, shared.ErrInvalidInput.WithMessagef("Amount %s has more than 2 decimal places", amount)
	}
	return m, nil
}

// ParseDecimal reads an optional decimal; empty means zero
func ParseDecimal(field, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, shared.ErrInvalidInput.WithMessage("Invalid " + field + ": " + value)
	}
	return d, nil
}

// ParseOptionalUUID reads an id that may be omitted
func ParseOptionalUUID(value string) uuid.UUID {
	if value == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// ParseDueDate accepts a calendar date or an RFC 3339 timestamp
func ParseDueDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, shared.ErrInvalidInput.WithMessage("due_date must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}
