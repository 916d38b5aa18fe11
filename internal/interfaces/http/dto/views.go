package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// WalletResponse is the API view of a wallet
type WalletResponse struct {
	ID        uuid.UUID `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	OwnerID   uuid.UUID `json:"owner_id" example:"550e8400-e29b-41d4-a716-446655440001" swaggertype:"string" format:"uuid"`
	Currency  string    `json:"currency" example:"NGN"`
	Balance   string    `json:"balance" example:"12500.00"`
	Active    bool      `json:"active" example:"true"`
	Version   int       `json:"version" example:"3"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToWalletResponse converts a wallet
func ToWalletResponse(w *finance.Wallet) WalletResponse {
	return WalletResponse{
		ID:        w.ID,
		OwnerID:   w.OwnerID,
		Currency:  string(w.Currency),
		Balance:   amount(w.Balance),
		Active:    w.Active,
		Version:   w.Version,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

// TransactionResponse is the API view of a wallet transaction
type TransactionResponse struct {
	ID           uuid.UUID  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	WalletID     uuid.UUID  `json:"wallet_id" example:"550e8400-e29b-41d4-a716-446655440002" swaggertype:"string" format:"uuid"`
	Type         string     `json:"type" example:"credit" enums:"credit,debit"`
	Amount       string     `json:"amount" example:"5000.00"`
	Currency     string     `json:"currency" example:"NGN"`
	Reference    *string    `json:"reference,omitempty" example:"TOPUP-20261018-001"`
	Status       string     `json:"status" example:"success" enums:"pending,success,failed"`
	Description  string     `json:"description,omitempty" example:"November rent"`
	BalanceAfter string     `json:"balance_after" example:"12500.00"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToTransactionResponse converts a wallet transaction
func ToTransactionResponse(t *finance.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID,
		WalletID:     t.WalletID,
		Type:         string(t.Type),
		Amount:       amount(t.Amount),
		Currency:     string(t.Currency),
		Reference:    t.Reference,
		Status:       string(t.Status),
		Description:  t.Description,
		BalanceAfter: amount(t.BalanceAfter),
		FailedAt:     t.FailedAt,
		CreatedAt:    t.CreatedAt,
	}
}

// ToTransactionResponses converts a page of transactions
func ToTransactionResponses(items []finance.WalletTransaction) []TransactionResponse {
	out := make([]TransactionResponse, len(items))
	for i := range items {
		out[i] = ToTransactionResponse(&items[i])
	}
	return out
}

// PostingResponse reports a credit or debit. Created is false when the
// reference had already been posted.
type PostingResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Created     bool                `json:"created" example:"true"`
}

// InvoiceResponse is the API view of an invoice
type InvoiceResponse struct {
	ID              uuid.UUID  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	TenantID        uuid.UUID  `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440001" swaggertype:"string" format:"uuid"`
	ApartmentID     uuid.UUID  `json:"apartment_id" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8" swaggertype:"string" format:"uuid"`
	PropertyID      uuid.UUID  `json:"property_id" example:"6ba7b811-9dad-11d1-80b4-00c04fd430c8" swaggertype:"string" format:"uuid"`
	Kind            string     `json:"kind" example:"rent" enums:"rent,late_fee,charge"`
	Currency        string     `json:"currency" example:"NGN"`
	Amount          string     `json:"amount" example:"5000.00"`
	Outstanding     string     `json:"outstanding" example:"2500.00"`
	Status          string     `json:"status" example:"partially_paid" enums:"pending,partially_paid,paid,overdue,cancelled"`
	DueDate         time.Time  `json:"due_date"`
	Description     string     `json:"description,omitempty" example:"November rent"`
	SourceInvoiceID *uuid.UUID `json:"source_invoice_id,omitempty" swaggertype:"string" format:"uuid"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToInvoiceResponse converts an invoice
func ToInvoiceResponse(inv *finance.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		TenantID:        inv.TenantID,
		ApartmentID:     inv.ApartmentID,
		PropertyID:      inv.PropertyID,
		Kind:            string(inv.Kind),
		Currency:        string(inv.Currency),
		Amount:          amount(inv.Amount),
		Outstanding:     amount(inv.Outstanding),
		Status:          string(inv.Status),
		DueDate:         inv.DueDate,
		Description:     inv.Description,
		SourceInvoiceID: inv.SourceInvoiceID,
		PaidAt:          inv.PaidAt,
		CreatedAt:       inv.CreatedAt,
	}
}

// ToInvoiceResponses converts a page of invoices
func ToInvoiceResponses(items []finance.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(items))
	for i := range items {
		out[i] = ToInvoiceResponse(&items[i])
	}
	return out
}

// CreateInvoiceResponse is an invoice with the prepaid credit drawn into it,
// on creation or by a later allocation
type CreateInvoiceResponse struct {
	Invoice   InvoiceResponse `json:"invoice"`
	Allocated string          `json:"allocated" example:"1500.00"`
}

// PaymentResponse is the API view of a payment
type PaymentResponse struct {
	ID           uuid.UUID         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	InvoiceID    uuid.UUID         `json:"invoice_id" example:"550e8400-e29b-41d4-a716-446655440003" swaggertype:"string" format:"uuid"`
	PayerID      uuid.UUID         `json:"payer_id" example:"550e8400-e29b-41d4-a716-446655440001" swaggertype:"string" format:"uuid"`
	Amount       string            `json:"amount" example:"5000.00"`
	Currency     string            `json:"currency" example:"NGN"`
	Method       string            `json:"method" example:"bank_transfer" enums:"gateway,bank_transfer,cash,wallet,prepayment"`
	Status       string            `json:"status" example:"success" enums:"pending,success,failed"`
	Reference    *string           `json:"reference,omitempty" example:"TRF-20261018-001"`
	SourceID     *uuid.UUID        `json:"source_id,omitempty" swaggertype:"string" format:"uuid"`
	Confirmation map[string]string `json:"confirmation,omitempty"`
	ConfirmedAt  *time.Time        `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ToPaymentResponse converts a payment
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:           p.ID,
		InvoiceID:    p.InvoiceID,
		PayerID:      p.PayerID,
		Amount:       amount(p.Amount),
		Currency:     string(p.Currency),
		Method:       string(p.Method),
		Status:       string(p.Status),
		Reference:    p.Reference,
		SourceID:     p.SourceID,
		Confirmation: p.Confirmation,
		ConfirmedAt:  p.ConfirmedAt,
		CreatedAt:    p.CreatedAt,
	}
}

// ToPaymentResponses converts payments
func ToPaymentResponses(items []finance.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(items))
	for i := range items {
		out[i] = ToPaymentResponse(&items[i])
	}
	return out
}

// SettlementResponse reports a payment and the invoice it moved
type SettlementResponse struct {
	Payment     *PaymentResponse     `json:"payment,omitempty"`
	Invoice     InvoiceResponse      `json:"invoice"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
	Applied     string               `json:"applied,omitempty" example:"2500.00"`
	Remaining   string               `json:"remaining,omitempty" example:"10000.00"`
	Duplicate   bool                 `json:"duplicate,omitempty"`
}

// PrepaymentResponse is the API view of a prepayment
type PrepaymentResponse struct {
	ID             uuid.UUID `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	TenantID       uuid.UUID `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440001" swaggertype:"string" format:"uuid"`
	Currency       string    `json:"currency" example:"NGN"`
	OriginalAmount string    `json:"original_amount" example:"15000.00"`
	Remaining      string    `json:"remaining" example:"10000.00"`
	Active         bool      `json:"active" example:"true"`
	Reference      *string   `json:"reference,omitempty" example:"PRE-20261018-001"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToPrepaymentResponse converts a prepayment
func ToPrepaymentResponse(p *finance.Prepayment) PrepaymentResponse {
	return PrepaymentResponse{
		ID:             p.ID,
		TenantID:       p.TenantID,
		Currency:       string(p.Currency),
		OriginalAmount: amount(p.OriginalAmount),
		Remaining:      amount(p.Remaining),
		Active:         p.Active,
		Reference:      p.Reference,
		CreatedAt:      p.CreatedAt,
	}
}

// ToPrepaymentResponses converts prepayments
func ToPrepaymentResponses(items []finance.Prepayment) []PrepaymentResponse {
	out := make([]PrepaymentResponse, len(items))
	for i := range items {
		out[i] = ToPrepaymentResponse(&items[i])
	}
	return out
}

// RefundResponse is the API view of a refund
type RefundResponse struct {
	ID                        uuid.UUID  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	TransactionID             uuid.UUID  `json:"transaction_id" example:"550e8400-e29b-41d4-a716-446655440004" swaggertype:"string" format:"uuid"`
	WalletID                  uuid.UUID  `json:"wallet_id" example:"550e8400-e29b-41d4-a716-446655440002" swaggertype:"string" format:"uuid"`
	Currency                  string     `json:"currency" example:"NGN"`
	Amount                    string     `json:"amount" example:"5000.00"`
	Charge                    string     `json:"charge" example:"50.00"`
	Total                     string     `json:"total" example:"1050.00"`
	Status                    string     `json:"status" example:"pending" enums:"pending,approved,completed,rejected"`
	HoldUntil                 time.Time  `json:"hold_until"`
	AutoGenerated             bool       `json:"auto_generated" example:"false"`
	Reason                    string     `json:"reason,omitempty" example:"Duplicate charge"`
	CompensatingTransactionID *uuid.UUID `json:"compensating_transaction_id,omitempty" swaggertype:"string" format:"uuid"`
	ResolvedAt                *time.Time `json:"resolved_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
}

// ToRefundResponse converts a refund
func ToRefundResponse(r *finance.Refund) RefundResponse {
	return RefundResponse{
		ID:                        r.ID,
		TransactionID:             r.TransactionID,
		WalletID:                  r.WalletID,
		Currency:                  string(r.Currency),
		Amount:                    amount(r.Amount),
		Charge:                    amount(r.Charge),
		Total:                     amount(r.Total),
		Status:                    string(r.Status),
		HoldUntil:                 r.HoldUntil,
		AutoGenerated:             r.AutoGenerated,
		Reason:                    r.Reason,
		CompensatingTransactionID: r.CompensatingTransactionID,
		ResolvedAt:                r.ResolvedAt,
		CreatedAt:                 r.CreatedAt,
	}
}

// ToRefundResponses converts a page of refunds
func ToRefundResponses(items []finance.Refund) []RefundResponse {
	out := make([]RefundResponse, len(items))
	for i := range items {
		out[i] = ToRefundResponse(&items[i])
	}
	return out
}

// AuditResponse is the API view of a transaction audit row
type AuditResponse struct {
	ID                  uuid.UUID  `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	Reference           string     `json:"reference" example:"T1234567890"`
	Source              string     `json:"source" example:"webhook" enums:"webhook,settlement,refund"`
	Channel             string     `json:"channel,omitempty" example:"card"`
	Currency            string     `json:"currency" example:"NGN"`
	Gross               string     `json:"gross" example:"10000.00"`
	Fee                 string     `json:"fee" example:"150.00"`
	Net                 string     `json:"net" example:"9850.00"`
	Status              string     `json:"status" example:"success" enums:"pending,success,failed"`
	WalletTransactionID *uuid.UUID `json:"wallet_transaction_id,omitempty" swaggertype:"string" format:"uuid"`
	PaymentID           *uuid.UUID `json:"payment_id,omitempty" swaggertype:"string" format:"uuid"`
	InvoiceID           *uuid.UUID `json:"invoice_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440003" swaggertype:"string" format:"uuid"`
	Note                string     `json:"note,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// ToAuditResponses converts audit rows
func ToAuditResponses(items []finance.TransactionAudit) []AuditResponse {
	out := make([]AuditResponse, len(items))
	for i, a := range items {
		out[i] = AuditResponse{
			ID:                  a.ID,
			Reference:           a.Reference,
			Source:              string(a.Source),
			Channel:             a.Channel,
			Currency:            string(a.Currency),
			Gross:               amount(a.Gross),
			Fee:                 amount(a.Fee),
			Net:                 amount(a.Net),
			Status:              string(a.Status),
			WalletTransactionID: a.WalletTransactionID,
			PaymentID:           a.PaymentID,
			InvoiceID:           a.InvoiceID,
			Note:                a.Note,
			CreatedAt:           a.CreatedAt,
		}
	}
	return out
}

// FeeConfigResponse is the API view of a fee config
type FeeConfigResponse struct {
	ID          uuid.UUID `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	Channel     string    `json:"channel" example:"card"`
	Percentage  string    `json:"percentage" example:"1.5"`
	FixedAmount string    `json:"fixed_amount" example:"100.00"`
	Active      bool      `json:"active" example:"true"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToFeeConfigResponse converts a fee config
func ToFeeConfigResponse(c *finance.FeeConfig) FeeConfigResponse {
	return FeeConfigResponse{
		ID:          c.ID,
		Channel:     c.Channel,
		Percentage:  c.Percentage.String(),
		FixedAmount: amount(c.FixedAmount),
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
	}
}

// FeeQuoteResponse is a fee split for a hypothetical amount
type FeeQuoteResponse struct {
	Channel  string `json:"channel" example:"card"`
	Currency string `json:"currency" example:"NGN"`
	Gross    string `json:"gross" example:"10000.00"`
	Fee      string `json:"fee" example:"150.00"`
	Net      string `json:"net" example:"9850.00"`
}

// ToFeeQuoteResponse converts a fee split
func ToFeeQuoteResponse(channel string, split finance.FeeSplit) FeeQuoteResponse {
	return FeeQuoteResponse{
		Channel:  finance.NormalizeChannel(channel),
		Currency: string(split.Gross.Currency()),
		Gross:    amount(split.Gross.Amount()),
		Fee:      amount(split.Fee.Amount()),
		Net:      amount(split.Net.Amount()),
	}
}

// LateFeeRuleResponse is the API view of a late fee rule
type LateFeeRuleResponse struct {
	ID          uuid.UUID `json:"id" example:"550e8400-e29b-41d4-a716-446655440000" swaggertype:"string" format:"uuid"`
	PropertyID  uuid.UUID `json:"property_id" example:"6ba7b811-9dad-11d1-80b4-00c04fd430c8" swaggertype:"string" format:"uuid"`
	Enabled     bool      `json:"enabled" example:"true"`
	GraceDays   int       `json:"grace_days" example:"5"`
	Percentage  string    `json:"percentage" example:"1.5"`
	FixedAmount string    `json:"fixed_amount" example:"100.00"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToLateFeeRuleResponse converts a late fee rule
func ToLateFeeRuleResponse(r *finance.LateFeeRule) LateFeeRuleResponse {
	return LateFeeRuleResponse{
		ID:          r.ID,
		PropertyID:  r.PropertyID,
		Enabled:     r.Enabled,
		GraceDays:   r.GraceDays,
		Percentage:  r.Percentage.String(),
		FixedAmount: amount(r.FixedAmount),
		UpdatedAt:   r.UpdatedAt,
	}
}

// WebhookResponse acknowledges a gateway delivery
type WebhookResponse struct {
	Received bool   `json:"received" example:"true"`
	Outcome  string `json:"outcome" example:"processed" enums:"processed,duplicate,ignored,failed"`
	Event    string `json:"event,omitempty" example:"charge.success"`
	Reason   string `json:"reason,omitempty" example:"Duplicate charge"`
}

// JobRunResponse reports a manually triggered job run
type JobRunResponse struct {
	Job        string    `json:"job" example:"late-fees"`
	Processed  int       `json:"processed" example:"4"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration" example:"1.2s"`
	Error      string    `json:"error,omitempty"`
}
