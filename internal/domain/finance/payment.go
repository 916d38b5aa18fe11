package finance

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies where the money for a payment came from
type PaymentMethod string

const (
	PaymentMethodWallet       PaymentMethod = "wallet"
	PaymentMethodPrepayment   PaymentMethod = "prepayment"
	PaymentMethodGateway      PaymentMethod = "gateway"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
)

// IsValid checks if the method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodWallet, PaymentMethodPrepayment, PaymentMethodGateway, PaymentMethodBankTransfer, PaymentMethodCash:
		return true
	}
	return false
}

// PaymentStatus is the lifecycle status of a payment
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Payment records money applied to an invoice. It moves the invoice's
// outstanding exactly once, when it reaches success.
type Payment struct {
	shared.BaseEntity
	InvoiceID    uuid.UUID
	PayerID      uuid.UUID
	Amount       decimal.Decimal
	Currency     valueobject.Currency
	Method       PaymentMethod
	Status       PaymentStatus
	Reference    *string
	SourceID     *uuid.UUID // prepayment or wallet transaction the money came from
	Confirmation map[string]string
	ConfirmedAt  *time.Time
}

// NewPayment creates a pending payment against an invoice
func NewPayment(invoiceID, payerID uuid.UUID, amount valueobject.Money, method PaymentMethod, reference *string) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Payment invoice cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Unknown payment method: "+string(method))
	}
	return &Payment{
		BaseEntity:   shared.NewBaseEntity(),
		InvoiceID:    invoiceID,
		PayerID:      payerID,
		Amount:       amount.Amount(),
		Currency:     amount.Currency(),
		Method:       method,
		Status:       PaymentStatusPending,
		Reference:    normalizeReference(reference),
		Confirmation: map[string]string{},
	}, nil
}

// AmountMoney returns the amount as Money
func (p *Payment) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}

// Succeed marks the payment successful with optional confirmation details
func (p *Payment) Succeed(at time.Time, confirmation map[string]string) error {
	if p.Status != PaymentStatusPending {
		return ErrInvalidTransition.WithMessage("Only pending payments can succeed")
	}
	p.Status = PaymentStatusSuccess
	p.ConfirmedAt = &at
	for k, v := range confirmation {
		p.Confirmation[k] = v
	}
	p.Touch()
	return nil
}

// Prepayment is a tenant's pre-funded credit, drained oldest first
type Prepayment struct {
	shared.BaseAggregateRoot
	TenantID       uuid.UUID
	Currency       valueobject.Currency
	OriginalAmount decimal.Decimal
	Remaining      decimal.Decimal
	Active         bool
	Reference      *string
}

// NewPrepayment creates an active prepayment holding amount
func NewPrepayment(tenantID uuid.UUID, amount valueobject.Money, reference *string) (*Prepayment, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Prepayment tenant cannot be empty")
	}
	amount = amount.FloorMinor()
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &Prepayment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TenantID:          tenantID,
		Currency:          amount.Currency(),
		OriginalAmount:    amount.Amount(),
		Remaining:         amount.Amount(),
		Active:            true,
		Reference:         normalizeReference(reference),
	}, nil
}

// RemainingMoney returns the undrawn balance as Money
func (p *Prepayment) RemainingMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Remaining, p.Currency)
	return m
}

// Draw consumes amount from the prepayment. A fully drawn prepayment is
// deactivated.
func (p *Prepayment) Draw(amount valueobject.Money) error {
	if !p.Active {
		return ErrInvalidTransition.WithMessage("Prepayment is not active")
	}
	if amount.Currency() != p.Currency {
		return ErrCurrencyMismatch
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.Amount().GreaterThan(p.Remaining) {
		return ErrInsufficientFunds.WithMessage("Prepayment remaining is lower than the draw")
	}
	p.Remaining = p.Remaining.Sub(amount.Amount())
	if p.Remaining.IsZero() {
		p.Active = false
	}
	p.Touch()
	return nil
}

// AllocationLine is one prepayment's contribution to an invoice
type AllocationLine struct {
	Prepayment *Prepayment
	Amount     valueobject.Money
}

// PlanFIFOAllocation decides how much each prepayment contributes toward
// outstanding, oldest created first. Inactive, empty and foreign-currency
// prepayments are skipped. The plan never exceeds outstanding.
func PlanFIFOAllocation(prepayments []*Prepayment, outstanding valueobject.Money) []AllocationLine {
	sorted := make([]*Prepayment, 0, len(prepayments))
	for _, p := range prepayments {
		if p.Active && p.Remaining.IsPositive() && p.Currency == outstanding.Currency() {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	lines := make([]AllocationLine, 0, len(sorted))
	left := outstanding
	for _, p := range sorted {
		if !left.IsPositive() {
			break
		}
		take, _ := p.RemainingMoney().Min(left)
		lines = append(lines, AllocationLine{Prepayment: p, Amount: take})
		left, _ = left.Subtract(take)
	}
	return lines
}
