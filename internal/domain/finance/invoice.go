package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the settlement status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "pending"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// IsOpen returns true if the invoice can still receive payments
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusOverdue
}

// OpenInvoiceStatuses lists the statuses that still carry an outstanding balance
func OpenInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{InvoiceStatusPending, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue}
}

// InvoiceKind distinguishes billed rent from generated charges
type InvoiceKind string

const (
	InvoiceKindRent    InvoiceKind = "rent"
	InvoiceKindLateFee InvoiceKind = "late_fee"
	InvoiceKindCharge  InvoiceKind = "charge"
)

// LateFeeTagPrefix prefixes the tag that ties a late fee invoice to its source
const LateFeeTagPrefix = "late_fee:"

// LateFeeTag returns the deterministic tag of the late fee for source
func LateFeeTag(sourceID uuid.UUID) string {
	return LateFeeTagPrefix + sourceID.String()
}

// Invoice is a claim owed by a tenant for an apartment. Outstanding only
// ever decreases, and status is paid exactly when outstanding is zero.
type Invoice struct {
	shared.BaseAggregateRoot
	TenantID        uuid.UUID
	ApartmentID     uuid.UUID
	PropertyID      uuid.UUID
	Kind            InvoiceKind
	Currency        valueobject.Currency
	Amount          decimal.Decimal
	Outstanding     decimal.Decimal
	Status          InvoiceStatus
	DueDate         time.Time
	Description     string
	Tag             *string
	SourceInvoiceID *uuid.UUID
	PaidAt          *time.Time
}

// NewInvoiceParams carries the inputs for NewInvoice
type NewInvoiceParams struct {
	TenantID    uuid.UUID
	ApartmentID uuid.UUID
	PropertyID  uuid.UUID
	Kind        InvoiceKind
	Amount      valueobject.Money
	DueDate     time.Time
	Description string
}

// NewInvoice creates a pending invoice with outstanding equal to amount
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.TenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Invoice tenant cannot be empty")
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount.WithMessage("Invoice amount must be positive")
	}
	if p.DueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Invoice due date is required")
	}
	kind := p.Kind
	if kind == "" {
		kind = InvoiceKindRent
	}
	amount := p.Amount.FloorMinor()
	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TenantID:          p.TenantID,
		ApartmentID:       p.ApartmentID,
		PropertyID:        p.PropertyID,
		Kind:              kind,
		Currency:          amount.Currency(),
		Amount:            amount.Amount(),
		Outstanding:       amount.Amount(),
		Status:            InvoiceStatusPending,
		DueDate:           p.DueDate,
		Description:       p.Description,
	}, nil
}

// NewLateFeeInvoice creates the fee invoice for source, due immediately
func NewLateFeeInvoice(source *Invoice, fee valueobject.Money, now time.Time) (*Invoice, error) {
	inv, err := NewInvoice(NewInvoiceParams{
		TenantID:    source.TenantID,
		ApartmentID: source.ApartmentID,
		PropertyID:  source.PropertyID,
		Kind:        InvoiceKindLateFee,
		Amount:      fee,
		DueDate:     now,
		Description: "Late fee for invoice " + source.ID.String(),
	})
	if err != nil {
		return nil, err
	}
	tag := LateFeeTag(source.ID)
	sourceID := source.ID
	inv.Tag = &tag
	inv.SourceInvoiceID = &sourceID
	return inv, nil
}

// AmountMoney returns the invoice total as Money
func (i *Invoice) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(i.Amount, i.Currency)
	return m
}

// OutstandingMoney returns the outstanding balance as Money
func (i *Invoice) OutstandingMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(i.Outstanding, i.Currency)
	return m
}

// EnsureCanAccept rejects a payment before any money moves: paid or
// cancelled invoices, foreign currencies and overpayments all fail.
func (i *Invoice) EnsureCanAccept(amount valueobject.Money) error {
	switch {
	case i.Status == InvoiceStatusPaid:
		return ErrAlreadySettled
	case i.Status == InvoiceStatusCancelled:
		return ErrInvoiceCancelled
	case amount.Currency() != i.Currency:
		return ErrCurrencyMismatch
	case !amount.IsPositive():
		return ErrInvalidAmount
	case !amount.IsWholeMinor():
		return checkMinorUnits(amount)
	case amount.Amount().GreaterThan(i.Outstanding):
		return ErrExceedsOutstanding.WithMessage("Payment of " + amount.String() + " exceeds outstanding " + i.OutstandingMoney().String())
	}
	return nil
}

// ApplyPayment reduces outstanding by min(outstanding, amount) and returns
// the applied portion with the new outstanding. Rejecting overpayment is
// the caller's job (see EnsureCanAccept); this method only ever applies
// what is owed.
func (i *Invoice) ApplyPayment(amount valueobject.Money, at time.Time) (applied, remaining valueobject.Money, err error) {
	if i.Status == InvoiceStatusPaid {
		return applied, remaining, ErrAlreadySettled
	}
	if i.Status == InvoiceStatusCancelled {
		return applied, remaining, ErrInvoiceCancelled
	}
	if amount.Currency() != i.Currency {
		return applied, remaining, ErrCurrencyMismatch
	}
	if !amount.IsPositive() {
		return applied, remaining, ErrInvalidAmount
	}
	if err := checkMinorUnits(amount); err != nil {
		return applied, remaining, err
	}

	applied, _ = i.OutstandingMoney().Min(amount)
	i.Outstanding = i.Outstanding.Sub(applied.Amount())
	if !i.Outstanding.IsPositive() {
		i.Outstanding = decimal.Zero
		i.Status = InvoiceStatusPaid
		i.PaidAt = &at
	} else {
		i.Status = InvoiceStatusPartiallyPaid
	}
	i.Touch()
	return applied, i.OutstandingMoney(), nil
}

// IsPastDue reports whether the due date is strictly before today's date
func (i *Invoice) IsPastDue(today time.Time) bool {
	return dateOf(i.DueDate).Before(dateOf(today))
}

// DaysPastDue returns whole days since the due date, or 0 if not past due
func (i *Invoice) DaysPastDue(today time.Time) int {
	if !i.IsPastDue(today) {
		return 0
	}
	return int(dateOf(today).Sub(dateOf(i.DueDate)).Hours() / 24)
}

// MarkOverdue flips an open, past-due invoice to overdue. Outstanding is
// untouched. Returns false if nothing changed.
func (i *Invoice) MarkOverdue(today time.Time) bool {
	if i.Status != InvoiceStatusPending && i.Status != InvoiceStatusPartiallyPaid {
		return false
	}
	if !i.IsPastDue(today) {
		return false
	}
	i.Status = InvoiceStatusOverdue
	i.Touch()
	return true
}

// Cancel voids an invoice that is not yet paid
func (i *Invoice) Cancel() error {
	switch i.Status {
	case InvoiceStatusPaid:
		return ErrAlreadySettled
	case InvoiceStatusCancelled:
		return nil
	}
	i.Status = InvoiceStatusCancelled
	i.Touch()
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
