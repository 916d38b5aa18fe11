package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DefaultRefundHoldWindow is how long a failed transaction waits before the
// sweep refunds it automatically
const DefaultRefundHoldWindow = 7 * 24 * time.Hour

// RefundStatus represents the status of a refund
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusRejected  RefundStatus = "rejected"
)

// IsValid checks if the status is valid
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusPending, RefundStatusApproved, RefundStatusCompleted, RefundStatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true if the refund can no longer change
func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusCompleted || s == RefundStatusRejected
}

// Refund reverses a wallet transaction. A transaction has at most one.
type Refund struct {
	shared.BaseAggregateRoot
	TransactionID             uuid.UUID
	WalletID                  uuid.UUID
	Currency                  valueobject.Currency
	Amount                    decimal.Decimal
	Charge                    decimal.Decimal
	Total                     decimal.Decimal
	Status                    RefundStatus
	HoldUntil                 time.Time
	AutoGenerated             bool
	Reason                    string
	CompensatingTransactionID *uuid.UUID
	ResolvedAt                *time.Time
}

// NewRefundParams carries the inputs for NewRefund
type NewRefundParams struct {
	Transaction   *WalletTransaction
	Amount        valueobject.Money
	Charge        valueobject.Money
	HoldUntil     time.Time
	AutoGenerated bool
	Reason        string
}

// NewRefund creates a pending refund of amount+charge for a settled or
// failed transaction
func NewRefund(p NewRefundParams) (*Refund, error) {
	tx := p.Transaction
	if tx == nil {
		return nil, shared.NewDomainError("INVALID_TRANSACTION", "Refund transaction cannot be empty")
	}
	if tx.Status == TransactionStatusPending {
		return nil, ErrInvalidTransition.WithMessage("Pending transactions cannot be refunded")
	}
	if p.Amount.Currency() != tx.Currency || p.Charge.Currency() != tx.Currency {
		return nil, ErrCurrencyMismatch
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount.WithMessage("Refund amount must be positive")
	}
	if p.Charge.IsNegative() {
		return nil, ErrInvalidAmount.WithMessage("Refund charge cannot be negative")
	}
	if err := checkMinorUnits(p.Amount, p.Charge); err != nil {
		return nil, err
	}
	if p.Amount.Amount().GreaterThan(tx.Amount) {
		return nil, ErrInvalidAmount.WithMessage("Refund amount exceeds the original transaction")
	}
	total, err := p.Amount.Add(p.Charge)
	if err != nil {
		return nil, err
	}
	return &Refund{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TransactionID:     tx.ID,
		WalletID:          tx.WalletID,
		Currency:          tx.Currency,
		Amount:            p.Amount.Amount(),
		Charge:            p.Charge.Amount(),
		Total:             total.Amount(),
		Status:            RefundStatusPending,
		HoldUntil:         p.HoldUntil,
		AutoGenerated:     p.AutoGenerated,
		Reason:            p.Reason,
	}, nil
}

// TotalMoney returns amount+charge as Money
func (r *Refund) TotalMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(r.Total, r.Currency)
	return m
}

// Approve moves a pending refund to approved
func (r *Refund) Approve() error {
	if r.Status != RefundStatusPending {
		return ErrInvalidTransition.WithMessage("Only pending refunds can be approved")
	}
	r.Status = RefundStatusApproved
	r.Touch()
	return nil
}

// Complete records the compensating transaction and closes the refund
func (r *Refund) Complete(compensatingTxID uuid.UUID, at time.Time) error {
	if r.Status != RefundStatusApproved {
		return ErrInvalidTransition.WithMessage("Only approved refunds can be completed")
	}
	r.Status = RefundStatusCompleted
	r.CompensatingTransactionID = &compensatingTxID
	r.ResolvedAt = &at
	r.Touch()
	return nil
}

// Reject closes a pending refund without touching the ledger
func (r *Refund) Reject(reason string, at time.Time) error {
	if r.Status != RefundStatusPending {
		return ErrInvalidTransition.WithMessage("Only pending refunds can be rejected")
	}
	r.Status = RefundStatusRejected
	if reason != "" {
		r.Reason = reason
	}
	r.ResolvedAt = &at
	r.Touch()
	return nil
}

// RefundReference is the ledger reference of a refund's compensating entry
func RefundReference(refundID uuid.UUID) string {
	return "refund:" + refundID.String()
}
