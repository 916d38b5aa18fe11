package finance

import (
	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AuditStatus is the outcome recorded by a TransactionAudit
type AuditStatus string

const (
	AuditStatusPending AuditStatus = "pending"
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// AuditSource names the flow that produced an audit row
type AuditSource string

const (
	AuditSourceWebhook    AuditSource = "webhook"
	AuditSourceSettlement AuditSource = "settlement"
	AuditSourceRefund     AuditSource = "refund"
)

// TransactionAudit is the append-only record of a settlement outcome.
// Only its status may change, once, from pending.
type TransactionAudit struct {
	shared.BaseEntity
	Reference           string
	Source              AuditSource
	Channel             string
	Currency            valueobject.Currency
	Gross               decimal.Decimal
	Fee                 decimal.Decimal
	Net                 decimal.Decimal
	Status              AuditStatus
	WalletTransactionID *uuid.UUID
	PaymentID           *uuid.UUID
	InvoiceID           *uuid.UUID
	Note                string
}

// NewTransactionAudit creates an audit row from a fee split
func NewTransactionAudit(source AuditSource, reference, channel string, split FeeSplit, status AuditStatus) *TransactionAudit {
	return &TransactionAudit{
		BaseEntity: shared.NewBaseEntity(),
		Reference:  reference,
		Source:     source,
		Channel:    NormalizeChannel(channel),
		Currency:   split.Gross.Currency(),
		Gross:      split.Gross.Amount(),
		Fee:        split.Fee.Amount(),
		Net:        split.Net.Amount(),
		Status:     status,
	}
}

// Resolve moves a pending audit to success or failed
func (a *TransactionAudit) Resolve(status AuditStatus) error {
	if a.Status != AuditStatusPending {
		return ErrInvalidTransition.WithMessage("Audit status can only leave pending once")
	}
	if status != AuditStatusSuccess && status != AuditStatusFailed {
		return ErrInvalidTransition.WithMessage("Audit can only resolve to success or failed")
	}
	a.Status = status
	a.Touch()
	return nil
}
