package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RefundModel is the persistence model for the Refund aggregate root. A
// transaction has at most one refund.
type RefundModel struct {
	AggregateModel
	TransactionID             uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex"`
	WalletID                  uuid.UUID            `gorm:"type:uuid;not null;index"`
	Currency                  valueobject.Currency `gorm:"type:varchar(3);not null"`
	Amount                    decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Charge                    decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Total                     decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Status                    finance.RefundStatus `gorm:"type:varchar(20);not null;index"`
	HoldUntil                 time.Time            `gorm:"not null"`
	AutoGenerated             bool                 `gorm:"not null;default:false"`
	Reason                    string               `gorm:"type:varchar(500)"`
	CompensatingTransactionID *uuid.UUID           `gorm:"type:uuid"`
	ResolvedAt                *time.Time
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// ToDomain converts the persistence model to a domain Refund.
func (m *RefundModel) ToDomain() *finance.Refund {
	return &finance.Refund{
		BaseAggregateRoot:         m.ToDomainAggregate(),
		TransactionID:             m.TransactionID,
		WalletID:                  m.WalletID,
		Currency:                  m.Currency,
		Amount:                    m.Amount,
		Charge:                    m.Charge,
		Total:                     m.Total,
		Status:                    m.Status,
		HoldUntil:                 m.HoldUntil,
		AutoGenerated:             m.AutoGenerated,
		Reason:                    m.Reason,
		CompensatingTransactionID: m.CompensatingTransactionID,
		ResolvedAt:                m.ResolvedAt,
	}
}

// RefundModelFromDomain creates a new persistence model from a domain Refund.
func RefundModelFromDomain(r *finance.Refund) *RefundModel {
	m := &RefundModel{
		TransactionID:             r.TransactionID,
		WalletID:                  r.WalletID,
		Currency:                  r.Currency,
		Amount:                    r.Amount,
		Charge:                    r.Charge,
		Total:                     r.Total,
		Status:                    r.Status,
		HoldUntil:                 r.HoldUntil.UTC(),
		AutoGenerated:             r.AutoGenerated,
		Reason:                    r.Reason,
		CompensatingTransactionID: r.CompensatingTransactionID,
		ResolvedAt:                utcPtr(r.ResolvedAt),
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	return m
}

// TransactionAuditModel is one append-only audit row. Only status is ever
// updated.
type TransactionAuditModel struct {
	BaseModel
	Reference           string               `gorm:"type:varchar(200);not null;index"`
	Source              finance.AuditSource  `gorm:"type:varchar(20);not null"`
	Channel             string               `gorm:"type:varchar(50)"`
	Currency            valueobject.Currency `gorm:"type:varchar(3);not null"`
	Gross               decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Fee                 decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Net                 decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Status              finance.AuditStatus  `gorm:"type:varchar(10);not null;index"`
	WalletTransactionID *uuid.UUID           `gorm:"type:uuid;index"`
	PaymentID           *uuid.UUID           `gorm:"type:uuid"`
	InvoiceID           *uuid.UUID           `gorm:"type:uuid;index"`
	Note                string               `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (TransactionAuditModel) TableName() string {
	return "transaction_audits"
}

// ToDomain converts the persistence model to a domain TransactionAudit.
func (m *TransactionAuditModel) ToDomain() *finance.TransactionAudit {
	return &finance.TransactionAudit{
		BaseEntity:          m.BaseModel.ToDomain(),
		Reference:           m.Reference,
		Source:              m.Source,
		Channel:             m.Channel,
		Currency:            m.Currency,
		Gross:               m.Gross,
		Fee:                 m.Fee,
		Net:                 m.Net,
		Status:              m.Status,
		WalletTransactionID: m.WalletTransactionID,
		PaymentID:           m.PaymentID,
		InvoiceID:           m.InvoiceID,
		Note:                m.Note,
	}
}

// TransactionAuditModelFromDomain creates a new persistence model from a domain TransactionAudit.
func TransactionAuditModelFromDomain(a *finance.TransactionAudit) *TransactionAuditModel {
	m := &TransactionAuditModel{
		Reference:           a.Reference,
		Source:              a.Source,
		Channel:             a.Channel,
		Currency:            a.Currency,
		Gross:               a.Gross,
		Fee:                 a.Fee,
		Net:                 a.Net,
		Status:              a.Status,
		WalletTransactionID: a.WalletTransactionID,
		PaymentID:           a.PaymentID,
		InvoiceID:           a.InvoiceID,
		Note:                a.Note,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}

// WebhookEventModel is the persistence model for WebhookEvent, unique on its
// dedup key.
type WebhookEventModel struct {
	AggregateModel
	Provider      string                     `gorm:"type:varchar(30);not null"`
	EventType     string                     `gorm:"type:varchar(100);not null"`
	Reference     string                     `gorm:"type:varchar(200);index"`
	DedupKey      string                     `gorm:"type:varchar(400);not null;uniqueIndex"`
	SchemaVersion int                        `gorm:"not null;default:1"`
	Payload       string                     `gorm:"type:text"`
	Status        finance.WebhookEventStatus `gorm:"type:varchar(20);not null;index"`
	FailureReason string                     `gorm:"type:varchar(500)"`
	Attempts      int                        `gorm:"not null;default:0"`
	ProcessedAt   *time.Time
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent.
func (m *WebhookEventModel) ToDomain() *finance.WebhookEvent {
	return &finance.WebhookEvent{
		BaseAggregateRoot: m.ToDomainAggregate(),
		Provider:          m.Provider,
		EventType:         m.EventType,
		Reference:         m.Reference,
		DedupKey:          m.DedupKey,
		SchemaVersion:     m.SchemaVersion,
		Payload:           []byte(m.Payload),
		Status:            m.Status,
		FailureReason:     m.FailureReason,
		Attempts:          m.Attempts,
		ProcessedAt:       m.ProcessedAt,
	}
}

// WebhookEventModelFromDomain creates a new persistence model from a domain WebhookEvent.
func WebhookEventModelFromDomain(e *finance.WebhookEvent) *WebhookEventModel {
	m := &WebhookEventModel{
		Provider:      e.Provider,
		EventType:     e.EventType,
		Reference:     e.Reference,
		DedupKey:      e.DedupKey,
		SchemaVersion: e.SchemaVersion,
		Payload:       string(e.Payload),
		Status:        e.Status,
		FailureReason: e.FailureReason,
		Attempts:      e.Attempts,
		ProcessedAt:   utcPtr(e.ProcessedAt),
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	return m
}
