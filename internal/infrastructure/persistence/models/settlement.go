package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	AggregateModel
	TenantID        uuid.UUID             `gorm:"type:uuid;not null;index"`
	ApartmentID     uuid.UUID             `gorm:"type:uuid;index"`
	PropertyID      uuid.UUID             `gorm:"type:uuid;index"`
	Kind            finance.InvoiceKind   `gorm:"type:varchar(20);not null;default:'rent'"`
	Currency        valueobject.Currency  `gorm:"type:varchar(3);not null"`
	Amount          decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Outstanding     decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Status          finance.InvoiceStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_invoices_status_due,priority:1"`
	DueDate         time.Time             `gorm:"not null;index:idx_invoices_status_due,priority:2"`
	Description     string                `gorm:"type:varchar(500)"`
	Tag             *string               `gorm:"type:varchar(100);uniqueIndex"`
	SourceInvoiceID *uuid.UUID            `gorm:"type:uuid;index"`
	PaidAt          *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	return &finance.Invoice{
		BaseAggregateRoot: m.ToDomainAggregate(),
		TenantID:          m.TenantID,
		ApartmentID:       m.ApartmentID,
		PropertyID:        m.PropertyID,
		Kind:              m.Kind,
		Currency:          m.Currency,
		Amount:            m.Amount,
		Outstanding:       m.Outstanding,
		Status:            m.Status,
		DueDate:           m.DueDate,
		Description:       m.Description,
		Tag:               m.Tag,
		SourceInvoiceID:   m.SourceInvoiceID,
		PaidAt:            m.PaidAt,
	}
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(i *finance.Invoice) {
	m.FromDomainAggregateRoot(i.BaseAggregateRoot)
	m.TenantID = i.TenantID
	m.ApartmentID = i.ApartmentID
	m.PropertyID = i.PropertyID
	m.Kind = i.Kind
	m.Currency = i.Currency
	m.Amount = i.Amount
	m.Outstanding = i.Outstanding
	m.Status = i.Status
	m.DueDate = i.DueDate.UTC()
	m.Description = i.Description
	m.Tag = i.Tag
	m.SourceInvoiceID = i.SourceInvoiceID
	m.PaidAt = utcPtr(i.PaidAt)
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(i *finance.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(i)
	return m
}

// StringMap stores a flat string map as JSON
type StringMap map[string]string

// Value implements driver.Valuer interface for GORM to store as JSONB
func (s StringMap) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (s *StringMap) Scan(value any) error {
	if value == nil {
		*s = StringMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan StringMap: unsupported type")
	}

	if len(bytes) == 0 {
		*s = StringMap{}
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// PaymentModel is the persistence model for Payment.
type PaymentModel struct {
	BaseModel
	InvoiceID    uuid.UUID             `gorm:"type:uuid;not null;index;uniqueIndex:idx_payments_invoice_reference,priority:1"`
	PayerID      uuid.UUID             `gorm:"type:uuid;index"`
	Amount       decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Currency     valueobject.Currency  `gorm:"type:varchar(3);not null"`
	Method       finance.PaymentMethod `gorm:"type:varchar(20);not null"`
	Status       finance.PaymentStatus `gorm:"type:varchar(10);not null"`
	Reference    *string               `gorm:"type:varchar(200);index;uniqueIndex:idx_payments_invoice_reference,priority:2"`
	SourceID     *uuid.UUID            `gorm:"type:uuid;index"`
	Confirmation StringMap             `gorm:"type:jsonb;default:'{}'"`
	ConfirmedAt  *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *finance.Payment {
	confirmation := map[string]string(m.Confirmation)
	if confirmation == nil {
		confirmation = map[string]string{}
	}
	return &finance.Payment{
		BaseEntity:   m.BaseModel.ToDomain(),
		InvoiceID:    m.InvoiceID,
		PayerID:      m.PayerID,
		Amount:       m.Amount,
		Currency:     m.Currency,
		Method:       m.Method,
		Status:       m.Status,
		Reference:    m.Reference,
		SourceID:     m.SourceID,
		Confirmation: confirmation,
		ConfirmedAt:  m.ConfirmedAt,
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{
		InvoiceID:    p.InvoiceID,
		PayerID:      p.PayerID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Method:       p.Method,
		Status:       p.Status,
		Reference:    p.Reference,
		SourceID:     p.SourceID,
		Confirmation: StringMap(p.Confirmation),
		ConfirmedAt:  utcPtr(p.ConfirmedAt),
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// PrepaymentModel is the persistence model for the Prepayment aggregate root.
type PrepaymentModel struct {
	AggregateModel
	TenantID       uuid.UUID            `gorm:"type:uuid;not null;index:idx_prepayments_tenant_active,priority:1"`
	Currency       valueobject.Currency `gorm:"type:varchar(3);not null"`
	OriginalAmount decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Remaining      decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	Active         bool                 `gorm:"not null;default:true;index:idx_prepayments_tenant_active,priority:2"`
	Reference      *string              `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (PrepaymentModel) TableName() string {
	return "prepayments"
}

// ToDomain converts the persistence model to a domain Prepayment.
func (m *PrepaymentModel) ToDomain() *finance.Prepayment {
	return &finance.Prepayment{
		BaseAggregateRoot: m.ToDomainAggregate(),
		TenantID:          m.TenantID,
		Currency:          m.Currency,
		OriginalAmount:    m.OriginalAmount,
		Remaining:         m.Remaining,
		Active:            m.Active,
		Reference:         m.Reference,
	}
}

// PrepaymentModelFromDomain creates a new persistence model from a domain Prepayment.
func PrepaymentModelFromDomain(p *finance.Prepayment) *PrepaymentModel {
	m := &PrepaymentModel{
		TenantID:       p.TenantID,
		Currency:       p.Currency,
		OriginalAmount: p.OriginalAmount,
		Remaining:      p.Remaining,
		Active:         p.Active,
		Reference:      p.Reference,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	return m
}
