package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// WalletModel is the persistence model for the Wallet aggregate root.
type WalletModel struct {
	AggregateModel
	OwnerID  uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_wallets_owner_currency,priority:1"`
	Currency valueobject.Currency `gorm:"type:varchar(3);not null;uniqueIndex:idx_wallets_owner_currency,priority:2"`
	Balance  decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Active   bool                 `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (WalletModel) TableName() string {
	return "wallets"
}

// ToDomain converts the persistence model to a domain Wallet.
func (m *WalletModel) ToDomain() *finance.Wallet {
	return &finance.Wallet{
		BaseAggregateRoot: m.ToDomainAggregate(),
		OwnerID:           m.OwnerID,
		Currency:          m.Currency,
		Balance:           m.Balance,
		Active:            m.Active,
	}
}

// FromDomain populates the persistence model from a domain Wallet.
func (m *WalletModel) FromDomain(w *finance.Wallet) {
	m.FromDomainAggregateRoot(w.BaseAggregateRoot)
	m.OwnerID = w.OwnerID
	m.Currency = w.Currency
	m.Balance = w.Balance
	m.Active = w.Active
}

// WalletModelFromDomain creates a new persistence model from a domain Wallet.
func WalletModelFromDomain(w *finance.Wallet) *WalletModel {
	m := &WalletModel{}
	m.FromDomain(w)
	return m
}

// WalletTransactionModel is one append-only ledger row. (wallet_id, reference)
// is unique; rows without a reference never collide.
type WalletTransactionModel struct {
	BaseModel
	WalletID     uuid.UUID                 `gorm:"type:uuid;not null;index;uniqueIndex:idx_wallet_tx_reference,priority:1"`
	Type         finance.TransactionType   `gorm:"type:varchar(10);not null"`
	Amount       decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	Currency     valueobject.Currency      `gorm:"type:varchar(3);not null"`
	Reference    *string                   `gorm:"type:varchar(200);uniqueIndex:idx_wallet_tx_reference,priority:2"`
	Status       finance.TransactionStatus `gorm:"type:varchar(10);not null;index"`
	Description  string                    `gorm:"type:varchar(500)"`
	BalanceAfter decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	FailedAt     *time.Time                `gorm:"index"`
}

// TableName returns the table name for GORM
func (WalletTransactionModel) TableName() string {
	return "wallet_transactions"
}

// ToDomain converts the persistence model to a domain WalletTransaction.
func (m *WalletTransactionModel) ToDomain() *finance.WalletTransaction {
	return &finance.WalletTransaction{
		BaseEntity:   m.BaseModel.ToDomain(),
		WalletID:     m.WalletID,
		Type:         m.Type,
		Amount:       m.Amount,
		Currency:     m.Currency,
		Reference:    m.Reference,
		Status:       m.Status,
		Description:  m.Description,
		BalanceAfter: m.BalanceAfter,
		FailedAt:     m.FailedAt,
	}
}

// FromDomain populates the persistence model from a domain WalletTransaction.
func (m *WalletTransactionModel) FromDomain(tx *finance.WalletTransaction) {
	m.FromDomainBaseEntity(tx.BaseEntity)
	m.WalletID = tx.WalletID
	m.Type = tx.Type
	m.Amount = tx.Amount
	m.Currency = tx.Currency
	m.Reference = tx.Reference
	m.Status = tx.Status
	m.Description = tx.Description
	m.BalanceAfter = tx.BalanceAfter
	m.FailedAt = utcPtr(tx.FailedAt)
}

// WalletTransactionModelFromDomain creates a new persistence model from a domain WalletTransaction.
func WalletTransactionModelFromDomain(tx *finance.WalletTransaction) *WalletTransactionModel {
	m := &WalletTransactionModel{}
	m.FromDomain(tx)
	return m
}

