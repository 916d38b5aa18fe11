package persistence

import (
	"context"

	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormRepositories(tx))
	})
}

// NewGormRepositories returns the ledger repositories bound to db. Outside
// Execute they serve plain reads that need no lock.
func NewGormRepositories(db *gorm.DB) appfinance.TransactionalRepositories {
	return &gormTransactionalRepositories{tx: db}
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Wallets() finance.WalletRepository {
	return NewGormWalletRepository(r.tx)
}

func (r *gormTransactionalRepositories) WalletTransactions() finance.WalletTransactionRepository {
	return NewGormWalletTransactionRepository(r.tx)
}

func (r *gormTransactionalRepositories) Invoices() finance.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) Payments() finance.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) Prepayments() finance.PrepaymentRepository {
	return NewGormPrepaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) FeeConfigs() finance.FeeConfigRepository {
	return NewGormFeeConfigRepository(r.tx)
}

func (r *gormTransactionalRepositories) LateFeeRules() finance.LateFeeRuleRepository {
	return NewGormLateFeeRuleRepository(r.tx)
}

func (r *gormTransactionalRepositories) Refunds() finance.RefundRepository {
	return NewGormRefundRepository(r.tx)
}

func (r *gormTransactionalRepositories) Audits() finance.TransactionAuditRepository {
	return NewGormTransactionAuditRepository(r.tx)
}

func (r *gormTransactionalRepositories) WebhookEvents() finance.WebhookEventRepository {
	return NewGormWebhookEventRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appfinance.TransactionScope = (*GormTransactionScope)(nil)
