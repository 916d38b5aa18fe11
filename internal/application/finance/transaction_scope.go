package finance

import (
	"context"

	"github.com/rentals/backend/internal/domain/finance"
)

// TransactionScope provides transactional access to ledger repositories.
// Everything done through the repositories handed to fn commits or rolls
// back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories
// within one transaction.
//
// Lock order inside a transaction is wallet before invoice before
// prepayments. Every flow that takes more than one row lock follows it.
type TransactionalRepositories interface {
	Wallets() finance.WalletRepository
	WalletTransactions() finance.WalletTransactionRepository
	Invoices() finance.InvoiceRepository
	Payments() finance.PaymentRepository
	Prepayments() finance.PrepaymentRepository
	FeeConfigs() finance.FeeConfigRepository
	LateFeeRules() finance.LateFeeRuleRepository
	Refunds() finance.RefundRepository
	Audits() finance.TransactionAuditRepository
	WebhookEvents() finance.WebhookEventRepository
}
