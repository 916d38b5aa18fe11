package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
)

// WalletRepository persists wallets. FindByIDForUpdate takes the per-wallet
// row lock every balance change runs under.
type WalletRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Wallet, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, currency valueobject.Currency) (*Wallet, error)
	// Create returns shared.ErrAlreadyExists if the owner already has a wallet in that currency
	Create(ctx context.Context, wallet *Wallet) error
	// SaveWithLock saves only if the stored version still matches, then bumps
	// it; a stale wallet gets shared.ErrConcurrencyConflict
	SaveWithLock(ctx context.Context, wallet *Wallet) error
}

// WalletTransactionRepository is the append-only ledger of wallet postings
type WalletTransactionRepository interface {
	// Create returns shared.ErrAlreadyExists on a duplicate (wallet, reference)
	Create(ctx context.Context, tx *WalletTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*WalletTransaction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*WalletTransaction, error)
	FindByReference(ctx context.Context, walletID uuid.UUID, reference string) (*WalletTransaction, error)
	// UpdateStatus persists a forward status change (pending → success/failed)
	UpdateStatus(ctx context.Context, tx *WalletTransaction) error
	FindByWallet(ctx context.Context, walletID uuid.UUID, filter shared.Filter) ([]WalletTransaction, int64, error)
	// FindFailedWithoutRefund returns failed transactions that failed before
	// cutoff and have no refund yet, ordered by id and starting after afterID
	FindFailedWithoutRefund(ctx context.Context, cutoff time.Time, afterID uuid.UUID, limit int) ([]WalletTransaction, error)
}

// InvoiceRepository persists invoices. FindByIDForUpdate takes the
// per-invoice row lock settlement runs under.
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// Create returns shared.ErrAlreadyExists on a duplicate tag
	Create(ctx context.Context, invoice *Invoice) error
	SaveWithLock(ctx context.Context, invoice *Invoice) error
	ExistsByTag(ctx context.Context, tag string) (bool, error)
	// FindPastDue returns up to limit invoices in one of statuses whose due
	// date is before day, ordered by id and starting after afterID
	FindPastDue(ctx context.Context, statuses []InvoiceStatus, day time.Time, afterID uuid.UUID, limit int) ([]Invoice, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Invoice, int64, error)
}

// PaymentRepository persists payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	// FindByInvoiceAndReference returns shared.ErrNotFound when the
	// reference was never used on the invoice
	FindByInvoiceAndReference(ctx context.Context, invoiceID uuid.UUID, reference string) (*Payment, error)
}

// PrepaymentRepository persists prepayments
type PrepaymentRepository interface {
	Create(ctx context.Context, prepayment *Prepayment) error
	// FindActiveByTenantForUpdate locks the tenant's drawable prepayments,
	// oldest created first
	FindActiveByTenantForUpdate(ctx context.Context, tenantID uuid.UUID, currency valueobject.Currency) ([]*Prepayment, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]Prepayment, error)
	SaveWithLock(ctx context.Context, prepayment *Prepayment) error
}

// FeeConfigRepository is the config store for channel fee rules
type FeeConfigRepository interface {
	// FindActiveByChannel returns shared.ErrNotFound when the channel has no active config
	FindActiveByChannel(ctx context.Context, channel string) (*FeeConfig, error)
	DeactivateChannel(ctx context.Context, channel string) error
	Create(ctx context.Context, cfg *FeeConfig) error
}

// LateFeeRuleRepository is the config store for property late fee rules
type LateFeeRuleRepository interface {
	// FindByProperty returns shared.ErrNotFound when the property has no rule
	FindByProperty(ctx context.Context, propertyID uuid.UUID) (*LateFeeRule, error)
	Upsert(ctx context.Context, rule *LateFeeRule) error
}

// RefundRepository persists refunds
type RefundRepository interface {
	// Create returns shared.ErrAlreadyExists when the transaction already has a refund
	Create(ctx context.Context, refund *Refund) error
	FindByID(ctx context.Context, id uuid.UUID) (*Refund, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Refund, error)
	FindByTransaction(ctx context.Context, transactionID uuid.UUID) (*Refund, error)
	SaveWithLock(ctx context.Context, refund *Refund) error
	FindByStatus(ctx context.Context, status RefundStatus, filter shared.Filter) ([]Refund, int64, error)
}

// TransactionAuditRepository is the append-only audit trail
type TransactionAuditRepository interface {
	Create(ctx context.Context, audit *TransactionAudit) error
	UpdateStatus(ctx context.Context, audit *TransactionAudit) error
	FindByReference(ctx context.Context, reference string) ([]TransactionAudit, error)
}

// WebhookEventRepository persists inbound gateway events
type WebhookEventRepository interface {
	// Create returns shared.ErrAlreadyExists on a duplicate dedup key
	Create(ctx context.Context, event *WebhookEvent) error
	FindByDedupKey(ctx context.Context, key string) (*WebhookEvent, error)
	FindByDedupKeyForUpdate(ctx context.Context, key string) (*WebhookEvent, error)
	SaveWithLock(ctx context.Context, event *WebhookEvent) error
}
