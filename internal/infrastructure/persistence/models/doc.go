// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities are free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers (ToDomain / FromDomain) convert between the two
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, AggregateModel)
// - wallet.go: Wallets and their append-only transaction ledger
// - settlement.go: Invoices, payments and prepayments
// - config.go: Fee configs and late fee rules
// - reconciliation.go: Refunds, audit trail and webhook events
//
// The SQL migrations under /migrations create the same tables for postgres;
// AutoMigrate over All() is only used by tests.
package models

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&WalletModel{},
		&WalletTransactionModel{},
		&InvoiceModel{},
		&PaymentModel{},
		&PrepaymentModel{},
		&FeeConfigModel{},
		&LateFeeRuleModel{},
		&RefundModel{},
		&TransactionAuditModel{},
		&WebhookEventModel{},
	}
}
