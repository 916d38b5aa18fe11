package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormWalletRepository implements finance.WalletRepository using GORM
type GormWalletRepository struct {
	db *gorm.DB
}

// NewGormWalletRepository creates a new GormWalletRepository
func NewGormWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// FindByID finds a wallet by ID
func (r *GormWalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Wallet, error) {
	var model models.WalletModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a wallet by ID and locks its row until the
// transaction ends
func (r *GormWalletRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Wallet, error) {
	var model models.WalletModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByOwner finds the owner's wallet in a currency
func (r *GormWalletRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, currency valueobject.Currency) (*finance.Wallet, error) {
	var model models.WalletModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND currency = ?", ownerID, currency).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new wallet
func (r *GormWalletRepository) Create(ctx context.Context, wallet *finance.Wallet) error {
	return insertOnce(ctx, r.db, models.WalletModelFromDomain(wallet))
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormWalletRepository) SaveWithLock(ctx context.Context, wallet *finance.Wallet) error {
	model := models.WalletModelFromDomain(wallet)
	model.Version = wallet.Version + 1
	if err := updateVersioned(ctx, r.db, model, wallet.Version); err != nil {
		return err
	}
	wallet.Version = model.Version
	return nil
}

// GormWalletTransactionRepository implements finance.WalletTransactionRepository using GORM
type GormWalletTransactionRepository struct {
	db *gorm.DB
}

// NewGormWalletTransactionRepository creates a new GormWalletTransactionRepository
func NewGormWalletTransactionRepository(db *gorm.DB) *GormWalletTransactionRepository {
	return &GormWalletTransactionRepository{db: db}
}

// Create appends a posting to the ledger
func (r *GormWalletTransactionRepository) Create(ctx context.Context, tx *finance.WalletTransaction) error {
	return insertOnce(ctx, r.db, models.WalletTransactionModelFromDomain(tx))
}

// FindByID finds a wallet transaction by ID
func (r *GormWalletTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.WalletTransaction, error) {
	var model models.WalletTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a wallet transaction by ID and locks its row
func (r *GormWalletTransactionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.WalletTransaction, error) {
	var model models.WalletTransactionModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByReference finds the posting a wallet recorded under reference
func (r *GormWalletTransactionRepository) FindByReference(ctx context.Context, walletID uuid.UUID, reference string) (*finance.WalletTransaction, error) {
	var model models.WalletTransactionModel
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND reference = ?", walletID, reference).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// UpdateStatus persists a status change. Only pending rows move, so a
// second resolution of the same posting affects nothing.
func (r *GormWalletTransactionRepository) UpdateStatus(ctx context.Context, tx *finance.WalletTransaction) error {
	var failedAt *time.Time
	if tx.FailedAt != nil {
		at := tx.FailedAt.UTC()
		failedAt = &at
	}
	result := r.db.WithContext(ctx).
		Model(&models.WalletTransactionModel{}).
		Where("id = ? AND status = ?", tx.ID, finance.TransactionStatusPending).
		Updates(map[string]any{
			"status":     tx.Status,
			"failed_at":  failedAt,
			"updated_at": tx.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByWallet lists a wallet's postings, newest first
func (r *GormWalletTransactionRepository) FindByWallet(ctx context.Context, walletID uuid.UUID, filter shared.Filter) ([]finance.WalletTransaction, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&models.WalletTransactionModel{}).Where("wallet_id = ?", walletID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txModels []models.WalletTransactionModel
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&txModels).Error; err != nil {
		return nil, 0, err
	}
	txs := make([]finance.WalletTransaction, len(txModels))
	for i, model := range txModels {
		txs[i] = *model.ToDomain()
	}
	return txs, total, nil
}

// FindFailedWithoutRefund returns failed postings older than cutoff that no
// refund references yet
func (r *GormWalletTransactionRepository) FindFailedWithoutRefund(ctx context.Context, cutoff time.Time, afterID uuid.UUID, limit int) ([]finance.WalletTransaction, error) {
	var txModels []models.WalletTransactionModel
	query := r.db.WithContext(ctx).
		Where("status = ? AND failed_at IS NOT NULL AND failed_at <= ?", finance.TransactionStatusFailed, cutoff.UTC()).
		Where("NOT EXISTS (?)", r.db.Model(&models.RefundModel{}).
			Select("1").
			Where("refunds.transaction_id = wallet_transactions.id"))
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	if err := query.Order("id").Limit(clampBatch(limit)).Find(&txModels).Error; err != nil {
		return nil, err
	}
	txs := make([]finance.WalletTransaction, len(txModels))
	for i, model := range txModels {
		txs[i] = *model.ToDomain()
	}
	return txs, nil
}

var (
	_ finance.WalletRepository            = (*GormWalletRepository)(nil)
	_ finance.WalletTransactionRepository = (*GormWalletTransactionRepository)(nil)
)
