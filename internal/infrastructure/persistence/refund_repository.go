package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRefundRepository implements finance.RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// Create inserts a refund. The unique transaction_id turns a second refund
// of the same posting into shared.ErrAlreadyExists.
func (r *GormRefundRepository) Create(ctx context.Context, refund *finance.Refund) error {
	return insertOnce(ctx, r.db, models.RefundModelFromDomain(refund))
}

// FindByID finds a refund by ID
func (r *GormRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Refund, error) {
	var model models.RefundModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a refund by ID and locks its row
func (r *GormRefundRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Refund, error) {
	var model models.RefundModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByTransaction finds the refund of a wallet transaction
func (r *GormRefundRepository) FindByTransaction(ctx context.Context, transactionID uuid.UUID) (*finance.Refund, error) {
	var model models.RefundModel
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormRefundRepository) SaveWithLock(ctx context.Context, refund *finance.Refund) error {
	model := models.RefundModelFromDomain(refund)
	model.Version = refund.Version + 1
	if err := updateVersioned(ctx, r.db, model, refund.Version); err != nil {
		return err
	}
	refund.Version = model.Version
	return nil
}

// FindByStatus lists refunds in a status, newest first. An empty status
// lists all refunds.
func (r *GormRefundRepository) FindByStatus(ctx context.Context, status finance.RefundStatus, filter shared.Filter) ([]finance.Refund, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RefundModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var refundModels []models.RefundModel
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&refundModels).Error; err != nil {
		return nil, 0, err
	}
	refunds := make([]finance.Refund, len(refundModels))
	for i, model := range refundModels {
		refunds[i] = *model.ToDomain()
	}
	return refunds, total, nil
}

var _ finance.RefundRepository = (*GormRefundRepository)(nil)
