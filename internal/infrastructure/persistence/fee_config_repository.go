package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFeeConfigRepository implements finance.FeeConfigRepository using GORM
type GormFeeConfigRepository struct {
	db *gorm.DB
}

// NewGormFeeConfigRepository creates a new GormFeeConfigRepository
func NewGormFeeConfigRepository(db *gorm.DB) *GormFeeConfigRepository {
	return &GormFeeConfigRepository{db: db}
}

// FindActiveByChannel finds the active fee config for a channel
func (r *GormFeeConfigRepository) FindActiveByChannel(ctx context.Context, channel string) (*finance.FeeConfig, error) {
	var model models.FeeConfigModel
	if err := r.db.WithContext(ctx).
		Where("channel = ? AND active = ?", finance.NormalizeChannel(channel), true).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// DeactivateChannel retires every active config of a channel
func (r *GormFeeConfigRepository) DeactivateChannel(ctx context.Context, channel string) error {
	return r.db.WithContext(ctx).
		Model(&models.FeeConfigModel{}).
		Where("channel = ? AND active = ?", finance.NormalizeChannel(channel), true).
		Update("active", false).Error
}

// Create inserts a fee config
func (r *GormFeeConfigRepository) Create(ctx context.Context, cfg *finance.FeeConfig) error {
	return insertOnce(ctx, r.db, models.FeeConfigModelFromDomain(cfg))
}

// GormLateFeeRuleRepository implements finance.LateFeeRuleRepository using GORM
type GormLateFeeRuleRepository struct {
	db *gorm.DB
}

// NewGormLateFeeRuleRepository creates a new GormLateFeeRuleRepository
func NewGormLateFeeRuleRepository(db *gorm.DB) *GormLateFeeRuleRepository {
	return &GormLateFeeRuleRepository{db: db}
}

// FindByProperty finds the late fee rule of a property
func (r *GormLateFeeRuleRepository) FindByProperty(ctx context.Context, propertyID uuid.UUID) (*finance.LateFeeRule, error) {
	var model models.LateFeeRuleModel
	if err := r.db.WithContext(ctx).Where("property_id = ?", propertyID).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// Upsert creates or replaces the property's rule. rule takes the identity
// of the stored row.
func (r *GormLateFeeRuleRepository) Upsert(ctx context.Context, rule *finance.LateFeeRule) error {
	model := models.LateFeeRuleModelFromDomain(rule)
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "property_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "grace_days", "percentage", "fixed_amount", "updated_at"}),
	}).Create(model).Error; err != nil {
		return err
	}
	stored, err := r.FindByProperty(ctx, rule.PropertyID)
	if err != nil {
		return err
	}
	rule.ID = stored.ID
	rule.CreatedAt = stored.CreatedAt
	return nil
}

var (
	_ finance.FeeConfigRepository   = (*GormFeeConfigRepository)(nil)
	_ finance.LateFeeRuleRepository = (*GormLateFeeRuleRepository)(nil)
)
