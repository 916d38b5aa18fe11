package persistence

import (
	"context"

	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormWebhookEventRepository implements finance.WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Create inserts an event. A redelivery hits the unique dedup key and gets
// shared.ErrAlreadyExists.
func (r *GormWebhookEventRepository) Create(ctx context.Context, event *finance.WebhookEvent) error {
	return insertOnce(ctx, r.db, models.WebhookEventModelFromDomain(event))
}

// FindByDedupKey finds an event by its dedup key
func (r *GormWebhookEventRepository) FindByDedupKey(ctx context.Context, key string) (*finance.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", key).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByDedupKeyForUpdate finds an event by its dedup key and locks its row
func (r *GormWebhookEventRepository) FindByDedupKeyForUpdate(ctx context.Context, key string) (*finance.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := forUpdate(r.db.WithContext(ctx)).Where("dedup_key = ?", key).First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormWebhookEventRepository) SaveWithLock(ctx context.Context, event *finance.WebhookEvent) error {
	model := models.WebhookEventModelFromDomain(event)
	model.Version = event.Version + 1
	if err := updateVersioned(ctx, r.db, model, event.Version); err != nil {
		return err
	}
	event.Version = model.Version
	return nil
}

// GormTransactionAuditRepository implements finance.TransactionAuditRepository using GORM
type GormTransactionAuditRepository struct {
	db *gorm.DB
}

// NewGormTransactionAuditRepository creates a new GormTransactionAuditRepository
func NewGormTransactionAuditRepository(db *gorm.DB) *GormTransactionAuditRepository {
	return &GormTransactionAuditRepository{db: db}
}

// Create appends an audit row
func (r *GormTransactionAuditRepository) Create(ctx context.Context, audit *finance.TransactionAudit) error {
	return r.db.WithContext(ctx).Create(models.TransactionAuditModelFromDomain(audit)).Error
}

// UpdateStatus resolves a pending audit row. Nothing else on the row moves.
func (r *GormTransactionAuditRepository) UpdateStatus(ctx context.Context, audit *finance.TransactionAudit) error {
	result := r.db.WithContext(ctx).
		Model(&models.TransactionAuditModel{}).
		Where("id = ? AND status = ?", audit.ID, finance.AuditStatusPending).
		Updates(map[string]any{
			"status":     audit.Status,
			"updated_at": audit.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByReference lists the audit trail of a reference, oldest first
func (r *GormTransactionAuditRepository) FindByReference(ctx context.Context, reference string) ([]finance.TransactionAudit, error) {
	var auditModels []models.TransactionAuditModel
	if err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("created_at ASC, id ASC").
		Find(&auditModels).Error; err != nil {
		return nil, err
	}
	audits := make([]finance.TransactionAudit, len(auditModels))
	for i, model := range auditModels {
		audits[i] = *model.ToDomain()
	}
	return audits, nil
}

var (
	_ finance.WebhookEventRepository     = (*GormWebhookEventRepository)(nil)
	_ finance.TransactionAuditRepository = (*GormTransactionAuditRepository)(nil)
)
