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

// GormInvoiceRepository implements finance.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds an invoice by ID and locks its row
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.Invoice, error) {
	var model models.InvoiceModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *finance.Invoice) error {
	return insertOnce(ctx, r.db, models.InvoiceModelFromDomain(invoice))
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *finance.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	model.Version = invoice.Version + 1
	if err := updateVersioned(ctx, r.db, model, invoice.Version); err != nil {
		return err
	}
	invoice.Version = model.Version
	return nil
}

// ExistsByTag reports whether an invoice carries tag
func (r *GormInvoiceRepository) ExistsByTag(ctx context.Context, tag string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("tag = ?", tag).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindPastDue returns one cursor page of invoices due before day
func (r *GormInvoiceRepository) FindPastDue(ctx context.Context, statuses []finance.InvoiceStatus, day time.Time, afterID uuid.UUID, limit int) ([]finance.Invoice, error) {
	query := r.db.WithContext(ctx).Where("due_date < ?", day.UTC())
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var invoiceModels []models.InvoiceModel
	if err := query.Order("id").Limit(clampBatch(limit)).Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]finance.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// FindByTenant lists a tenant's invoices by due date
func (r *GormInvoiceRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]finance.Invoice, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoiceModels []models.InvoiceModel
	if err := query.
		Order("due_date ASC, id ASC").
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	invoices := make([]finance.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, total, nil
}

// GormPaymentRepository implements finance.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a payment. A reference already used on the invoice gives
// shared.ErrAlreadyExists.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *finance.Payment) error {
	return insertOnce(ctx, r.db, models.PaymentModelFromDomain(payment))
}

// FindByInvoiceAndReference finds the payment a caller reference produced
func (r *GormPaymentRepository) FindByInvoiceAndReference(ctx context.Context, invoiceID uuid.UUID, reference string) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ? AND reference = ?", invoiceID, reference).
		First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByInvoice lists the payments applied to an invoice, oldest first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]finance.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]finance.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments, nil
}

// GormPrepaymentRepository implements finance.PrepaymentRepository using GORM
type GormPrepaymentRepository struct {
	db *gorm.DB
}

// NewGormPrepaymentRepository creates a new GormPrepaymentRepository
func NewGormPrepaymentRepository(db *gorm.DB) *GormPrepaymentRepository {
	return &GormPrepaymentRepository{db: db}
}

// Create inserts a prepayment
func (r *GormPrepaymentRepository) Create(ctx context.Context, prepayment *finance.Prepayment) error {
	return r.db.WithContext(ctx).Create(models.PrepaymentModelFromDomain(prepayment)).Error
}

// FindActiveByTenantForUpdate locks the tenant's drawable prepayments in
// FIFO order
func (r *GormPrepaymentRepository) FindActiveByTenantForUpdate(ctx context.Context, tenantID uuid.UUID, currency valueobject.Currency) ([]*finance.Prepayment, error) {
	var prepaymentModels []models.PrepaymentModel
	if err := forUpdate(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND currency = ? AND active = ? AND remaining > 0", tenantID, currency, true).
		Order("created_at ASC, id ASC").
		Find(&prepaymentModels).Error; err != nil {
		return nil, err
	}
	prepayments := make([]*finance.Prepayment, len(prepaymentModels))
	for i := range prepaymentModels {
		prepayments[i] = prepaymentModels[i].ToDomain()
	}
	return prepayments, nil
}

// FindByTenant lists all of a tenant's prepayments, oldest first
func (r *GormPrepaymentRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]finance.Prepayment, error) {
	var prepaymentModels []models.PrepaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC, id ASC").
		Find(&prepaymentModels).Error; err != nil {
		return nil, err
	}
	prepayments := make([]finance.Prepayment, len(prepaymentModels))
	for i, model := range prepaymentModels {
		prepayments[i] = *model.ToDomain()
	}
	return prepayments, nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormPrepaymentRepository) SaveWithLock(ctx context.Context, prepayment *finance.Prepayment) error {
	model := models.PrepaymentModelFromDomain(prepayment)
	model.Version = prepayment.Version + 1
	if err := updateVersioned(ctx, r.db, model, prepayment.Version); err != nil {
		return err
	}
	prepayment.Version = model.Version
	return nil
}

var (
	_ finance.InvoiceRepository    = (*GormInvoiceRepository)(nil)
	_ finance.PaymentRepository    = (*GormPaymentRepository)(nil)
	_ finance.PrepaymentRepository = (*GormPrepaymentRepository)(nil)
)
