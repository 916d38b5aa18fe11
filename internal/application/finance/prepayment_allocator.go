package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PrepaymentAllocator drains a tenant's prepayments into an invoice, oldest
// first. The whole allocation commits or rolls back as one unit.
type PrepaymentAllocator struct {
	serviceBase
}

// NewPrepaymentAllocator creates a new PrepaymentAllocator
func NewPrepaymentAllocator(cfg ServiceConfig) *PrepaymentAllocator {
	return &PrepaymentAllocator{serviceBase: newServiceBase(cfg)}
}

// Allocate applies the tenant's active prepayments to an existing invoice,
// for credit funded after the invoice was billed. A paid or cancelled
// invoice allocates nothing.
func (a *PrepaymentAllocator) Allocate(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "prepayment", "allocate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	var result InvoiceResult
	err := a.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := repos.Invoices().FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.TenantID != tenantID {
			return shared.ErrInvalidInput.WithMessage("Invoice does not belong to tenant")
		}
		allocated, err := allocatePrepayments(ctx, repos, invoice, a.now())
		if err != nil {
			return err
		}
		result = InvoiceResult{Invoice: invoice, Allocated: allocated}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if result.Allocated.IsPositive() {
		a.log(ctx).Info("Prepayments allocated",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.String("applied", result.Allocated.String()))
	}
	return &result, nil
}

// allocatePrepayments runs inside the caller's transaction with invoice
// already locked. One payment row is written per prepayment consumed.
func allocatePrepayments(ctx context.Context, repos TransactionalRepositories, invoice *finance.Invoice, at time.Time) (valueobject.Money, error) {
	total := valueobject.Zero(invoice.Currency)
	if !invoice.Status.IsOpen() || !invoice.Outstanding.IsPositive() {
		return total, nil
	}

	prepayments, err := repos.Prepayments().FindActiveByTenantForUpdate(ctx, invoice.TenantID, invoice.Currency)
	if err != nil {
		return total, fmt.Errorf("lock prepayments: %w", err)
	}

	for _, line := range finance.PlanFIFOAllocation(prepayments, invoice.OutstandingMoney()) {
		if err := line.Prepayment.Draw(line.Amount); err != nil {
			return total, err
		}
		if err := repos.Prepayments().SaveWithLock(ctx, line.Prepayment); err != nil {
			return total, fmt.Errorf("save prepayment: %w", err)
		}
		_, applied, err := settleLocked(ctx, repos, invoice, settlement{
			PayerID:  invoice.TenantID,
			Amount:   line.Amount,
			Method:   finance.PaymentMethodPrepayment,
			SourceID: uuidPtr(line.Prepayment.ID),
		}, at)
		if err != nil {
			return total, err
		}
		if total, err = total.Add(applied); err != nil {
			return total, err
		}
	}
	return total, nil
}
