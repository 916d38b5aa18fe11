package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const lateFeeBatchSize = 200

// LateFeeService generates late fee invoices for overdue rent. Each source
// invoice gets at most one fee, enforced by a unique tag.
type LateFeeService struct {
	serviceBase
}

// NewLateFeeService creates a new LateFeeService
func NewLateFeeService(cfg ServiceConfig) *LateFeeService {
	return &LateFeeService{serviceBase: newServiceBase(cfg)}
}

// ApplyLateFees creates fee invoices for every open invoice past its due
// date and grace period. Safe to run concurrently with itself: a lost race
// on the tag is counted as a skip. Returns the number of fees created.
func (s *LateFeeService) ApplyLateFees(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "late_fee", "apply")
	defer span.End()

	today := s.now()
	created := 0
	after := uuid.Nil
	for {
		batch, err := s.repos.Invoices().FindPastDue(ctx, finance.OpenInvoiceStatuses(), today, after, lateFeeBatchSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return created, fmt.Errorf("load past due invoices: %w", err)
		}
		for i := range batch {
			ok, err := s.applyLateFee(ctx, &batch[i], today)
			if err != nil {
				telemetry.RecordError(span, err)
				return created, err
			}
			if ok {
				created++
			}
		}
		if len(batch) < lateFeeBatchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	telemetry.SetAttributes(span, "late_fees_created", created)
	s.log(ctx).Info("Late fee run finished", zap.Int("created", created))
	return created, nil
}

func (s *LateFeeService) applyLateFee(ctx context.Context, source *finance.Invoice, today time.Time) (bool, error) {
	// fees are not charged on fees
	if source.Kind == finance.InvoiceKindLateFee {
		return false, nil
	}

	tag := finance.LateFeeTag(source.ID)
	exists, err := s.repos.Invoices().ExistsByTag(ctx, tag)
	if err != nil {
		return false, fmt.Errorf("check late fee tag: %w", err)
	}
	if exists {
		return false, nil
	}

	rule, err := s.repos.LateFeeRules().FindByProperty(ctx, source.PropertyID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load late fee rule: %w", err)
	}
	fee, ok := rule.Assess(source, today)
	if !ok {
		return false, nil
	}

	feeInvoice, err := finance.NewLateFeeInvoice(source, fee, today)
	if err != nil {
		return false, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, err := createInvoiceTx(ctx, repos, feeInvoice, today)
		return err
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		s.log(ctx).Debug("Late fee already created by a concurrent run",
			zap.String("source_invoice_id", source.ID.String()))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create late fee invoice: %w", err)
	}

	s.log(ctx).Info("Late fee created",
		zap.String("source_invoice_id", source.ID.String()),
		zap.String("fee_invoice_id", feeInvoice.ID.String()),
		zap.String("fee", fee.String()),
		zap.Int("days_past_due", source.DaysPastDue(today)))
	return true, nil
}

// UpsertLateFeeRuleInput carries a property's late fee policy
type UpsertLateFeeRuleInput struct {
	PropertyID  uuid.UUID
	Enabled     bool
	GraceDays   int
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
}

// UpsertLateFeeRule replaces the property's late fee policy
func (s *LateFeeService) UpsertLateFeeRule(ctx context.Context, in UpsertLateFeeRuleInput) (*finance.LateFeeRule, error) {
	rule, err := finance.NewLateFeeRule(in.PropertyID, in.Enabled, in.GraceDays, in.Percentage, in.FixedAmount)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.LateFeeRules().Upsert(ctx, rule)
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// GetLateFeeRule returns the property's late fee policy
func (s *LateFeeService) GetLateFeeRule(ctx context.Context, propertyID uuid.UUID) (*finance.LateFeeRule, error) {
	return s.repos.LateFeeRules().FindByProperty(ctx, propertyID)
}
