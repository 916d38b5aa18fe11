package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const refundSweepBatchSize = 100

// RefundServiceConfig configures the RefundService
type RefundServiceConfig struct {
	ServiceConfig
	// HoldWindow is how long a failed transaction waits before the sweep
	// refunds it. Defaults to finance.DefaultRefundHoldWindow.
	HoldWindow time.Duration
}

// RefundService reverses wallet transactions. A transaction is refunded at
// most once and every approved refund posts exactly one compensating entry.
type RefundService struct {
	serviceBase
	holdWindow time.Duration
}

// NewRefundService creates a new RefundService
func NewRefundService(cfg RefundServiceConfig) *RefundService {
	hold := cfg.HoldWindow
	if hold <= 0 {
		hold = finance.DefaultRefundHoldWindow
	}
	return &RefundService{serviceBase: newServiceBase(cfg.ServiceConfig), holdWindow: hold}
}

// CreateRefundInput carries the inputs for CreateRefund. A zero Amount
// refunds the whole transaction; a zero Charge adds nothing.
type CreateRefundInput struct {
	TransactionID uuid.UUID
	Amount        valueobject.Money
	Charge        valueobject.Money
	Reason        string
}

// CreateRefund opens a pending refund for a transaction. A second refund for
// the same transaction fails with ErrAlreadyRefunded.
func (s *RefundService) CreateRefund(ctx context.Context, in CreateRefundInput) (*finance.Refund, error) {
	var refund *finance.Refund
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		refund, err = s.createRefundTx(ctx, repos, in, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("Refund created",
		zap.String("refund_id", refund.ID.String()),
		zap.String("transaction_id", in.TransactionID.String()),
		zap.String("total", refund.TotalMoney().String()))
	return refund, nil
}

func (s *RefundService) createRefundTx(ctx context.Context, repos TransactionalRepositories, in CreateRefundInput, auto bool) (*finance.Refund, error) {
	tx, err := repos.WalletTransactions().FindByIDForUpdate(ctx, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if _, err := repos.Refunds().FindByTransaction(ctx, tx.ID); err == nil {
		return nil, finance.ErrAlreadyRefunded
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	amount := in.Amount
	if amount.Currency() == "" {
		amount = tx.AmountMoney()
	}
	charge := in.Charge
	if charge.Currency() == "" {
		charge = valueobject.Zero(tx.Currency)
	}
	holdUntil := s.now()
	if tx.FailedAt != nil {
		holdUntil = tx.FailedAt.Add(s.holdWindow)
	}
	refund, err := finance.NewRefund(finance.NewRefundParams{
		Transaction:   tx,
		Amount:        amount,
		Charge:        charge,
		HoldUntil:     holdUntil,
		AutoGenerated: auto,
		Reason:        in.Reason,
	})
	if err != nil {
		return nil, err
	}
	if err := repos.Refunds().Create(ctx, refund); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, finance.ErrAlreadyRefunded
		}
		return nil, fmt.Errorf("create refund: %w", err)
	}
	return refund, nil
}

// Approve posts the compensating entry and completes the refund in one
// database transaction. A debit is reversed by a credit of the refund total
// and a credit by a debit, which can fail with ErrInsufficientFunds.
func (s *RefundService) Approve(ctx context.Context, refundID uuid.UUID) (*finance.Refund, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "approve")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrRefundID, refundID.String())

	var refund *finance.Refund
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		refund, err = s.approveTx(ctx, repos, refundID)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordRefund(ctx, refund.AutoGenerated)
	s.log(ctx).Info("Refund completed",
		zap.String("refund_id", refund.ID.String()),
		zap.String("transaction_id", refund.TransactionID.String()),
		zap.String("total", refund.TotalMoney().String()),
		zap.Bool("auto_generated", refund.AutoGenerated))
	return refund, nil
}

func (s *RefundService) approveTx(ctx context.Context, repos TransactionalRepositories, refundID uuid.UUID) (*finance.Refund, error) {
	// wallet lock first, so the refund row is only read here to find it
	peek, err := repos.Refunds().FindByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	wallet, err := lockWallet(ctx, repos, peek.WalletID)
	if err != nil {
		return nil, err
	}
	refund, err := repos.Refunds().FindByIDForUpdate(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if refund.Status == finance.RefundStatusCompleted {
		return nil, finance.ErrAlreadyRefunded
	}
	if err := refund.Approve(); err != nil {
		return nil, err
	}

	original, err := repos.WalletTransactions().FindByID(ctx, refund.TransactionID)
	if err != nil {
		return nil, err
	}
	reference := finance.RefundReference(refund.ID)
	description := "Refund of transaction " + original.ID.String()

	var compensating *finance.WalletTransaction
	switch original.Type.Opposite() {
	case finance.TransactionTypeCredit:
		compensating, _, err = creditLocked(ctx, repos, wallet, refund.TotalMoney(), &reference, description)
	default:
		compensating, _, err = debitLocked(ctx, repos, wallet, refund.TotalMoney(), &reference, description, finance.TransactionStatusSuccess)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := refund.Complete(compensating.ID, now); err != nil {
		return nil, err
	}
	if err := repos.Refunds().SaveWithLock(ctx, refund); err != nil {
		return nil, fmt.Errorf("save refund: %w", err)
	}

	total := refund.TotalMoney()
	audit := finance.NewTransactionAudit(finance.AuditSourceRefund, reference, "refund",
		finance.FeeSplit{Gross: total, Fee: valueobject.Zero(total.Currency()), Net: total}, finance.AuditStatusSuccess)
	audit.WalletTransactionID = uuidPtr(compensating.ID)
	audit.Note = "reverses " + original.ID.String()
	if err := repos.Audits().Create(ctx, audit); err != nil {
		return nil, fmt.Errorf("append audit: %w", err)
	}
	return refund, nil
}

// Reject closes a pending refund without touching the ledger
func (s *RefundService) Reject(ctx context.Context, refundID uuid.UUID, reason string) (*finance.Refund, error) {
	var refund *finance.Refund
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		refund, err = repos.Refunds().FindByIDForUpdate(ctx, refundID)
		if err != nil {
			return err
		}
		if err := refund.Reject(reason, s.now()); err != nil {
			return err
		}
		return repos.Refunds().SaveWithLock(ctx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}

// SweepResult summarizes one auto-refund run
type SweepResult struct {
	Refunded int
	Failed   int
}

// RunAutoRefundSweep refunds every wallet transaction that has been failed
// for longer than the hold window and has no refund yet. Each refund is
// created and approved in its own database transaction; one failure does
// not stop the sweep but is reported in the returned error.
func (s *RefundService) RunAutoRefundSweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "auto_sweep")
	defer span.End()

	cutoff := s.now().Add(-s.holdWindow)
	result := &SweepResult{}
	var errs []error
	after := uuid.Nil
	for {
		batch, err := s.repos.WalletTransactions().FindFailedWithoutRefund(ctx, cutoff, after, refundSweepBatchSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return result, fmt.Errorf("load failed transactions: %w", err)
		}
		for i := range batch {
			if err := s.autoRefund(ctx, &batch[i]); err != nil {
				if errors.Is(err, finance.ErrAlreadyRefunded) {
					continue
				}
				result.Failed++
				errs = append(errs, fmt.Errorf("auto refund %s: %w", batch[i].ID, err))
				s.log(ctx).Error("Auto refund failed",
					zap.String("transaction_id", batch[i].ID.String()),
					zap.Error(err))
				continue
			}
			result.Refunded++
		}
		if len(batch) < refundSweepBatchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	s.log(ctx).Info("Auto refund sweep finished",
		zap.Int("refunded", result.Refunded),
		zap.Int("failed", result.Failed))
	if err := errors.Join(errs...); err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	return result, nil
}

func (s *RefundService) autoRefund(ctx context.Context, tx *finance.WalletTransaction) error {
	var refund *finance.Refund
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		created, err := s.createRefundTx(ctx, repos, CreateRefundInput{
			TransactionID: tx.ID,
			Amount:        tx.AmountMoney(),
			Charge:        valueobject.Zero(tx.Currency),
			Reason:        "failed transaction past hold window",
		}, true)
		if err != nil {
			return err
		}
		refund, err = s.approveTx(ctx, repos, created.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.RecordRefund(ctx, true)
	s.log(ctx).Info("Auto refund completed",
		zap.String("refund_id", refund.ID.String()),
		zap.String("transaction_id", tx.ID.String()))
	return nil
}

// GetRefund returns a refund by id
func (s *RefundService) GetRefund(ctx context.Context, refundID uuid.UUID) (*finance.Refund, error) {
	return s.repos.Refunds().FindByID(ctx, refundID)
}

// ListRefunds returns refunds in a status, newest first
func (s *RefundService) ListRefunds(ctx context.Context, status finance.RefundStatus, filter shared.Filter) (shared.Paginated[finance.Refund], error) {
	items, total, err := s.repos.Refunds().FindByStatus(ctx, status, filter)
	if err != nil {
		return shared.Paginated[finance.Refund]{}, err
	}
	return shared.NewPaginated(items, total, filter), nil
}
