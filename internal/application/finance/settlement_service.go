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

// overdueBatchSize bounds how many invoices one overdue pass loads at a time
const overdueBatchSize = 200

// SettlementService applies payments to invoices. Each invoice is settled
// under its row lock and outstanding is always re-read after the lock.
type SettlementService struct {
	serviceBase
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(cfg ServiceConfig) *SettlementService {
	return &SettlementService{serviceBase: newServiceBase(cfg)}
}

// CreateInvoiceInput carries the inputs for CreateInvoice
type CreateInvoiceInput struct {
	TenantID    uuid.UUID
	ApartmentID uuid.UUID
	PropertyID  uuid.UUID
	Kind        finance.InvoiceKind
	Amount      valueobject.Money
	DueDate     time.Time
	Description string
}

// InvoiceResult is an invoice with what prepayment allocation applied to it
type InvoiceResult struct {
	Invoice   *finance.Invoice
	Allocated valueobject.Money
}

// CreateInvoice stores a new invoice and drains the tenant's prepayments
// into it in the same database transaction
func (s *SettlementService) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*InvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()

	invoice, err := finance.NewInvoice(finance.NewInvoiceParams{
		TenantID:    in.TenantID,
		ApartmentID: in.ApartmentID,
		PropertyID:  in.PropertyID,
		Kind:        in.Kind,
		Amount:      in.Amount,
		DueDate:     in.DueDate,
		Description: in.Description,
	})
	if err != nil {
		return nil, err
	}

	var allocated valueobject.Money
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		allocated, err = createInvoiceTx(ctx, repos, invoice, s.now())
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.log(ctx).Info("Invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("tenant_id", invoice.TenantID.String()),
		zap.String("amount", invoice.AmountMoney().String()),
		zap.String("allocated", allocated.String()))
	return &InvoiceResult{Invoice: invoice, Allocated: allocated}, nil
}

// createInvoiceTx is shared with the late fee job
func createInvoiceTx(ctx context.Context, repos TransactionalRepositories, invoice *finance.Invoice, at time.Time) (valueobject.Money, error) {
	if err := repos.Invoices().Create(ctx, invoice); err != nil {
		return valueobject.Money{}, err
	}
	return allocatePrepayments(ctx, repos, invoice, at)
}

// ApplyPaymentInput describes money received against an invoice
type ApplyPaymentInput struct {
	InvoiceID    uuid.UUID
	PayerID      uuid.UUID
	Amount       valueobject.Money
	Method       finance.PaymentMethod
	Reference    string
	Channel      string
	Confirmation map[string]string
}

// ApplyPaymentResult reports what a payment did to its invoice. Duplicate
// is set when the reference had already settled and nothing new happened.
type ApplyPaymentResult struct {
	Payment   *finance.Payment
	Invoice   *finance.Invoice
	Applied   valueobject.Money
	Remaining valueobject.Money
	Duplicate bool
}

// ApplyPayment records a successful payment and reduces the invoice's
// outstanding by it. Paid invoices fail with ErrAlreadySettled and amounts
// above outstanding with ErrExceedsOutstanding; neither writes anything.
//
// A non-empty Reference is an idempotency key per invoice: a retry returns
// the original payment, and reusing it for another amount is a conflict.
func (s *SettlementService) ApplyPayment(ctx context.Context, in ApplyPaymentInput) (*ApplyPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "apply_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, in.InvoiceID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
	)

	method := in.Method
	if method == "" {
		method = finance.PaymentMethodBankTransfer
	}
	if method == finance.PaymentMethodWallet || method == finance.PaymentMethodPrepayment {
		return nil, shared.ErrInvalidInput.WithMessage("Use PayFromWallet or prepayment allocation for " + string(method) + " payments")
	}

	var result ApplyPaymentResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := repos.Invoices().FindByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if in.Reference != "" {
			existing, err := repos.Payments().FindByInvoiceAndReference(ctx, invoice.ID, in.Reference)
			switch {
			case err == nil:
				if !existing.AmountMoney().Equals(in.Amount) {
					return shared.ErrAlreadyExists.WithMessagef("Reference %s already settled %s on this invoice", in.Reference, existing.AmountMoney())
				}
				result = ApplyPaymentResult{
					Payment:   existing,
					Invoice:   invoice,
					Applied:   existing.AmountMoney(),
					Remaining: invoice.OutstandingMoney(),
					Duplicate: true,
				}
				return nil
			case !errors.Is(err, shared.ErrNotFound):
				return err
			}
		}
		payer := in.PayerID
		if payer == uuid.Nil {
			payer = invoice.TenantID
		}
		payment, applied, err := settleLocked(ctx, repos, invoice, settlement{
			PayerID:      payer,
			Amount:       in.Amount,
			Method:       method,
			Reference:    stringPtr(in.Reference),
			Confirmation: in.Confirmation,
		}, s.now())
		if err != nil {
			return err
		}

		channel := in.Channel
		if channel == "" {
			channel = string(method)
		}
		audit := finance.NewTransactionAudit(finance.AuditSourceSettlement, paymentAuditReference(in.Reference, payment.ID), channel,
			finance.ComputeFee(nil, in.Amount), finance.AuditStatusSuccess)
		audit.PaymentID = uuidPtr(payment.ID)
		audit.InvoiceID = uuidPtr(invoice.ID)
		if err := repos.Audits().Create(ctx, audit); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		result = ApplyPaymentResult{Payment: payment, Invoice: invoice, Applied: applied, Remaining: invoice.OutstandingMoney()}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.Duplicate {
		s.log(ctx).Info("Payment replayed",
			zap.String("invoice_id", in.InvoiceID.String()),
			zap.String("payment_id", result.Payment.ID.String()))
		return &result, nil
	}
	s.log(ctx).Info("Payment applied",
		zap.String("invoice_id", in.InvoiceID.String()),
		zap.String("applied", result.Applied.String()),
		zap.String("remaining", result.Remaining.String()),
		zap.String("status", string(result.Invoice.Status)))
	return &result, nil
}

// PayFromWalletInput carries the inputs for PayFromWallet
type PayFromWalletInput struct {
	InvoiceID uuid.UUID
	WalletID  uuid.UUID
	Amount    valueobject.Money
	// Reference makes the wallet debit idempotent; retries with the same
	// reference settle at most once
	Reference string
}

// PayFromWalletResult reports a wallet-funded payment. Duplicate is set when
// the reference was already used and nothing new happened.
type PayFromWalletResult struct {
	Transaction *finance.WalletTransaction
	Payment     *finance.Payment
	Invoice     *finance.Invoice
	Duplicate   bool
}

// PayFromWallet debits the wallet and settles the invoice atomically. The
// wallet lock is taken before the invoice lock.
func (s *SettlementService) PayFromWallet(ctx context.Context, in PayFromWalletInput) (*PayFromWalletResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "pay_from_wallet")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, in.InvoiceID.String(),
		telemetry.SpanAttrWalletID, in.WalletID.String(),
	)

	if in.Reference == "" {
		return nil, shared.ErrInvalidInput.WithMessage("Wallet payments require a reference")
	}
	reference := walletPaymentReference(in.InvoiceID, in.Reference)

	var result PayFromWalletResult
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		wallet, err := lockWallet(ctx, repos, in.WalletID)
		if err != nil {
			return err
		}
		existing, err := findPosting(ctx, repos, wallet.ID, &reference)
		if err != nil {
			return err
		}
		if existing != nil {
			result = PayFromWalletResult{Transaction: existing, Duplicate: true}
			result.Invoice, err = repos.Invoices().FindByID(ctx, in.InvoiceID)
			return err
		}

		invoice, err := repos.Invoices().FindByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if err := invoice.EnsureCanAccept(in.Amount); err != nil {
			return err
		}
		tx, _, err := debitLocked(ctx, repos, wallet, in.Amount, &reference, "Invoice "+invoice.ID.String(), finance.TransactionStatusSuccess)
		if err != nil {
			return err
		}
		payment, _, err := settleLocked(ctx, repos, invoice, settlement{
			PayerID:   wallet.OwnerID,
			Amount:    in.Amount,
			Method:    finance.PaymentMethodWallet,
			Reference: &reference,
			SourceID:  uuidPtr(tx.ID),
		}, s.now())
		if err != nil {
			return err
		}

		audit := finance.NewTransactionAudit(finance.AuditSourceSettlement, reference, string(finance.PaymentMethodWallet),
			finance.ComputeFee(nil, in.Amount), finance.AuditStatusSuccess)
		audit.WalletTransactionID = uuidPtr(tx.ID)
		audit.PaymentID = uuidPtr(payment.ID)
		audit.InvoiceID = uuidPtr(invoice.ID)
		if err := repos.Audits().Create(ctx, audit); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		result = PayFromWalletResult{Transaction: tx, Payment: payment, Invoice: invoice}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !result.Duplicate {
		s.metrics.RecordPosting(ctx, string(finance.TransactionTypeDebit), string(in.Amount.Currency()))
	}
	return &result, nil
}

// CancelInvoice voids an unpaid invoice. Paid invoices fail with
// ErrAlreadySettled.
func (s *SettlementService) CancelInvoice(ctx context.Context, invoiceID uuid.UUID) (*finance.Invoice, error) {
	var invoice *finance.Invoice
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		invoice, err = repos.Invoices().FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		before := invoice.Status
		if err := invoice.Cancel(); err != nil {
			return err
		}
		if before == invoice.Status {
			return nil
		}
		return repos.Invoices().SaveWithLock(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkOverdue moves every open invoice due before today to overdue without
// touching outstanding. It returns how many invoices changed.
func (s *SettlementService) MarkOverdue(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "mark_overdue")
	defer span.End()

	today := s.now()
	statuses := []finance.InvoiceStatus{finance.InvoiceStatusPending, finance.InvoiceStatusPartiallyPaid}
	marked := 0
	after := uuid.Nil
	for {
		batch, err := s.repos.Invoices().FindPastDue(ctx, statuses, today, after, overdueBatchSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return marked, err
		}
		for i := range batch {
			changed, err := s.markOverdue(ctx, batch[i].ID, today)
			if err != nil {
				telemetry.RecordError(span, err)
				return marked, err
			}
			if changed {
				marked++
			}
		}
		if len(batch) < overdueBatchSize {
			break
		}
		after = batch[len(batch)-1].ID
	}

	if marked > 0 {
		s.log(ctx).Info("Invoices marked overdue", zap.Int("count", marked))
	}
	return marked, nil
}

func (s *SettlementService) markOverdue(ctx context.Context, invoiceID uuid.UUID, today time.Time) (bool, error) {
	changed := false
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoice, err := repos.Invoices().FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if !invoice.MarkOverdue(today) {
			return nil
		}
		changed = true
		return repos.Invoices().SaveWithLock(ctx, invoice)
	})
	return changed, err
}

// FundPrepaymentInput carries the inputs for FundPrepayment
type FundPrepaymentInput struct {
	TenantID  uuid.UUID
	Amount    valueobject.Money
	Reference string
}

// FundPrepayment records pre-funded credit for a tenant
func (s *SettlementService) FundPrepayment(ctx context.Context, in FundPrepaymentInput) (*finance.Prepayment, error) {
	prepayment, err := finance.NewPrepayment(in.TenantID, in.Amount, stringPtr(in.Reference))
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.Prepayments().Create(ctx, prepayment)
	})
	if err != nil {
		return nil, err
	}
	return prepayment, nil
}

// GetInvoice returns an invoice by id
func (s *SettlementService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*finance.Invoice, error) {
	return s.repos.Invoices().FindByID(ctx, invoiceID)
}

// ListInvoices returns a tenant's invoices, newest due date first
func (s *SettlementService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[finance.Invoice], error) {
	items, total, err := s.repos.Invoices().FindByTenant(ctx, tenantID, filter)
	if err != nil {
		return shared.Paginated[finance.Invoice]{}, err
	}
	return shared.NewPaginated(items, total, filter), nil
}

// ListPayments returns the payments recorded against an invoice
func (s *SettlementService) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]finance.Payment, error) {
	if _, err := s.repos.Invoices().FindByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repos.Payments().FindByInvoice(ctx, invoiceID)
}

// ListPrepayments returns a tenant's prepayments
func (s *SettlementService) ListPrepayments(ctx context.Context, tenantID uuid.UUID) ([]finance.Prepayment, error) {
	return s.repos.Prepayments().FindByTenant(ctx, tenantID)
}

func walletPaymentReference(invoiceID uuid.UUID, reference string) string {
	return "invoice:" + invoiceID.String() + ":" + reference
}

func paymentAuditReference(reference string, paymentID uuid.UUID) string {
	if reference != "" {
		return reference
	}
	return "payment:" + paymentID.String()
}

