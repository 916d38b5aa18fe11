package finance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementService_CreateInvoiceDrainsPrepaymentsOldestFirst(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	tenant := uuid.New()

	older, err := l.settlement.FundPrepayment(ctx, appfinance.FundPrepaymentInput{TenantID: tenant, Amount: ngn(t, "1000"), Reference: "pre-a"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	newer, err := l.settlement.FundPrepayment(ctx, appfinance.FundPrepaymentInput{TenantID: tenant, Amount: ngn(t, "2000"), Reference: "pre-b"})
	require.NoError(t, err)

	result := l.invoice(tenant, "1500")
	assert.Equal(t, "1500.00", result.Allocated.Amount().StringFixed(2))
	assert.Equal(t, finance.InvoiceStatusPaid, result.Invoice.Status)
	assert.NotNil(t, result.Invoice.PaidAt)

	prepayments, err := l.settlement.ListPrepayments(ctx, tenant)
	require.NoError(t, err)
	remaining := map[uuid.UUID]string{}
	for _, p := range prepayments {
		remaining[p.ID] = p.Remaining.StringFixed(2)
	}
	assert.Equal(t, "0.00", remaining[older.ID])
	assert.Equal(t, "1500.00", remaining[newer.ID])

	payments, err := l.settlement.ListPayments(ctx, result.Invoice.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	for _, p := range payments {
		assert.Equal(t, finance.PaymentMethodPrepayment, p.Method)
		assert.Equal(t, finance.PaymentStatusSuccess, p.Status)
		require.NotNil(t, p.SourceID)
	}
}

func TestSettlementService_ApplyPayment(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	invoice := l.invoice(uuid.New(), "1000").Invoice

	_, err := l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{
		InvoiceID: invoice.ID, Amount: ngn(t, "1000.01"), Method: finance.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, finance.ErrExceedsOutstanding)

	_, err = l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{
		InvoiceID: invoice.ID, Amount: ngn(t, "10"), Method: finance.PaymentMethodWallet,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	res, err := l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{
		InvoiceID: invoice.ID, Amount: ngn(t, "1000"), Reference: "teller-77",
	})
	require.NoError(t, err)
	assert.Equal(t, finance.PaymentMethodBankTransfer, res.Payment.Method)
	assert.Equal(t, invoice.TenantID, res.Payment.PayerID)
	assert.True(t, res.Remaining.IsZero())
	assert.Equal(t, finance.InvoiceStatusPaid, res.Invoice.Status)

	_, err = l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{
		InvoiceID: invoice.ID, Amount: ngn(t, "1"), Method: finance.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, finance.ErrAlreadySettled)

	_, err = l.settlement.CancelInvoice(ctx, invoice.ID)
	assert.ErrorIs(t, err, finance.ErrAlreadySettled)

	audits, err := appfinance.NewAuditService(l.cfg).ListByReference(ctx, "teller-77")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, "bank_transfer", audits[0].Channel)
}

func TestSettlementService_PayFromWalletIsAtomic(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	tenant := uuid.New()
	w := l.wallet(tenant)
	l.fund(w.ID, "300", "seed-1")
	invoice := l.invoice(tenant, "500").Invoice

	// insufficient funds leaves both sides untouched
	_, err := l.settlement.PayFromWallet(ctx, appfinance.PayFromWalletInput{
		InvoiceID: invoice.ID, WalletID: w.ID, Amount: ngn(t, "500"), Reference: "checkout-1",
	})
	assert.ErrorIs(t, err, finance.ErrInsufficientFunds)
	assert.Equal(t, "300.00", l.balance(w.ID))
	got, err := l.settlement.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", got.Outstanding.StringFixed(2))
	payments, err := l.settlement.ListPayments(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	_, err = l.settlement.PayFromWallet(ctx, appfinance.PayFromWalletInput{
		InvoiceID: invoice.ID, WalletID: w.ID, Amount: ngn(t, "300"),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	first, err := l.settlement.PayFromWallet(ctx, appfinance.PayFromWalletInput{
		InvoiceID: invoice.ID, WalletID: w.ID, Amount: ngn(t, "300"), Reference: "checkout-2",
	})
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, finance.InvoiceStatusPartiallyPaid, first.Invoice.Status)
	assert.Equal(t, "0.00", l.balance(w.ID))

	replay, err := l.settlement.PayFromWallet(ctx, appfinance.PayFromWalletInput{
		InvoiceID: invoice.ID, WalletID: w.ID, Amount: ngn(t, "300"), Reference: "checkout-2",
	})
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Transaction.ID, replay.Transaction.ID)
	assert.Equal(t, "200.00", replay.Invoice.Outstanding.StringFixed(2))
}

func TestSettlementService_CancelAndOverdue(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	tenant := uuid.New()
	open := l.invoice(tenant, "100").Invoice
	cancelled := l.invoice(tenant, "100").Invoice

	_, err := l.settlement.CancelInvoice(ctx, cancelled.ID)
	require.NoError(t, err)
	_, err = l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{
		InvoiceID: cancelled.ID, Amount: ngn(t, "10"), Method: finance.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, finance.ErrInvoiceCancelled)

	marked, err := l.settlement.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)

	l.clock.Advance(8 * 24 * time.Hour)
	marked, err = l.settlement.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := l.settlement.GetInvoice(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceStatusOverdue, got.Status)

	// overdue invoices still accept payment
	res, err := l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{
		InvoiceID: open.ID, Amount: ngn(t, "100"), Method: finance.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceStatusPaid, res.Invoice.Status)

	marked, err = l.settlement.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestPrepaymentAllocator_Allocate(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	tenant := uuid.New()
	invoice := l.invoice(tenant, "800").Invoice

	_, err := l.settlement.FundPrepayment(ctx, appfinance.FundPrepaymentInput{TenantID: tenant, Amount: ngn(t, "500")})
	require.NoError(t, err)

	allocator := appfinance.NewPrepaymentAllocator(l.cfg)
	_, err = allocator.Allocate(ctx, uuid.New(), invoice.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	res, err := allocator.Allocate(ctx, tenant, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", res.Allocated.Amount().StringFixed(2))
	assert.Equal(t, "300.00", res.Invoice.Outstanding.StringFixed(2))

	// nothing left to draw
	res, err = allocator.Allocate(ctx, tenant, invoice.ID)
	require.NoError(t, err)
	assert.True(t, res.Allocated.IsZero())

	got, err := l.settlement.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", got.Outstanding.StringFixed(2))
	assert.Equal(t, finance.InvoiceStatusPartiallyPaid, got.Status)
}

func TestSettlementService_ApplyPaymentReplaysReference(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	invoice := l.invoice(uuid.New(), "1000").Invoice
	in := appfinance.ApplyPaymentInput{InvoiceID: invoice.ID, Amount: ngn(t, "400"), Reference: "BANK-TRF-1"}

	first, err := l.settlement.ApplyPayment(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "600.00", first.Remaining.Amount().StringFixed(2))

	replay, err := l.settlement.ApplyPayment(ctx, in)
	require.NoError(t, err)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.Payment.ID, replay.Payment.ID)
	assert.Equal(t, "600.00", replay.Remaining.Amount().StringFixed(2))

	in.Amount = ngn(t, "300")
	_, err = l.settlement.ApplyPayment(ctx, in)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	payments, err := l.settlement.ListPayments(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	// the reference is scoped to its invoice
	other := l.invoice(invoice.TenantID, "1000").Invoice
	res, err := l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{InvoiceID: other.ID, Amount: ngn(t, "400"), Reference: "BANK-TRF-1"})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
}

func TestSettlementService_RejectsSubMinorAmounts(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	owner := uuid.New()
	wallet := l.wallet(owner)

	_, err := l.wallets.Credit(ctx, wallet.ID, ngn(t, "0.005"), "dust-1", "")
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)
	assert.Equal(t, "0.00", l.balance(wallet.ID))

	invoice := l.invoice(owner, "100").Invoice
	_, err = l.settlement.ApplyPayment(ctx, appfinance.ApplyPaymentInput{
		InvoiceID: invoice.ID, Amount: ngn(t, "99.995"), Method: finance.PaymentMethodCash,
	})
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)

	got, err := l.settlement.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.Outstanding.StringFixed(2))
	assert.Equal(t, finance.InvoiceStatusPending, got.Status)
}
