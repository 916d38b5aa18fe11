package finance_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoice(t *testing.T, amount string, due time.Time) *finance.Invoice {
	t.Helper()
	inv, err := finance.NewInvoice(finance.NewInvoiceParams{
		TenantID:    uuid.New(),
		ApartmentID: uuid.New(),
		PropertyID:  uuid.New(),
		Amount:      ngn(amount),
		DueDate:     due,
	})
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	inv := newInvoice(t, "1000.009", time.Now())
	assert.Equal(t, finance.InvoiceStatusPending, inv.Status)
	assert.Equal(t, finance.InvoiceKindRent, inv.Kind)
	assert.Equal(t, "1000.00", inv.Amount.StringFixed(2))
	assert.True(t, inv.Outstanding.Equal(inv.Amount))

	_, err := finance.NewInvoice(finance.NewInvoiceParams{TenantID: uuid.New(), Amount: ngn("0"), DueDate: time.Now()})
	assert.ErrorIs(t, err, finance.ErrInvalidAmount)
}

func TestInvoice_ApplyPayment(t *testing.T) {
	now := time.Now()

	t.Run("partial then full", func(t *testing.T) {
		inv := newInvoice(t, "1000", now)

		applied, remaining, err := inv.ApplyPayment(ngn("400"), now)
		require.NoError(t, err)
		assert.Equal(t, "400.00", applied.StringFixed(2))
		assert.Equal(t, "600.00", remaining.StringFixed(2))
		assert.Equal(t, finance.InvoiceStatusPartiallyPaid, inv.Status)

		_, _, err = inv.ApplyPayment(ngn("400"), now)
		require.NoError(t, err)

		applied, remaining, err = inv.ApplyPayment(ngn("300"), now)
		require.NoError(t, err)
		assert.Equal(t, "200.00", applied.StringFixed(2), "only what is owed is applied")
		assert.True(t, remaining.IsZero())
		assert.Equal(t, finance.InvoiceStatusPaid, inv.Status)
		assert.NotNil(t, inv.PaidAt)

		_, _, err = inv.ApplyPayment(ngn("1"), now)
		assert.ErrorIs(t, err, finance.ErrAlreadySettled)
	})

	t.Run("rejects foreign currency", func(t *testing.T) {
		inv := newInvoice(t, "100", now)
		_, _, err := inv.ApplyPayment(valueobject.MustMoney("10", valueobject.USD), now)
		assert.ErrorIs(t, err, finance.ErrCurrencyMismatch)
	})
}

func TestInvoice_EnsureCanAccept(t *testing.T) {
	now := time.Now()
	inv := newInvoice(t, "500", now)

	assert.NoError(t, inv.EnsureCanAccept(ngn("500")))
	assert.ErrorIs(t, inv.EnsureCanAccept(ngn("500.01")), finance.ErrExceedsOutstanding)
	assert.ErrorIs(t, inv.EnsureCanAccept(ngn("0")), finance.ErrInvalidAmount)

	_, _, err := inv.ApplyPayment(ngn("500"), now)
	require.NoError(t, err)
	assert.ErrorIs(t, inv.EnsureCanAccept(ngn("1")), finance.ErrAlreadySettled)

	cancelled := newInvoice(t, "500", now)
	require.NoError(t, cancelled.Cancel())
	assert.ErrorIs(t, cancelled.EnsureCanAccept(ngn("1")), finance.ErrInvoiceCancelled)
}

func TestInvoice_MarkOverdue(t *testing.T) {
	today := time.Date(2026, 5, 10, 23, 30, 0, 0, time.UTC)

	t.Run("due today is not overdue", func(t *testing.T) {
		inv := newInvoice(t, "100", time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC))
		assert.False(t, inv.MarkOverdue(today))
		assert.Equal(t, 0, inv.DaysPastDue(today))
	})

	t.Run("past due flips and keeps outstanding", func(t *testing.T) {
		inv := newInvoice(t, "100", time.Date(2026, 5, 7, 18, 0, 0, 0, time.UTC))
		_, _, err := inv.ApplyPayment(ngn("40"), today)
		require.NoError(t, err)

		assert.True(t, inv.MarkOverdue(today))
		assert.Equal(t, finance.InvoiceStatusOverdue, inv.Status)
		assert.Equal(t, "60.00", inv.Outstanding.StringFixed(2))
		assert.Equal(t, 3, inv.DaysPastDue(today))
		assert.False(t, inv.MarkOverdue(today), "second pass is a no-op")
	})

	t.Run("overdue invoices still accept payment", func(t *testing.T) {
		inv := newInvoice(t, "100", today.AddDate(0, 0, -2))
		require.True(t, inv.MarkOverdue(today))
		_, _, err := inv.ApplyPayment(ngn("100"), today)
		require.NoError(t, err)
		assert.Equal(t, finance.InvoiceStatusPaid, inv.Status)
	})
}

func TestInvoice_Cancel(t *testing.T) {
	now := time.Now()
	inv := newInvoice(t, "100", now)
	_, _, err := inv.ApplyPayment(ngn("100"), now)
	require.NoError(t, err)
	assert.ErrorIs(t, inv.Cancel(), finance.ErrAlreadySettled)

	open := newInvoice(t, "100", now)
	require.NoError(t, open.Cancel())
	assert.Equal(t, finance.InvoiceStatusCancelled, open.Status)
	assert.NoError(t, open.Cancel())
}

func TestNewLateFeeInvoice(t *testing.T) {
	now := time.Now()
	source := newInvoice(t, "1000", now.AddDate(0, 0, -10))

	fee, err := finance.NewLateFeeInvoice(source, ngn("60"), now)
	require.NoError(t, err)
	assert.Equal(t, finance.InvoiceKindLateFee, fee.Kind)
	require.NotNil(t, fee.Tag)
	assert.Equal(t, finance.LateFeeTag(source.ID), *fee.Tag)
	assert.Equal(t, source.ID, *fee.SourceInvoiceID)
	assert.Equal(t, source.TenantID, fee.TenantID)
}
