package finance_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletService_CreditIsIdempotentPerReference(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	w := l.wallet(uuid.New())

	first, err := l.wallets.Credit(ctx, w.ID, ngn(t, "250"), "dep-1", "deposit")
	require.NoError(t, err)
	assert.True(t, first.Created)

	again, err := l.wallets.Credit(ctx, w.ID, ngn(t, "250"), "dep-1", "deposit")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
	assert.Equal(t, "250.00", l.balance(w.ID))

	// the same reference on another wallet is a different posting
	other := l.wallet(uuid.New())
	res, err := l.wallets.Credit(ctx, other.ID, ngn(t, "10"), "dep-1", "deposit")
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestWalletService_DebitNeverOverdraws(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	w := l.wallet(uuid.New())
	l.fund(w.ID, "100", "seed-1")

	_, err := l.wallets.Debit(ctx, w.ID, ngn(t, "100.01"), "", "too much")
	require.Error(t, err)
	assert.ErrorIs(t, err, finance.ErrInsufficientFunds)
	assert.Equal(t, "100.00", l.balance(w.ID))

	page, err := l.wallets.ListTransactions(ctx, w.ID, shared.Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	res, err := l.wallets.Debit(ctx, w.ID, ngn(t, "100"), "", "everything")
	require.NoError(t, err)
	assert.Equal(t, "0.00", res.Transaction.BalanceAfter.StringFixed(2))
}

func TestWalletService_ConcurrentDebits(t *testing.T) {
	l := newLedger(t)
	w := l.wallet(uuid.New())
	l.fund(w.ID, "500", "seed-1")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.wallets.Debit(context.Background(), w.ID, ngn(t, "100"), fmt.Sprintf("debit-%d", i), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, finance.ErrInsufficientFunds):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, rejected)
	assert.Equal(t, "0.00", l.balance(w.ID))
}

func TestWalletService_PendingDebitLifecycle(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	w := l.wallet(uuid.New())
	l.fund(w.ID, "1000", "seed-1")

	_, err := l.wallets.DebitPending(ctx, w.ID, ngn(t, "100"), "", "payout")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	hold, err := l.wallets.DebitPending(ctx, w.ID, ngn(t, "300"), "payout-1", "payout")
	require.NoError(t, err)
	assert.Equal(t, finance.TransactionStatusPending, hold.Transaction.Status)
	assert.Equal(t, "700.00", l.balance(w.ID))

	failed, err := l.wallets.FailTransaction(ctx, hold.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.TransactionStatusFailed, failed.Status)
	require.NotNil(t, failed.FailedAt)
	assert.True(t, failed.FailedAt.Equal(l.clock.Now()))
	// funds stay withheld until refunded
	assert.Equal(t, "700.00", l.balance(w.ID))

	_, err = l.wallets.ConfirmTransaction(ctx, hold.Transaction.ID)
	assert.ErrorIs(t, err, finance.ErrInvalidTransition)
}

func TestWalletService_GetOrCreateWallet(t *testing.T) {
	l := newLedger(t)
	owner := uuid.New()

	first := l.wallet(owner)
	second := l.wallet(owner)
	assert.Equal(t, first.ID, second.ID)

	_, err := l.wallets.GetWallet(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
