package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func ngn(t *testing.T, amount string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoney(decimal.RequireFromString(amount), valueobject.NGN)
	require.NoError(t, err)
	return m
}

func ref(s string) *string { return &s }

func createWallet(t *testing.T, db *gorm.DB) *finance.Wallet {
	t.Helper()
	w, err := finance.NewWallet(uuid.New(), valueobject.NGN)
	require.NoError(t, err)
	require.NoError(t, NewGormWalletRepository(db).Create(context.Background(), w))
	return w
}

func TestGormWalletRepository_Create(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormWalletRepository(db)
	ctx := context.Background()

	w := createWallet(t, db)

	t.Run("round trips the wallet", func(t *testing.T) {
		found, err := repo.FindByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, w.OwnerID, found.OwnerID)
		assert.Equal(t, valueobject.NGN, found.Currency)
		assert.True(t, found.Balance.IsZero())
		assert.True(t, found.Active)
		assert.Equal(t, 1, found.Version)

		byOwner, err := repo.FindByOwner(ctx, w.OwnerID, valueobject.NGN)
		require.NoError(t, err)
		assert.Equal(t, w.ID, byOwner.ID)
	})

	t.Run("second wallet for owner and currency already exists", func(t *testing.T) {
		dup, err := finance.NewWallet(w.OwnerID, valueobject.NGN)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("same owner may hold another currency", func(t *testing.T) {
		usd, err := finance.NewWallet(w.OwnerID, valueobject.USD)
		require.NoError(t, err)
		assert.NoError(t, repo.Create(ctx, usd))
	})

	t.Run("missing wallet is not found", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = repo.FindByIDForUpdate(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormWalletRepository_SaveWithLock(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormWalletRepository(db)
	ctx := context.Background()

	w := createWallet(t, db)
	stale, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)

	_, err = w.Credit(ngn(t, "150.00"), ref("c1"), "top up")
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, w))
	assert.Equal(t, 2, w.Version)

	t.Run("saving again in the same flow keeps working", func(t *testing.T) {
		_, err := w.Debit(ngn(t, "50.00"), ref("d1"), "rent", finance.TransactionStatusSuccess)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, w))
		assert.Equal(t, 3, w.Version)

		found, err := repo.FindByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "100", found.Balance.String())
		assert.Equal(t, 3, found.Version)
	})

	t.Run("stale copy is rejected", func(t *testing.T) {
		_, err := stale.Credit(ngn(t, "1.00"), nil, "late writer")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

		found, err := repo.FindByID(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, "100", found.Balance.String())
	})

	t.Run("zero values are written", func(t *testing.T) {
		w.Deactivate()
		require.NoError(t, repo.SaveWithLock(ctx, w))
		found, err := repo.FindByID(ctx, w.ID)
		require.NoError(t, err)
		assert.False(t, found.Active)
	})
}

func TestGormWalletTransactionRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormWalletTransactionRepository(db)
	ctx := context.Background()
	w := createWallet(t, db)

	credit, err := w.Credit(ngn(t, "500.00"), ref("pay_1"), "gateway")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, credit))

	t.Run("duplicate reference on the same wallet already exists", func(t *testing.T) {
		again, err := w.Credit(ngn(t, "500.00"), ref("pay_1"), "gateway")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, again), shared.ErrAlreadyExists)
	})

	t.Run("postings without reference never collide", func(t *testing.T) {
		a, err := w.Credit(ngn(t, "1.00"), nil, "a")
		require.NoError(t, err)
		b, err := w.Credit(ngn(t, "1.00"), nil, "b")
		require.NoError(t, err)
		assert.NoError(t, repo.Create(ctx, a))
		assert.NoError(t, repo.Create(ctx, b))
	})

	t.Run("finds by reference", func(t *testing.T) {
		found, err := repo.FindByReference(ctx, w.ID, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, credit.ID, found.ID)
		assert.Equal(t, finance.TransactionTypeCredit, found.Type)

		_, err = repo.FindByReference(ctx, w.ID, "nope")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("lists newest first with total", func(t *testing.T) {
		txs, total, err := repo.FindByWallet(ctx, w.ID, shared.Filter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, txs, 2)
	})

	t.Run("status moves only once from pending", func(t *testing.T) {
		pending, err := w.Debit(ngn(t, "10.00"), ref("hold_1"), "hold", finance.TransactionStatusPending)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, pending))

		require.NoError(t, pending.Fail(time.Now()))
		require.NoError(t, repo.UpdateStatus(ctx, pending))

		found, err := repo.FindByID(ctx, pending.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.TransactionStatusFailed, found.Status)
		require.NotNil(t, found.FailedAt)

		assert.ErrorIs(t, repo.UpdateStatus(ctx, pending), shared.ErrConcurrencyConflict)
	})
}

func TestGormWalletTransactionRepository_FindFailedWithoutRefund(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormWalletTransactionRepository(db)
	refunds := NewGormRefundRepository(db)
	ctx := context.Background()
	w := createWallet(t, db)
	_, err := w.Credit(ngn(t, "1000.00"), nil, "seed")
	require.NoError(t, err)

	now := time.Now().UTC()
	failed := make([]*finance.WalletTransaction, 3)
	for i := range failed {
		tx, err := w.Debit(ngn(t, "10.00"), nil, "hold", finance.TransactionStatusPending)
		require.NoError(t, err)
		require.NoError(t, tx.Fail(now.Add(-48*time.Hour)))
		require.NoError(t, repo.Create(ctx, tx))
		failed[i] = tx
	}
	recent, err := w.Debit(ngn(t, "10.00"), nil, "hold", finance.TransactionStatusPending)
	require.NoError(t, err)
	require.NoError(t, recent.Fail(now))
	require.NoError(t, repo.Create(ctx, recent))

	r, err := finance.NewRefund(finance.NewRefundParams{
		Transaction: failed[0],
		Amount:      ngn(t, "10.00"),
		Charge:      ngn(t, "0"),
		HoldUntil:   now,
	})
	require.NoError(t, err)
	require.NoError(t, refunds.Create(ctx, r))

	cutoff := now.Add(-24 * time.Hour)
	first, err := repo.FindFailedWithoutRefund(ctx, cutoff, uuid.Nil, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)

	rest, err := repo.FindFailedWithoutRefund(ctx, cutoff, first[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	got := []uuid.UUID{first[0].ID, rest[0].ID}
	assert.ElementsMatch(t, []uuid.UUID{failed[1].ID, failed[2].ID}, got)
}

func newTestInvoice(t *testing.T, amount string, due time.Time) *finance.Invoice {
	t.Helper()
	inv, err := finance.NewInvoice(finance.NewInvoiceParams{
		TenantID:    uuid.New(),
		ApartmentID: uuid.New(),
		PropertyID:  uuid.New(),
		Amount:      ngn(t, amount),
		DueDate:     due,
	})
	require.NoError(t, err)
	return inv
}

func TestGormInvoiceRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	pastDue := []*finance.Invoice{
		newTestInvoice(t, "100.00", today.AddDate(0, 0, -5)),
		newTestInvoice(t, "200.00", today.AddDate(0, 0, -1)),
	}
	for _, inv := range pastDue {
		require.NoError(t, repo.Create(ctx, inv))
	}
	notDue := newTestInvoice(t, "300.00", today)
	require.NoError(t, repo.Create(ctx, notDue))

	t.Run("past due pages by id", func(t *testing.T) {
		page, err := repo.FindPastDue(ctx, finance.OpenInvoiceStatuses(), today, uuid.Nil, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		next, err := repo.FindPastDue(ctx, finance.OpenInvoiceStatuses(), today, page[0].ID, 1)
		require.NoError(t, err)
		require.Len(t, next, 1)
		end, err := repo.FindPastDue(ctx, finance.OpenInvoiceStatuses(), today, next[0].ID, 1)
		require.NoError(t, err)
		assert.Empty(t, end)

		assert.ElementsMatch(t, []uuid.UUID{pastDue[0].ID, pastDue[1].ID}, []uuid.UUID{page[0].ID, next[0].ID})
	})

	t.Run("applies payment through SaveWithLock", func(t *testing.T) {
		inv, err := repo.FindByIDForUpdate(ctx, pastDue[0].ID)
		require.NoError(t, err)
		_, _, err = inv.ApplyPayment(ngn(t, "100.00"), today)
		require.NoError(t, err)
		require.NoError(t, repo.SaveWithLock(ctx, inv))

		found, err := repo.FindByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.InvoiceStatusPaid, found.Status)
		assert.True(t, found.Outstanding.IsZero())
		assert.NotNil(t, found.PaidAt)

		page, err := repo.FindPastDue(ctx, finance.OpenInvoiceStatuses(), today, uuid.Nil, 10)
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})

	t.Run("late fee tag is unique", func(t *testing.T) {
		fee := ngn(t, "10.00")
		first, err := finance.NewLateFeeInvoice(pastDue[1], fee, today)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, first))

		second, err := finance.NewLateFeeInvoice(pastDue[1], fee, today)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, second), shared.ErrAlreadyExists)

		exists, err := repo.ExistsByTag(ctx, finance.LateFeeTag(pastDue[1].ID))
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestGormPrepaymentRepository_FindActiveByTenantForUpdate(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPrepaymentRepository(db)
	ctx := context.Background()
	tenant := uuid.New()

	older, err := finance.NewPrepayment(tenant, ngn(t, "300.00"), nil)
	require.NoError(t, err)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer, err := finance.NewPrepayment(tenant, ngn(t, "100.00"), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, older))

	drained, err := finance.NewPrepayment(tenant, ngn(t, "50.00"), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, drained))
	require.NoError(t, drained.Draw(ngn(t, "50.00")))
	require.NoError(t, repo.SaveWithLock(ctx, drained))

	active, err := repo.FindActiveByTenantForUpdate(ctx, tenant, valueobject.NGN)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, older.ID, active[0].ID)
	assert.Equal(t, newer.ID, active[1].ID)

	all, err := repo.FindByTenant(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGormFeeConfigRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormFeeConfigRepository(db)
	ctx := context.Background()

	_, err := repo.FindActiveByChannel(ctx, "card")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	first, err := finance.NewFeeConfig("card", decimal.RequireFromString("1.5"), decimal.RequireFromString("100"))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, first))

	require.NoError(t, repo.DeactivateChannel(ctx, "CARD"))
	second, err := finance.NewFeeConfig("card", decimal.RequireFromString("2"), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, second))

	active, err := repo.FindActiveByChannel(ctx, "Card")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.True(t, active.Percentage.Equal(decimal.NewFromInt(2)))
}

func TestGormLateFeeRuleRepository_Upsert(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormLateFeeRuleRepository(db)
	ctx := context.Background()
	property := uuid.New()

	rule, err := finance.NewLateFeeRule(property, true, 3, decimal.NewFromInt(5), decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, rule))
	storedID := rule.ID

	replacement, err := finance.NewLateFeeRule(property, false, 7, decimal.Zero, decimal.NewFromInt(25))
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, replacement))
	assert.Equal(t, storedID, replacement.ID)

	found, err := repo.FindByProperty(ctx, property)
	require.NoError(t, err)
	assert.False(t, found.Enabled)
	assert.Equal(t, 7, found.GraceDays)
	assert.True(t, found.FixedAmount.Equal(decimal.NewFromInt(25)))
}

func TestGormRefundRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormRefundRepository(db)
	txRepo := NewGormWalletTransactionRepository(db)
	ctx := context.Background()
	w := createWallet(t, db)

	credit, err := w.Credit(ngn(t, "200.00"), ref("c"), "credit")
	require.NoError(t, err)
	require.NoError(t, txRepo.Create(ctx, credit))

	newRefund := func() *finance.Refund {
		r, err := finance.NewRefund(finance.NewRefundParams{
			Transaction: credit,
			Amount:      ngn(t, "200.00"),
			Charge:      ngn(t, "1.50"),
			HoldUntil:   time.Now(),
			Reason:      "requested",
		})
		require.NoError(t, err)
		return r
	}

	r := newRefund()
	require.NoError(t, repo.Create(ctx, r))
	assert.ErrorIs(t, repo.Create(ctx, newRefund()), shared.ErrAlreadyExists)

	byTx, err := repo.FindByTransaction(ctx, credit.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, byTx.ID)
	assert.Equal(t, "201.5", byTx.Total.String())

	require.NoError(t, r.Approve())
	require.NoError(t, r.Complete(uuid.New(), time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, r))

	completed, total, err := repo.FindByStatus(ctx, finance.RefundStatusCompleted, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, completed, 1)
	assert.NotNil(t, completed[0].CompensatingTransactionID)

	pending, total, err := repo.FindByStatus(ctx, finance.RefundStatusPending, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pending)
}

func TestGormWebhookEventRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()

	body := []byte(`{"event":"charge.success","data":{"reference":"ps_1","amount":50000,"metadata":{"wallet_id":"` + uuid.NewString() + `"}}}`)
	payload, err := finance.ParseWebhookPayload(body, valueobject.NGN)
	require.NoError(t, err)

	event := finance.NewWebhookEvent("paystack", payload, body)
	require.NoError(t, event.MarkValidated())
	require.NoError(t, repo.Create(ctx, event))

	redelivery := finance.NewWebhookEvent("paystack", payload, body)
	require.NoError(t, redelivery.MarkValidated())
	assert.ErrorIs(t, repo.Create(ctx, redelivery), shared.ErrAlreadyExists)

	locked, err := repo.FindByDedupKeyForUpdate(ctx, event.DedupKey)
	require.NoError(t, err)
	assert.Equal(t, event.ID, locked.ID)
	assert.Equal(t, body, locked.Payload)

	require.NoError(t, locked.MarkApplied())
	require.NoError(t, locked.MarkProcessed(time.Now()))
	require.NoError(t, repo.SaveWithLock(ctx, locked))

	found, err := repo.FindByDedupKey(ctx, event.DedupKey)
	require.NoError(t, err)
	assert.Equal(t, finance.WebhookEventProcessed, found.Status)
	assert.Equal(t, 1, found.Attempts)
	assert.NotNil(t, found.ProcessedAt)
}

func TestGormTransactionAuditRepository(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormTransactionAuditRepository(db)
	ctx := context.Background()

	split := finance.ComputeFee(nil, ngn(t, "100.00"))
	audit := finance.NewTransactionAudit(finance.AuditSourceWebhook, "ps_9", "card", split, finance.AuditStatusPending)
	require.NoError(t, repo.Create(ctx, audit))

	require.NoError(t, audit.Resolve(finance.AuditStatusSuccess))
	require.NoError(t, repo.UpdateStatus(ctx, audit))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, audit), shared.ErrConcurrencyConflict)

	trail, err := repo.FindByReference(ctx, "ps_9")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, finance.AuditStatusSuccess, trail[0].Status)
	assert.Equal(t, "card", trail[0].Channel)
}

func TestGormTransactionScope_RollsBack(t *testing.T) {
	db := setupLedgerTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()
	w, err := finance.NewWallet(uuid.New(), valueobject.NGN)
	require.NoError(t, err)

	boom := shared.NewDomainError("BOOM", "boom")
	err = scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
		require.NoError(t, repos.Wallets().Create(ctx, w))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = NewGormWalletRepository(db).FindByID(ctx, w.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// newMockLedgerDB opens gorm over sqlmock with the postgres dialect
func newMockLedgerDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func TestGormWalletRepository_FindByIDForUpdate_LocksRow(t *testing.T) {
	db, mock, mockDB := newMockLedgerDB(t)
	defer mockDB.Close()
	repo := NewGormWalletRepository(db)

	walletID := uuid.New()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "owner_id", "currency", "balance", "active", "version", "created_at", "updated_at"}).
		AddRow(walletID.String(), uuid.NewString(), "NGN", "120.50", true, 4, now, now)

	mock.ExpectQuery(`SELECT \* FROM "wallets" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
		WithArgs(walletID, 1).
		WillReturnRows(rows)

	w, err := repo.FindByIDForUpdate(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, "120.5", w.Balance.String())
	assert.Equal(t, 4, w.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormWalletRepository_SaveWithLock_ChecksVersion(t *testing.T) {
	db, mock, mockDB := newMockLedgerDB(t)
	defer mockDB.Close()
	repo := NewGormWalletRepository(db)

	w, err := finance.NewWallet(uuid.New(), valueobject.NGN)
	require.NoError(t, err)
	w.Version = 4

	mock.ExpectExec(`UPDATE "wallets" SET .* WHERE .*version = .*`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SaveWithLock(context.Background(), w)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Equal(t, 4, w.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
