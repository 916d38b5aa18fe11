package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/persistence"
	"github.com/rentals/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const webhookSecret = "sk_test_service"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Now().UTC()} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type ledger struct {
	t          *testing.T
	db         *gorm.DB
	clock      *clock
	cfg        appfinance.ServiceConfig
	wallets    *appfinance.WalletService
	settlement *appfinance.SettlementService
	refunds    *appfinance.RefundService
	fees       *appfinance.FeeService
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	c := newClock()
	cfg := appfinance.ServiceConfig{
		Scope:  persistence.NewGormTransactionScope(db),
		Repos:  persistence.NewGormRepositories(db),
		Logger: zap.NewNop(),
		Now:    c.Now,
	}
	return &ledger{
		t:          t,
		db:         db,
		clock:      c,
		cfg:        cfg,
		wallets:    appfinance.NewWalletService(cfg),
		settlement: appfinance.NewSettlementService(cfg),
		refunds:    appfinance.NewRefundService(appfinance.RefundServiceConfig{ServiceConfig: cfg, HoldWindow: 7 * 24 * time.Hour}),
		fees:       appfinance.NewFeeService(cfg),
	}
}

func (l *ledger) wallet(owner uuid.UUID) *finance.Wallet {
	l.t.Helper()
	w, err := l.wallets.GetOrCreateWallet(context.Background(), owner, valueobject.NGN)
	require.NoError(l.t, err)
	return w
}

func (l *ledger) fund(walletID uuid.UUID, amount, reference string) {
	l.t.Helper()
	_, err := l.wallets.Credit(context.Background(), walletID, ngn(l.t, amount), reference, "seed")
	require.NoError(l.t, err)
}

func (l *ledger) balance(walletID uuid.UUID) string {
	l.t.Helper()
	m, err := l.wallets.GetBalance(context.Background(), walletID)
	require.NoError(l.t, err)
	return m.Amount().StringFixed(2)
}

func (l *ledger) invoice(tenant uuid.UUID, amount string) *appfinance.InvoiceResult {
	l.t.Helper()
	result, err := l.settlement.CreateInvoice(context.Background(), appfinance.CreateInvoiceInput{
		TenantID:   tenant,
		PropertyID: uuid.New(),
		Kind:       finance.InvoiceKindRent,
		Amount:     ngn(l.t, amount),
		DueDate:    l.clock.Now().AddDate(0, 0, 7),
	})
	require.NoError(l.t, err)
	return result
}

func ngn(t *testing.T, amount string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoney(decimal.RequireFromString(amount), valueobject.NGN)
	require.NoError(t, err)
	return m
}

// MockTransactionVerifier is a mock gateway
type MockTransactionVerifier struct {
	mock.Mock
}

func (m *MockTransactionVerifier) VerifyTransaction(ctx context.Context, reference string) (*finance.GatewayTransaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.GatewayTransaction), args.Error(1)
}

// MockIdempotencyStore is a mock dedup cache
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}
