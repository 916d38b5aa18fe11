package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/infrastructure/cache"
	"github.com/rentals/backend/internal/infrastructure/payment"
	"github.com/rentals/backend/internal/infrastructure/persistence"
	"github.com/rentals/backend/internal/infrastructure/persistence/models"
	"github.com/rentals/backend/internal/infrastructure/scheduler"
	"github.com/rentals/backend/internal/interfaces/http/handler"
	"github.com/rentals/backend/internal/interfaces/http/middleware"
	"github.com/rentals/backend/internal/interfaces/http/router"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const webhookSecret = "sk_test_webhook"

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type testAPI struct {
	t          *testing.T
	engine     *gin.Engine
	db         *gorm.DB
	wallets    *appfinance.WalletService
	settlement *appfinance.SettlementService
	scheduler  *scheduler.Scheduler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	svc := appfinance.ServiceConfig{
		Scope:  persistence.NewGormTransactionScope(db),
		Repos:  persistence.NewGormRepositories(db),
		Logger: zap.NewNop(),
	}
	wallets := appfinance.NewWalletService(svc)
	settlement := appfinance.NewSettlementService(svc)
	fees := appfinance.NewFeeService(svc)
	lateFees := appfinance.NewLateFeeService(svc)
	refunds := appfinance.NewRefundService(appfinance.RefundServiceConfig{ServiceConfig: svc})
	idempotency := cache.NewMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = idempotency.Close() })
	reconciliation := appfinance.NewReconciliationService(appfinance.ReconciliationConfig{
		ServiceConfig: svc,
		Verifier:      payment.NewHMACSignatureVerifier(finance.PaymentProviderPaystack, webhookSecret),
		Idempotency:   idempotency,
	})

	jobs := scheduler.New(scheduler.Config{JobTimeout: time.Minute}, cache.NewMemoryJobLock(), nil, zap.NewNop())
	require.NoError(t, jobs.Register(scheduler.Job{Name: scheduler.JobOverdue, Run: settlement.MarkOverdue}))
	require.NoError(t, jobs.Register(scheduler.Job{Name: scheduler.JobLateFees, Run: lateFees.ApplyLateFees}))

	engine := gin.New()
	engine.Use(middleware.RequestID())
	router.NewRouter(engine).Register(router.LedgerGroups(router.Handlers{
		Webhook: handler.NewWebhookHandler(reconciliation, 0),
		Wallet:  handler.NewWalletHandler(wallets, valueobject.NGN),
		Invoice: handler.NewInvoiceHandler(settlement, appfinance.NewPrepaymentAllocator(svc), valueobject.NGN),
		Refund:  handler.NewRefundHandler(refunds, valueobject.NGN),
		Fee:     handler.NewFeeHandler(fees, lateFees, valueobject.NGN),
		Audit:   handler.NewAuditHandler(appfinance.NewAuditService(svc)),
		Job:     handler.NewJobHandler(jobs),
		System:  handler.NewSystemHandler("ledger", "test", nil),
	})...).Setup()

	return &testAPI{t: t, engine: engine, db: db, wallets: wallets, settlement: settlement, scheduler: jobs}
}

// apiResponse mirrors dto.Response with Data left raw for typed decoding
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func (a *testAPI) do(method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func decode[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func (a *testAPI) wallet(owner uuid.UUID) *finance.Wallet {
	a.t.Helper()
	w, err := a.wallets.GetOrCreateWallet(context.Background(), owner, valueobject.NGN)
	require.NoError(a.t, err)
	return w
}

func (a *testAPI) fund(walletID uuid.UUID, amount, reference string) {
	a.t.Helper()
	_, err := a.wallets.Credit(context.Background(), walletID, ngn(a.t, amount), reference, "seed")
	require.NoError(a.t, err)
}

func (a *testAPI) invoice(tenant uuid.UUID, amount string, due time.Time) *finance.Invoice {
	a.t.Helper()
	result, err := a.settlement.CreateInvoice(context.Background(), appfinance.CreateInvoiceInput{
		TenantID:    tenant,
		ApartmentID: uuid.New(),
		PropertyID:  uuid.New(),
		Kind:        finance.InvoiceKindRent,
		Amount:      ngn(a.t, amount),
		DueDate:     due,
	})
	require.NoError(a.t, err)
	return result.Invoice
}

func ngn(t *testing.T, amount string) valueobject.Money {
	t.Helper()
	m, err := valueobject.NewMoney(decimal.RequireFromString(amount), valueobject.NGN)
	require.NoError(t, err)
	return m
}
