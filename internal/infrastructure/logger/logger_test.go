package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log, err := New(&Config{Level: "error", Format: "json", Output: "stderr", Service: "rental-ledger"}, core, nil)
	require.NoError(t, err)

	log.Info("posted", zap.String("wallet_id", "w-1"))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "w-1", fields["wallet_id"])
	assert.Equal(t, "rental-ledger", fields["service"])
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.log")
	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	log.Info("hello")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestNew_UnwritableOutput(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "ledger.log")})
	assert.Error(t, err)
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, FromContext(ctx))
	assert.Equal(t, Correlation{}, CorrelationFrom(ctx))

	ctx, _ = WithRequestID(ctx, zap.NewNop(), "req-1")
	ctx, _ = WithJob(ctx, FromContext(ctx), "auto-refunds")
	ctx = WithReference(ctx, "PSK_1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "auto-refunds", GetJob(ctx))
	assert.Equal(t, "PSK_1", GetReference(ctx))
	assert.Empty(t, GetTraceID(ctx))
}

func TestFor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-7")
	For(WithReference(ctx, "deposit-42"), base).Info("credited")
	For(context.Background(), base).Info("plain")

	require.Equal(t, 2, logs.Len())
	tagged := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", tagged["request_id"])
	assert.Equal(t, "deposit-42", tagged["reference"])
	assert.NotContains(t, tagged, "job")
	assert.NotContains(t, tagged, "trace_id")
	assert.Empty(t, logs.All()[1].ContextMap())
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-9"); c.Next() })
	r.Use(GinMiddleware(log, WithSkipPaths("/health")), Recovery(log))
	r.GET("/ok", func(c *gin.Context) {
		assert.Equal(t, "req-9", GetRequestID(c.Request.Context()))
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/retry", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	for _, tc := range []struct {
		path   string
		status int
		level  zapcore.Level
	}{
		{"/ok", http.StatusOK, zapcore.InfoLevel},
		{"/missing", http.StatusNotFound, zapcore.WarnLevel},
		{"/retry", http.StatusServiceUnavailable, zapcore.WarnLevel},
		{"/panic", http.StatusInternalServerError, zapcore.ErrorLevel},
	} {
		t.Run(tc.path, func(t *testing.T) {
			logs.TakeAll()
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, w.Code)

			requests := logs.FilterMessage("HTTP Request").All()
			require.Len(t, requests, 1)
			assert.Equal(t, tc.level, requests[0].Level)
			assert.Equal(t, "req-9", requests[0].ContextMap()["request_id"])
		})
	}

	logs.TakeAll()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, logs.FilterMessage("HTTP Request").Len())
}

func TestRecovery_Envelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("request_id", "req-3"); c.Next() })
	r.Use(Recovery(zap.NewNop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"Internal server error","request_id":"req-3"}}`, w.Body.String())
}

func TestStatementKind(t *testing.T) {
	assert.Equal(t, StatementLock, StatementKind(`SELECT * FROM "wallets" WHERE id = $1 LIMIT 1 FOR UPDATE`))
	assert.Equal(t, StatementRead, StatementKind("  select count(*) from invoices"))
	assert.Equal(t, StatementRead, StatementKind("WITH due AS (SELECT 1) SELECT * FROM due"))
	assert.Equal(t, StatementWrite, StatementKind(`UPDATE "wallets" SET balance = $1`))
	assert.Equal(t, StatementWrite, StatementKind(`INSERT INTO "webhook_events" ... ON CONFLICT DO NOTHING`))
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info,
		WithSlowThreshold(time.Second),
		WithLockWaitThreshold(10*time.Millisecond))
	ctx, _ := WithJob(context.Background(), zap.NewNop(), "late-fees")
	ctx = WithReference(ctx, "late_fee:abc")
	read := func() (string, int64) { return "SELECT 1", 1 }
	lock := func() (string, int64) { return `SELECT * FROM "wallets" WHERE id = 'w' FOR UPDATE`, 1 }

	gl.Trace(ctx, time.Now(), read, nil)
	gl.Trace(ctx, time.Now().Add(-100*time.Millisecond), read, nil)
	gl.Trace(ctx, time.Now().Add(-100*time.Millisecond), lock, nil)
	gl.Trace(ctx, time.Now(), read, gormlogger.ErrRecordNotFound)
	gl.Trace(ctx, time.Now(), read, errors.New("deadlock detected"))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "SQL Query", entries[0].Message)
	assert.Equal(t, "late-fees", entries[0].ContextMap()["job"])
	assert.Equal(t, "late_fee:abc", entries[0].ContextMap()["reference"])
	assert.Equal(t, StatementRead, entries[0].ContextMap()["statement"])

	// 100ms is under the query threshold but over the lock threshold
	assert.Equal(t, "SQL Query", entries[1].Message)
	assert.Equal(t, "Slow row lock", entries[2].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "SQL Error", entries[3].Message)

	logs.TakeAll()
	gl.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), read, errors.New("x"))
	assert.Zero(t, logs.Len())
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("DEBUG"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
