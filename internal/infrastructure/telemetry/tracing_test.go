package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	walletID := uuid.New()

	_, span := StartServiceSpan(context.Background(), "wallet", "credit", WithAttribute(SpanAttrWalletID, walletID))
	SetAttributes(span, SpanAttrReference, "ref-1", SpanAttrAmount, 2500, "dangling")
	RecordError(span, errors.New("connection reset"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "wallet.credit", s.Name)
	assert.Equal(t, codes.Error, s.Status.Code)

	attrs := attrMap(s.Attributes)
	assert.Equal(t, walletID.String(), attrs[SpanAttrWalletID])
	assert.Equal(t, "ref-1", attrs[SpanAttrReference])
	assert.Equal(t, "2500", attrs[SpanAttrAmount])
	assert.NotContains(t, attrs, "dangling")
	require.Len(t, s.Events, 1)
	assert.Equal(t, "exception", s.Events[0].Name)
}

func TestRecordError_BusinessRejection(t *testing.T) {
	exporter := setupTestTracer(t)

	_, span := StartServiceSpan(context.Background(), "wallet", "debit")
	err := fmt.Errorf("debit: %w", shared.NewDomainError("INSUFFICIENT_FUNDS", "Insufficient funds"))
	RecordError(span, err)
	span.End()

	s := exporter.GetSpans()[0]
	assert.Equal(t, codes.Unset, s.Status.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", attrMap(s.Attributes)[SpanAttrErrorCode])
	require.Len(t, s.Events, 1)
	assert.Equal(t, "rejected", s.Events[0].Name)
}

func TestTracingHelpers_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(nil, "k", "v")
		RecordError(nil, errors.New("x"))
	})
}

func TestDisabledProviders(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	tp, err := NewTracerProvider(ctx, Config{}, log)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	tp.EnableSpanProfiles()
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, MetricsConfig{}, log)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(ctx))

	lp, err := NewLoggerProvider(ctx, LogsConfig{}, log)
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.Nil(t, lp.ZapCore(0))
	assert.NoError(t, lp.Shutdown(ctx))

	p, err := NewProfiler(ProfilerConfig{}, log)
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresAddress(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "ledger"}, zap.NewNop())
	assert.Error(t, err)
}

func TestWithProfilingLabels_RunsCallback(t *testing.T) {
	calls := 0
	WithProfilingLabels(context.Background(), map[string]string{"job": "auto-refund", "": "x"}, func(context.Context) { calls++ })
	WithProfilingLabels(context.Background(), nil, func(context.Context) { calls++ })
	assert.Equal(t, 2, calls)
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestExporterResource(t *testing.T) {
	res, err := Exporter{ServiceName: "rental-ledger", Environment: "staging"}.resource()
	require.NoError(t, err)
	attrs := attrMap(res.Attributes())
	assert.Equal(t, "rental-ledger", attrs["service.name"])
	assert.Equal(t, ServiceVersion, attrs["service.version"])
	assert.Equal(t, "staging", attrs["deployment.environment.name"])

	res, err = Exporter{ServiceName: "rental-ledger"}.resource()
	require.NoError(t, err)
	assert.NotContains(t, attrMap(res.Attributes()), "deployment.environment.name")
}

func TestProfileTags(t *testing.T) {
	assert.Equal(t, map[string]string{"env": "production", "hostname": "ledger-0"}, profileTags("production", "ledger-0"))
	assert.Empty(t, profileTags("", ""))
}
