package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentals/backend/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of ledger spans
const TracerName = "rental-ledger"

// Span attribute keys
const (
	SpanAttrWalletID  = "wallet_id"
	SpanAttrReference = "reference"
	SpanAttrInvoiceID = "invoice_id"
	SpanAttrRefundID  = "refund_id"
	SpanAttrEvent     = "event"
	SpanAttrAmount    = "amount"
	SpanAttrJob       = "job"
	SpanAttrErrorCode = "error.code"
)

// SpanOption adds start attributes to a span
type SpanOption func(*[]attribute.KeyValue)

func WithAttribute(key string, value any) SpanOption {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, toAttribute(key, value))
	}
}

// StartSpan starts an internal span on the global provider; the caller
// ends it. The provider is looked up per call so tests can swap it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	for _, opt := range opts {
		opt(&attrs)
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartServiceSpan names the span "{service}.{op}", e.g. "wallet.credit"
func StartServiceSpan(ctx context.Context, service, op string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+op, opts...)
}

// SetAttributes takes alternating keys and values. A non-string key or a
// trailing key with no value is dropped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	span.SetAttributes(attrs...)
}

// RecordError records err on the span. A business rejection (insufficient
// funds, already settled, bad signature) is tagged with its code and leaves
// the span status alone; anything else marks the span failed.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		span.AddEvent("rejected", trace.WithAttributes(attribute.String(SpanAttrErrorCode, domainErr.Code)))
		span.SetAttributes(attribute.String(SpanAttrErrorCode, domainErr.Code))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
