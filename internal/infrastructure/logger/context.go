package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	correlationKey
)

// Correlation identifies what a unit of work is acting on. Every field is
// optional; a webhook delivery has a request and a reference, a sweep has
// a job.
type Correlation struct {
	RequestID string
	Job       string
	// Reference is the idempotency reference of the money movement
	Reference string
}

func (c Correlation) fields() []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if c.RequestID != "" {
		fields = append(fields, zap.String("request_id", c.RequestID))
	}
	if c.Job != "" {
		fields = append(fields, zap.String("job", c.Job))
	}
	if c.Reference != "" {
		fields = append(fields, zap.String("reference", c.Reference))
	}
	return fields
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// CorrelationFrom returns the correlation carried by ctx
func CorrelationFrom(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey).(Correlation)
	return c
}

func withCorrelation(ctx context.Context, update func(*Correlation)) context.Context {
	c := CorrelationFrom(ctx)
	update(&c)
	return context.WithValue(ctx, correlationKey, c)
}

// WithRequestID tags ctx with the HTTP request id and attaches a request
// scoped logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = withCorrelation(ctx, func(c *Correlation) { c.RequestID = requestID })
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithJob tags ctx with a scheduler job name
func WithJob(ctx context.Context, logger *zap.Logger, job string) (context.Context, *zap.Logger) {
	ctx = withCorrelation(ctx, func(c *Correlation) { c.Job = job })
	enriched := logger.With(zap.String("job", job))
	return WithContext(ctx, enriched), enriched
}

// WithReference tags ctx with the reference of the money movement in flight.
// SQL logged under ctx carries it too.
func WithReference(ctx context.Context, reference string) context.Context {
	return withCorrelation(ctx, func(c *Correlation) { c.Reference = reference })
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	return CorrelationFrom(ctx).RequestID
}

// GetJob retrieves the scheduler job name from context
func GetJob(ctx context.Context) string {
	return CorrelationFrom(ctx).Job
}

// GetReference retrieves the money movement reference from context
func GetReference(ctx context.Context) string {
	return CorrelationFrom(ctx).Reference
}

// GetTraceID extracts the trace ID from the context's span, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// WithTraceContext adds trace_id and span_id from the context's span
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// For returns base with the correlation and trace ids of ctx attached.
// Services hold a long-lived logger and call this per operation.
func For(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = FromContext(ctx)
	}
	if fields := CorrelationFrom(ctx).fields(); len(fields) > 0 {
		base = base.With(fields...)
	}
	return WithTraceContext(ctx, base)
}
