package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds log export settings
type LogsConfig struct {
	Exporter
	Enabled bool
	// RedactKeys names fields that never leave the process. Defaults to
	// DefaultRedactKeys.
	RedactKeys []string
}

// DefaultRedactKeys are field names scrubbed from exported log records.
// Webhook signatures and raw bodies stay in local logs only.
var DefaultRedactKeys = []string{"signature", "secret", "authorization", "body"}

const redacted = "[redacted]"

// LoggerProvider wraps the SDK logger provider with lifecycle management.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	logger   *zap.Logger
	config   LogsConfig
}

// NewLoggerProvider exports log records over OTLP gRPC
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	if cfg.RedactKeys == nil {
		cfg.RedactKeys = DefaultRedactKeys
	}
	lp := &LoggerProvider{logger: logger, config: cfg}
	if !cfg.Enabled {
		logger.Info("OTEL logs disabled")
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("log exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.provider)
	logger.Info("Log export enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.Strings("redact_keys", cfg.RedactKeys))
	return lp, nil
}

// Shutdown flushes pending log records
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	return shutdownProvider(ctx, "logger", lp.provider.Shutdown)
}

// IsEnabled returns whether log records are exported
func (lp *LoggerProvider) IsEnabled() bool {
	return lp != nil && lp.provider != nil
}

// ZapCore returns a core bridging zap entries at or above level into the
// OTLP pipeline, or nil when export is disabled. The result is meant to be
// passed to logger.New as an extra core.
func (lp *LoggerProvider) ZapCore(level zapcore.Level) zapcore.Core {
	if !lp.IsEnabled() {
		return nil
	}
	core := otelzap.NewCore(lp.config.ServiceName, otelzap.WithLoggerProvider(lp.provider))
	return newExportCore(core, level, lp.config.RedactKeys)
}

// exportCore gates the otelzap core, which has no level of its own, and
// scrubs redacted fields before they are exported.
type exportCore struct {
	zapcore.Core
	minLevel zapcore.Level
	redact   map[string]struct{}
}

func newExportCore(core zapcore.Core, level zapcore.Level, redactKeys []string) *exportCore {
	redact := make(map[string]struct{}, len(redactKeys))
	for _, k := range redactKeys {
		redact[k] = struct{}{}
	}
	return &exportCore{Core: core, minLevel: level, redact: redact}
}

func (c *exportCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

// Check registers c itself so Write sees the fields first
func (c *exportCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *exportCore) With(fields []zapcore.Field) zapcore.Core {
	return &exportCore{Core: c.Core.With(c.scrub(fields)), minLevel: c.minLevel, redact: c.redact}
}

func (c *exportCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, c.scrub(fields))
}

func (c *exportCore) scrub(fields []zapcore.Field) []zapcore.Field {
	out := fields
	copied := false
	for i, f := range fields {
		if _, ok := c.redact[f.Key]; !ok {
			continue
		}
		if !copied {
			out = append([]zapcore.Field(nil), fields...)
			copied = true
		}
		out[i] = zap.String(f.Key, redacted)
	}
	return out
}
