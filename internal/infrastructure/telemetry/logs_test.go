package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Exporter: Exporter{ServiceName: "rental-ledger"}}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.Nil(t, lp.ZapCore(zapcore.InfoLevel))
	assert.Equal(t, DefaultRedactKeys, lp.config.RedactKeys)
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestExportCore_LevelAndRedaction(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(newExportCore(inner, zapcore.InfoLevel, DefaultRedactKeys))

	log.Debug("dropped below the export level")
	log.With(zap.String("secret", "sk_live_x")).Warn("Webhook signature rejected",
		zap.String("signature", "abc123"),
		zap.String("reference", "PSK_1"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, redacted, fields["signature"])
	assert.Equal(t, redacted, fields["secret"])
	assert.Equal(t, "PSK_1", fields["reference"])
}

func TestExportCore_ScrubDoesNotMutateCaller(t *testing.T) {
	c := newExportCore(zapcore.NewNopCore(), zapcore.InfoLevel, []string{"body"})
	fields := []zapcore.Field{zap.String("body", "{}"), zap.String("event", "charge.success")}

	scrubbed := c.scrub(fields)
	assert.Equal(t, redacted, scrubbed[0].String)
	assert.Equal(t, "{}", fields[0].String)
	assert.Equal(t, "charge.success", scrubbed[1].String)
}
