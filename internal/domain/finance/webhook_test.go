package finance_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookPayload(t *testing.T) {
	walletID := uuid.New()
	ownerID := uuid.New()
	invoiceID := uuid.New()

	t.Run("schema v1 with wallet id", func(t *testing.T) {
		body := []byte(`{"event":"charge.success","data":{"reference":"R1","amount":1000000,"channel":"card","metadata":{"wallet_id":"` + walletID.String() + `"}}}`)
		p, err := finance.ParseWebhookPayload(body, valueobject.NGN)
		require.NoError(t, err)
		assert.Equal(t, finance.MetadataSchemaV1, p.SchemaVersion)
		assert.Equal(t, walletID, *p.WalletID)
		assert.Equal(t, "10000.00", p.Amount().StringFixed(2))
		assert.Equal(t, valueobject.NGN, p.Currency)
		assert.Equal(t, "paystack:charge.success:R1", p.DedupKey("paystack"))
	})

	t.Run("schema v2 with owner and invoice", func(t *testing.T) {
		body := []byte(`{"event":"charge.success","data":{"reference":"R2","amount":50000,"currency":"ngn","metadata":{"schema_version":"v2","owner_id":"` + ownerID.String() + `","invoice_id":"` + invoiceID.String() + `","currency":"GHS"}}}`)
		p, err := finance.ParseWebhookPayload(body, valueobject.NGN)
		require.NoError(t, err)
		assert.Equal(t, finance.MetadataSchemaV2, p.SchemaVersion)
		assert.Equal(t, ownerID, *p.OwnerID)
		assert.Equal(t, invoiceID, *p.InvoiceID)
		assert.Nil(t, p.WalletID)
		assert.Equal(t, valueobject.GHS, p.Currency)
	})

	t.Run("numeric schema version", func(t *testing.T) {
		body := []byte(`{"event":"charge.success","data":{"reference":"R3","amount":100,"metadata":{"schema_version":2,"owner_id":"` + ownerID.String() + `"}}}`)
		p, err := finance.ParseWebhookPayload(body, valueobject.NGN)
		require.NoError(t, err)
		assert.Equal(t, finance.MetadataSchemaV2, p.SchemaVersion)
	})

	t.Run("failed charge does not need a wallet", func(t *testing.T) {
		body := []byte(`{"event":"charge.failed","data":{"reference":"R4","amount":100,"metadata":""}}`)
		p, err := finance.ParseWebhookPayload(body, valueobject.NGN)
		require.NoError(t, err)
		assert.Nil(t, p.WalletID)
	})

	t.Run("unknown events only need an envelope", func(t *testing.T) {
		body := []byte(`{"event":"transfer.success","data":{"whatever":true}}`)
		p, err := finance.ParseWebhookPayload(body, valueobject.NGN)
		require.NoError(t, err)
		assert.False(t, p.IsKnown())
		assert.Contains(t, p.DedupKey("paystack"), "paystack:transfer.success:sha256:")
	})

	malformed := map[string]string{
		"not json":             `{"event":`,
		"missing event":        `{"data":{}}`,
		"data not object":      `{"event":"charge.success","data":[1]}`,
		"missing reference":    `{"event":"charge.success","data":{"amount":100,"metadata":{"wallet_id":"` + walletID.String() + `"}}}`,
		"fractional amount":    `{"event":"charge.success","data":{"reference":"R","amount":10.5,"metadata":{"wallet_id":"` + walletID.String() + `"}}}`,
		"zero amount":          `{"event":"charge.success","data":{"reference":"R","amount":0,"metadata":{"wallet_id":"` + walletID.String() + `"}}}`,
		"missing wallet id":    `{"event":"charge.success","data":{"reference":"R","amount":100,"metadata":{}}}`,
		"bad wallet id":        `{"event":"charge.success","data":{"reference":"R","amount":100,"metadata":{"wallet_id":"nope"}}}`,
		"v2 without owner":     `{"event":"charge.success","data":{"reference":"R","amount":100,"metadata":{"schema_version":2}}}`,
		"unsupported version":  `{"event":"charge.success","data":{"reference":"R","amount":100,"metadata":{"schema_version":9}}}`,
		"unsupported currency": `{"event":"charge.success","data":{"reference":"R","amount":100,"currency":"XYZ","metadata":{"wallet_id":"` + walletID.String() + `"}}}`,
		"metadata not object":  `{"event":"charge.success","data":{"reference":"R","amount":100,"metadata":[1]}}`,
		"trailing garbage":     `{"event":"charge.success","data":{}} {}`,
	}
	for name, body := range malformed {
		t.Run("malformed/"+name, func(t *testing.T) {
			_, err := finance.ParseWebhookPayload([]byte(body), valueobject.NGN)
			assert.ErrorIs(t, err, finance.ErrMalformedEvent)
		})
	}
}

func TestWebhookEvent_StateMachine(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"R1","amount":100,"metadata":{"wallet_id":"` + uuid.NewString() + `"}}}`)
	p, err := finance.ParseWebhookPayload(body, valueobject.NGN)
	require.NoError(t, err)

	e := finance.NewWebhookEvent(finance.PaymentProviderPaystack, p, body)
	assert.Equal(t, finance.WebhookEventReceived, e.Status)
	assert.Equal(t, "paystack:charge.success:R1", e.DedupKey)

	assert.ErrorIs(t, e.MarkProcessed(time.Now()), finance.ErrInvalidTransition)
	require.NoError(t, e.MarkValidated())
	require.NoError(t, e.MarkApplied())
	assert.Equal(t, 1, e.Attempts)
	require.NoError(t, e.MarkProcessed(time.Now()))
	assert.True(t, e.Status.IsTerminal())
	assert.NotNil(t, e.ProcessedAt)

	assert.ErrorIs(t, e.MarkFailed("late", time.Now()), finance.ErrInvalidTransition)
}

func TestWebhookEventStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to finance.WebhookEventStatus
		ok       bool
	}{
		{finance.WebhookEventReceived, finance.WebhookEventValidated, true},
		{finance.WebhookEventReceived, finance.WebhookEventApplied, false},
		{finance.WebhookEventValidated, finance.WebhookEventFailed, true},
		{finance.WebhookEventValidated, finance.WebhookEventProcessed, true},
		{finance.WebhookEventApplied, finance.WebhookEventProcessed, true},
		{finance.WebhookEventProcessed, finance.WebhookEventFailed, false},
		{finance.WebhookEventFailed, finance.WebhookEventValidated, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransactionAudit_Resolve(t *testing.T) {
	split := finance.ComputeFee(nil, ngn("100"))
	a := finance.NewTransactionAudit(finance.AuditSourceWebhook, "R1", "Card", split, finance.AuditStatusPending)
	assert.Equal(t, "card", a.Channel)
	require.NoError(t, a.Resolve(finance.AuditStatusSuccess))
	assert.ErrorIs(t, a.Resolve(finance.AuditStatusFailed), finance.ErrInvalidTransition)
}
