package finance_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeFee(t *testing.T) {
	paystack, err := finance.NewFeeConfig("Paystack ", dec("1.5"), dec("50"))
	require.NoError(t, err)
	assert.Equal(t, "paystack", paystack.Channel)

	tests := []struct {
		name    string
		cfg     *finance.FeeConfig
		gross   string
		wantFee string
		wantNet string
	}{
		{"percentage plus fixed", paystack, "10000", "200.00", "9800.00"},
		{"floors the fee", paystack, "333.33", "54.99", "278.34"},
		{"no config means no fee", nil, "123.456", "0.00", "123.45"},
		{"net clamps at zero", paystack, "40", "50.60", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := finance.ComputeFee(tt.cfg, ngn(tt.gross))
			assert.Equal(t, tt.wantFee, split.Fee.StringFixed(2))
			assert.Equal(t, tt.wantNet, split.Net.StringFixed(2))
			assert.True(t, split.Gross.Equals(ngn(tt.gross)))
		})
	}

	t.Run("inactive config is ignored", func(t *testing.T) {
		off := *paystack
		off.Active = false
		split := finance.ComputeFee(&off, ngn("10000"))
		assert.True(t, split.Fee.IsZero())
	})

	t.Run("is deterministic", func(t *testing.T) {
		a := finance.ComputeFee(paystack, ngn("10000"))
		b := finance.ComputeFee(paystack, ngn("10000"))
		assert.Equal(t, a, b)
	})
}

func TestNewFeeConfig_Validation(t *testing.T) {
	_, err := finance.NewFeeConfig("", dec("1"), dec("0"))
	assert.Error(t, err)
	_, err = finance.NewFeeConfig("card", dec("101"), dec("0"))
	assert.Error(t, err)
	_, err = finance.NewFeeConfig("card", dec("1"), dec("-1"))
	assert.Error(t, err)
}

func TestLateFeeRule_Assess(t *testing.T) {
	today := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	inv := newInvoice(t, "1000", today.AddDate(0, 0, -5))

	rule, err := finance.NewLateFeeRule(uuid.New(), true, 3, dec("5"), dec("10"))
	require.NoError(t, err)

	fee, ok := rule.Assess(inv, today)
	require.True(t, ok)
	assert.Equal(t, "60.00", fee.StringFixed(2))

	t.Run("inside grace period", func(t *testing.T) {
		r := *rule
		r.GraceDays = 5
		_, ok := r.Assess(inv, today)
		assert.False(t, ok)
	})

	t.Run("disabled", func(t *testing.T) {
		r := *rule
		r.Enabled = false
		_, ok := r.Assess(inv, today)
		assert.False(t, ok)
	})

	t.Run("zero fee is skipped", func(t *testing.T) {
		r, err := finance.NewLateFeeRule(uuid.New(), true, 0, dec("0.0001"), dec("0"))
		require.NoError(t, err)
		_, ok := r.Assess(inv, today)
		assert.False(t, ok)
	})

	t.Run("nil rule", func(t *testing.T) {
		var r *finance.LateFeeRule
		_, ok := r.Assess(inv, today)
		assert.False(t, ok)
	})
}
