package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.RequireFromString("100.50"), NGN)
		require.NoError(t, err)
		assert.Equal(t, NGN, m.Currency())
		assert.Equal(t, "100.50", m.StringFixed(2))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
	})

	t.Run("rejects unparsable strings", func(t *testing.T) {
		_, err := NewMoneyFromString("ten", NGN)
		assert.Error(t, err)
	})
}

func TestFromMinorUnits(t *testing.T) {
	m := FromMinorUnits(1000050, NGN)
	assert.Equal(t, "10000.50", m.StringFixed(2))
	assert.Equal(t, int64(1000050), m.MinorUnits())
}

func TestMoney_FloorMinor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops sub-minor fraction", "12.349", "12.34"},
		{"never rounds up", "12.999", "12.99"},
		{"exact value unchanged", "200", "200.00"},
		{"negative goes toward negative infinity", "-1.001", "-1.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustMoney(tt.in, NGN).FloorMinor()
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestMoney_IsWholeMinor(t *testing.T) {
	assert.True(t, MustMoney("12.34", NGN).IsWholeMinor())
	assert.True(t, MustMoney("12.3400", NGN).IsWholeMinor())
	assert.True(t, MustMoney("-7", NGN).IsWholeMinor())
	assert.False(t, MustMoney("0.005", NGN).IsWholeMinor())
	assert.False(t, MustMoney("-1.001", NGN).IsWholeMinor())
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustMoney("400", NGN)
	b := MustMoney("300", NGN)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Equals(MustMoney("700", NGN)))

	diff, err := b.Subtract(a)
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
	assert.True(t, diff.ClampZero().IsZero())

	low, err := a.Min(b)
	require.NoError(t, err)
	assert.True(t, low.Equals(b))

	pct := MustMoney("10000", NGN).Percentage(decimal.RequireFromString("1.5"))
	assert.Equal(t, "150.00", pct.StringFixed(2))
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	_, err := MustMoney("1", NGN).Add(MustMoney("1", USD))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = MustMoney("1", NGN).Min(MustMoney("1", USD))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = MustMoney("1", NGN).LessThan(MustMoney("1", USD))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_JSON(t *testing.T) {
	data, err := MustMoney("9800", NGN).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"9800.00","currency":"NGN"}`, string(data))

	var m Money
	require.NoError(t, m.UnmarshalJSON(data))
	assert.True(t, m.Equals(MustMoney("9800", NGN)))
}

func TestMoney_Compare(t *testing.T) {
	five := MustMoney("5", NGN)
	assert.True(t, five.Equals(MustMoney("5.00", NGN)))
	assert.False(t, five.Equals(MustMoney("5", GHS)))

	gt, err := MustMoney("10", NGN).GreaterThan(five)
	require.NoError(t, err)
	assert.True(t, gt)

	lt, err := five.LessThan(five)
	require.NoError(t, err)
	assert.False(t, lt)

	assert.Equal(t, "5.00 NGN", five.String())
	assert.False(t, Currency("XOF").IsValid())
}
