package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code
type Currency string

// Currencies Paystack settles in
const (
	NGN Currency = "NGN"
	GHS Currency = "GHS"
	KES Currency = "KES"
	ZAR Currency = "ZAR"
	USD Currency = "USD"
)

// DefaultCurrency applies when a wallet or invoice names none
const DefaultCurrency = NGN

// MinorUnitPlaces is 2 for every supported currency (kobo, pesewa, cent)
const MinorUnitPlaces int32 = 2

var (
	minorUnitScale = decimal.New(1, MinorUnitPlaces)
	hundred        = decimal.NewFromInt(100)
)

var ErrCurrencyMismatch = errors.New("money: currency mismatch")

func (c Currency) IsValid() bool {
	switch c {
	case NGN, GHS, KES, ZAR, USD:
		return true
	}
	return false
}

// Money is an immutable amount in one currency. Amounts keep full decimal
// precision until FloorMinor; ledger postings always store floored values.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("money: currency is required")
	}
	return Money{amount: amount, currency: currency}, nil
}

func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", amount, err)
	}
	return NewMoney(d, currency)
}

// MustMoney is NewMoneyFromString for literals and panics on bad input
func MustMoney(amount string, currency Currency) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMinorUnits converts kobo (or pesewa, cents) as reported by Paystack
func FromMinorUnits(units int64, currency Currency) Money {
	return Money{amount: decimal.New(units, -MinorUnitPlaces), currency: currency}
}

func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }

// MinorUnits drops anything below one minor unit
func (m Money) MinorUnits() int64 {
	return m.amount.Mul(minorUnitScale).IntPart()
}

// IsWholeMinor reports whether m has nothing below one minor unit
func (m Money) IsWholeMinor() bool {
	return m.amount.Equal(m.amount.Truncate(MinorUnitPlaces))
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

func (m Money) with(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: m.currency}
}

// compare returns -1, 0 or 1, or ErrCurrencyMismatch
func (m Money) compare(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) Add(other Money) (Money, error) {
	if _, err := m.compare(other); err != nil {
		return Money{}, err
	}
	return m.with(m.amount.Add(other.amount)), nil
}

func (m Money) Subtract(other Money) (Money, error) {
	if _, err := m.compare(other); err != nil {
		return Money{}, err
	}
	return m.with(m.amount.Sub(other.amount)), nil
}

// FloorMinor rounds toward negative infinity at the minor unit. Fee and net
// splits use it so rounding never favours the payer.
func (m Money) FloorMinor() Money {
	return m.with(m.amount.RoundFloor(MinorUnitPlaces))
}

// ClampZero maps negative amounts to zero
func (m Money) ClampZero() Money {
	if m.amount.IsNegative() {
		return Zero(m.currency)
	}
	return m
}

func (m Money) Min(other Money) (Money, error) {
	c, err := m.compare(other)
	if err != nil {
		return Money{}, err
	}
	if c > 0 {
		return other, nil
	}
	return m, nil
}

// Percentage returns pct percent of m, unrounded
func (m Money) Percentage(pct decimal.Decimal) Money {
	return m.with(m.amount.Mul(pct).Div(hundred))
}

// Equals needs the same currency; 5 and 5.00 are equal
func (m Money) Equals(other Money) bool {
	c, err := m.compare(other)
	return err == nil && c == 0
}

func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.compare(other)
	return c < 0, err
}

func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.compare(other)
	return c > 0, err
}

func (m Money) String() string {
	return m.amount.StringFixed(MinorUnitPlaces) + " " + string(m.currency)
}

func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// moneyJSON is the wire form: the amount travels as a fixed two place
// string so clients never see float rounding.
type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount.StringFixed(MinorUnitPlaces), Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
