package finance

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/shared"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeConfig is the percentage-plus-fixed fee rule for one payment channel.
// At most one config per channel is active at a time.
type FeeConfig struct {
	shared.BaseEntity
	Channel     string
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
	Active      bool
}

// NewFeeConfig validates and creates an active fee config
func NewFeeConfig(channel string, percentage, fixed decimal.Decimal) (*FeeConfig, error) {
	channel = NormalizeChannel(channel)
	if channel == "" {
		return nil, shared.NewDomainError("INVALID_CHANNEL", "Fee channel cannot be empty")
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return nil, shared.NewDomainError("INVALID_PERCENTAGE", "Fee percentage must be between 0 and 100")
	}
	if fixed.IsNegative() {
		return nil, shared.NewDomainError("INVALID_FIXED_AMOUNT", "Fixed fee cannot be negative")
	}
	return &FeeConfig{
		BaseEntity:  shared.NewBaseEntity(),
		Channel:     channel,
		Percentage:  percentage,
		FixedAmount: fixed,
		Active:      true,
	}, nil
}

// NormalizeChannel lower-cases and trims a channel identifier
func NormalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimSpace(channel))
}

// FeeSplit is the gross → fee → net breakdown of an amount
type FeeSplit struct {
	Gross valueobject.Money
	Fee   valueobject.Money
	Net   valueobject.Money
}

// ComputeFee splits gross using cfg. A nil cfg means no fee for the channel.
//
//	fee = floor2(gross*pct/100 + fixed)
//	net = max(floor2(gross - fee), 0)
func ComputeFee(cfg *FeeConfig, gross valueobject.Money) FeeSplit {
	zero := valueobject.Zero(gross.Currency())
	if cfg == nil || !cfg.Active {
		return FeeSplit{Gross: gross, Fee: zero, Net: gross.FloorMinor().ClampZero()}
	}
	fixed, _ := valueobject.NewMoney(cfg.FixedAmount, gross.Currency())
	fee, _ := gross.Percentage(cfg.Percentage).Add(fixed)
	fee = fee.FloorMinor()
	net, _ := gross.Subtract(fee)
	return FeeSplit{Gross: gross, Fee: fee, Net: net.FloorMinor().ClampZero()}
}

// LateFeeRule is a property's policy for charging on overdue invoices
type LateFeeRule struct {
	shared.BaseEntity
	PropertyID  uuid.UUID
	Enabled     bool
	GraceDays   int
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
}

// NewLateFeeRule validates and creates a late fee rule
func NewLateFeeRule(propertyID uuid.UUID, enabled bool, graceDays int, percentage, fixed decimal.Decimal) (*LateFeeRule, error) {
	if propertyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROPERTY", "Property cannot be empty")
	}
	if graceDays < 0 {
		return nil, shared.NewDomainError("INVALID_GRACE_DAYS", "Grace days cannot be negative")
	}
	if percentage.IsNegative() || fixed.IsNegative() {
		return nil, shared.NewDomainError("INVALID_LATE_FEE", "Late fee components cannot be negative")
	}
	return &LateFeeRule{
		BaseEntity:  shared.NewBaseEntity(),
		PropertyID:  propertyID,
		Enabled:     enabled,
		GraceDays:   graceDays,
		Percentage:  percentage,
		FixedAmount: fixed,
	}, nil
}

// Assess returns the late fee due on inv as of today. ok is false when the
// rule does not apply: disabled, still inside the grace period, or a fee
// that floors to zero.
func (r *LateFeeRule) Assess(inv *Invoice, today time.Time) (fee valueobject.Money, ok bool) {
	if r == nil || !r.Enabled {
		return valueobject.Money{}, false
	}
	if inv.DaysPastDue(today) <= r.GraceDays {
		return valueobject.Money{}, false
	}
	fixed, _ := valueobject.NewMoney(r.FixedAmount, inv.Currency)
	fee, _ = inv.AmountMoney().Percentage(r.Percentage).Add(fixed)
	fee = fee.FloorMinor()
	if !fee.IsPositive() {
		return valueobject.Money{}, false
	}
	return fee, true
}
