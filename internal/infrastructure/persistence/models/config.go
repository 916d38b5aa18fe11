package models

import (
	"github.com/google/uuid"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// FeeConfigModel is the persistence model for FeeConfig. The partial unique
// index keeps at most one active config per channel.
type FeeConfigModel struct {
	BaseModel
	Channel     string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_fee_configs_active_channel,where:active = true"`
	Percentage  decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	FixedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Active      bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (FeeConfigModel) TableName() string {
	return "fee_configs"
}

// ToDomain converts the persistence model to a domain FeeConfig.
func (m *FeeConfigModel) ToDomain() *finance.FeeConfig {
	return &finance.FeeConfig{
		BaseEntity:  m.BaseModel.ToDomain(),
		Channel:     m.Channel,
		Percentage:  m.Percentage,
		FixedAmount: m.FixedAmount,
		Active:      m.Active,
	}
}

// FeeConfigModelFromDomain creates a new persistence model from a domain FeeConfig.
func FeeConfigModelFromDomain(c *finance.FeeConfig) *FeeConfigModel {
	m := &FeeConfigModel{
		Channel:     c.Channel,
		Percentage:  c.Percentage,
		FixedAmount: c.FixedAmount,
		Active:      c.Active,
	}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// LateFeeRuleModel is the persistence model for LateFeeRule, one per property.
type LateFeeRuleModel struct {
	BaseModel
	PropertyID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Enabled     bool            `gorm:"not null;default:false"`
	GraceDays   int             `gorm:"not null;default:0"`
	Percentage  decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	FixedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (LateFeeRuleModel) TableName() string {
	return "late_fee_rules"
}

// ToDomain converts the persistence model to a domain LateFeeRule.
func (m *LateFeeRuleModel) ToDomain() *finance.LateFeeRule {
	return &finance.LateFeeRule{
		BaseEntity:  m.BaseModel.ToDomain(),
		PropertyID:  m.PropertyID,
		Enabled:     m.Enabled,
		GraceDays:   m.GraceDays,
		Percentage:  m.Percentage,
		FixedAmount: m.FixedAmount,
	}
}

// LateFeeRuleModelFromDomain creates a new persistence model from a domain LateFeeRule.
func LateFeeRuleModelFromDomain(r *finance.LateFeeRule) *LateFeeRuleModel {
	m := &LateFeeRuleModel{
		PropertyID:  r.PropertyID,
		Enabled:     r.Enabled,
		GraceDays:   r.GraceDays,
		Percentage:  r.Percentage,
		FixedAmount: r.FixedAmount,
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}
