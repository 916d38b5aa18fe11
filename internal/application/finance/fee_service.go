package finance

import (
	"context"
	"fmt"

	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FeeService computes channel fees. Configs are read from the store on
// every call; there is no process-wide cache to go stale.
type FeeService struct {
	serviceBase
}

// NewFeeService creates a new FeeService
func NewFeeService(cfg ServiceConfig) *FeeService {
	return &FeeService{serviceBase: newServiceBase(cfg)}
}

// ComputeFee splits gross into fee and net for channel
func (s *FeeService) ComputeFee(ctx context.Context, channel string, gross valueobject.Money) (finance.FeeSplit, error) {
	cfg, err := activeFeeConfig(ctx, s.repos.FeeConfigs(), channel)
	if err != nil {
		return finance.FeeSplit{}, err
	}
	return finance.ComputeFee(cfg, gross), nil
}

// UpsertFeeConfigInput carries a new fee rule for a channel
type UpsertFeeConfigInput struct {
	Channel     string
	Percentage  decimal.Decimal
	FixedAmount decimal.Decimal
}

// UpsertFeeConfig makes a new config the channel's only active one
func (s *FeeService) UpsertFeeConfig(ctx context.Context, in UpsertFeeConfigInput) (*finance.FeeConfig, error) {
	cfg, err := finance.NewFeeConfig(in.Channel, in.Percentage, in.FixedAmount)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.FeeConfigs().DeactivateChannel(ctx, cfg.Channel); err != nil {
			return fmt.Errorf("deactivate fee configs: %w", err)
		}
		return repos.FeeConfigs().Create(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("Fee config updated",
		zap.String("channel", cfg.Channel),
		zap.String("percentage", cfg.Percentage.String()),
		zap.String("fixed_amount", cfg.FixedAmount.String()))
	return cfg, nil
}
