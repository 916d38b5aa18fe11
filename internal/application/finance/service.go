package finance

import (
	"context"
	"time"

	"github.com/rentals/backend/internal/infrastructure/logger"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ServiceConfig holds the collaborators shared by the ledger services
type ServiceConfig struct {
	// Scope runs writes atomically
	Scope TransactionScope
	// Repos serves lock-free reads outside a transaction
	Repos TransactionalRepositories
	// Metrics is optional
	Metrics *telemetry.SettlementMetrics
	Logger  *zap.Logger
	// Now defaults to time.Now
	Now func() time.Time
}

type serviceBase struct {
	scope   TransactionScope
	repos   TransactionalRepositories
	metrics *telemetry.SettlementMetrics
	logger  *zap.Logger
	now     func() time.Time
}

func newServiceBase(cfg ServiceConfig) serviceBase {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return serviceBase{
		scope:   cfg.Scope,
		repos:   cfg.Repos,
		metrics: cfg.Metrics,
		logger:  log,
		now:     func() time.Time { return now().UTC() },
	}
}

// log returns the service logger tagged with the request, job and
// reference carried by ctx
func (b serviceBase) log(ctx context.Context) *zap.Logger {
	return logger.For(ctx, b.logger)
}

// withReference tags ctx with reference unless an outer operation, such as
// the webhook being applied, already did
func withReference(ctx context.Context, reference string) context.Context {
	if reference == "" || logger.GetReference(ctx) != "" {
		return ctx
	}
	return logger.WithReference(ctx, reference)
}
