package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rentals/backend/internal/infrastructure/config"
	"github.com/rentals/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database is the ledger's postgres handle. Every posting runs in a
// transaction holding row locks, so pool size bounds ledger concurrency.
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

type Option func(*options)

type options struct {
	logger    gormlogger.Interface
	tracing   telemetry.DBTracingConfig
	zapLogger *zap.Logger
	dialector gorm.Dialector
}

// WithGormLogger routes SQL logging through l
func WithGormLogger(l gormlogger.Interface) Option {
	return func(o *options) { o.logger = l }
}

// WithTracing installs otelgorm spans on every statement
func WithTracing(cfg telemetry.DBTracingConfig, logger *zap.Logger) Option {
	return func(o *options) {
		o.tracing = cfg
		o.zapLogger = logger
	}
}

// WithDialector replaces the postgres dialector (sqlite, sqlmock in tests).
// No ping or prepared statements are used with it.
func WithDialector(d gorm.Dialector) Option {
	return func(o *options) { o.dialector = d }
}

// NewDatabase opens the pool and, for a real postgres, pings it
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := &options{logger: gormlogger.Default.LogMode(gormlogger.Silent), zapLogger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	custom := o.dialector != nil
	if !custom {
		o.dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(o.dialector, &gorm.Config{
		Logger: o.logger,
		// ledger writes always open their own transaction
		SkipDefaultTransaction: true,
		PrepareStmt:            !custom,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := telemetry.RegisterDBTracing(db, o.tracing, o.zapLogger); err != nil {
		return nil, fmt.Errorf("database tracing: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	d := &Database{DB: db, sql: sqlDB}
	if !custom {
		if err := d.Ping(context.Background()); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Database) Close() error {
	return d.sql.Close()
}

// Ping backs the database readiness check
func (d *Database) Ping(ctx context.Context) error {
	if err := d.sql.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// PoolStats is the pool snapshot reported as metrics
type PoolStats struct {
	MaxOpen      int
	Open         int
	InUse        int
	Idle         int
	WaitCount    int64
	WaitDuration time.Duration
}

func (d *Database) Stats() PoolStats {
	s := d.sql.Stats()
	return PoolStats{
		MaxOpen:      s.MaxOpenConnections,
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

// RegisterPoolMetrics publishes pool gauges read at collection time.
// A rising wait count means postings queue behind held row locks.
func (d *Database) RegisterPoolMetrics(meter metric.Meter) error {
	inUse, err := meter.Int64ObservableGauge("ledger_db_connections_in_use",
		metric.WithDescription("Connections currently checked out"))
	if err != nil {
		return fmt.Errorf("pool gauge: %w", err)
	}
	idle, err := meter.Int64ObservableGauge("ledger_db_connections_idle",
		metric.WithDescription("Idle pooled connections"))
	if err != nil {
		return fmt.Errorf("pool gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("ledger_db_connection_waits_total",
		metric.WithDescription("Times a caller waited for a free connection"))
	if err != nil {
		return fmt.Errorf("pool counter: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := d.Stats()
		o.ObserveInt64(inUse, int64(s.InUse))
		o.ObserveInt64(idle, int64(s.Idle))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, inUse, idle, waits)
	if err != nil {
		return fmt.Errorf("pool metrics callback: %w", err)
	}
	return nil
}
