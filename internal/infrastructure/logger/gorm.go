package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// Statement kinds attached to every SQL log line
const (
	StatementRead  = "read"
	StatementWrite = "write"
	// StatementLock is a SELECT ... FOR UPDATE on a wallet, invoice or event row
	StatementLock = "lock"
)

// GormLogger writes GORM output through zap. Row locks get their own slow
// threshold: a hot wallet shows up as lock wait long before any query is
// slow.
type GormLogger struct {
	logger        *zap.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
	lockThreshold time.Duration
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow query threshold. Zero disables it.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// WithLockWaitThreshold sets the threshold for row lock statements.
// Zero falls back to the slow query threshold.
func WithLockWaitThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.lockThreshold = threshold
	}
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		logLevel:      level,
		slowThreshold: 200 * time.Millisecond,
		lockThreshold: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Info {
		For(ctx, l.logger).Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Warn {
		For(ctx, l.logger).Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.logLevel >= gormlogger.Error {
		For(ctx, l.logger).Sugar().Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface. Lookups that find nothing are not
// errors here; repositories turn them into NOT_FOUND.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	kind := StatementKind(sql)
	log := For(ctx, l.logger)
	fields := []zap.Field{
		zap.String("statement", kind),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	threshold := l.slowThreshold
	if kind == StatementLock && l.lockThreshold > 0 {
		threshold = l.lockThreshold
	}

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		if l.logLevel >= gormlogger.Error {
			log.Error("SQL Error", append(fields, zap.Error(err))...)
		}
	case threshold > 0 && elapsed > threshold && l.logLevel >= gormlogger.Warn:
		msg := "Slow SQL"
		if kind == StatementLock {
			msg = "Slow row lock"
		}
		log.Warn(msg, append(fields, zap.Duration("threshold", threshold))...)
	case l.logLevel >= gormlogger.Info:
		log.Debug("SQL Query", fields...)
	}
}

// StatementKind classifies a SQL statement for log filtering
func StatementKind(sql string) string {
	head := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(head, "SELECT") && strings.Contains(head, "FOR UPDATE"):
		return StatementLock
	case strings.HasPrefix(head, "SELECT"), strings.HasPrefix(head, "WITH"):
		return StatementRead
	default:
		return StatementWrite
	}
}

// MapGormLogLevel maps a log level name to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
