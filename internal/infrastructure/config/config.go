package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the ledger server configuration. Keys are read from
// config.toml and can be overridden by LEDGER_<SECTION>_<KEY> variables,
// e.g. LEDGER_WEBHOOK_SECRET or LEDGER_REFUND_HOLD_WINDOW=48h.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Refund    RefundConfig    `mapstructure:"refund"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
	// AutoMigrate applies the embedded SQL migrations on server start
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or a file path
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN builds a postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig points at the dedup and job lease store. An empty Host
// means per-process memory stores.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`

	// per client IP token bucket
	RateLimitEnabled   bool    `mapstructure:"rate_limit_enabled"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`
}

// SchedulerConfig drives the periodic ledger jobs. A zero interval turns
// a job's timer off; its manual trigger still works.
type SchedulerConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	LateFeeInterval    time.Duration `mapstructure:"late_fee_interval"`
	AutoRefundInterval time.Duration `mapstructure:"auto_refund_interval"`
	OverdueInterval    time.Duration `mapstructure:"overdue_interval"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
}

type WebhookConfig struct {
	Secret   string `mapstructure:"secret"`
	Provider string `mapstructure:"provider"`
	// FeeChannel selects the fee config applied to gateway credits;
	// defaults to Provider.
	FeeChannel        string        `mapstructure:"fee_channel"`
	VerifyWithGateway bool          `mapstructure:"verify_with_gateway"`
	GatewayBaseURL    string        `mapstructure:"gateway_base_url"`
	GatewayTimeout    time.Duration `mapstructure:"gateway_timeout"`
	DedupTTL          time.Duration `mapstructure:"dedup_ttl"`
}

type RefundConfig struct {
	// HoldWindow is how long a failed hold waits before the auto refund
	HoldWindow time.Duration `mapstructure:"hold_window"`
}

type LedgerConfig struct {
	DefaultCurrency string `mapstructure:"default_currency"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"` // master switch for OTLP export
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	TracingEnabled    bool          `mapstructure:"tracing_enabled"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	ExportInterval    time.Duration `mapstructure:"export_interval"`

	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // bound values end up in spans
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	DBLockWaitThresh  time.Duration `mapstructure:"db_lock_wait_threshold"`

	ProfilingEnabled  bool   `mapstructure:"profiling_enabled"`
	PyroscopeEndpoint string `mapstructure:"pyroscope_endpoint"`
}

// defaults registers every key, which is also what lets AutomaticEnv see
// keys that have no config file entry.
var defaults = map[string]any{
	"app.name":         "rental-ledger",
	"app.env":          "development",
	"app.port":         "8080",
	"app.auto_migrate": false,

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "ledger",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":          15 * time.Second,
	"http.write_timeout":         30 * time.Second,
	"http.idle_timeout":          60 * time.Second,
	"http.shutdown_timeout":      20 * time.Second,
	"http.max_header_bytes":      1 << 20,
	"http.max_body_size":         1 << 20, // webhook bodies are small
	"http.trusted_proxies":       []string{},
	"http.rate_limit_enabled":    false,
	"http.rate_limit_per_second": 50.0,
	"http.rate_limit_burst":      100,

	"scheduler.enabled":              false,
	"scheduler.late_fee_interval":    24 * time.Hour,
	"scheduler.auto_refund_interval": time.Hour,
	"scheduler.overdue_interval":     6 * time.Hour,
	"scheduler.job_timeout":          30 * time.Minute,

	"webhook.secret":              "",
	"webhook.provider":            "paystack",
	"webhook.fee_channel":         "",
	"webhook.verify_with_gateway": false,
	"webhook.gateway_base_url":    "https://api.paystack.co",
	"webhook.gateway_timeout":     10 * time.Second,
	"webhook.dedup_ttl":           72 * time.Hour,

	"refund.hold_window": 7 * 24 * time.Hour,

	"ledger.default_currency": "NGN",

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.tracing_enabled":         false,
	"telemetry.logs_enabled":            false,
	"telemetry.export_interval":         30 * time.Second,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.db_lock_wait_threshold":  50 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.pyroscope_endpoint":      "http://localhost:4040",
}

// Load reads ./config.toml or /app/config.toml when present, then the
// environment. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.derive()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// derive fills settings whose default depends on another setting
func (c *Config) derive() {
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.App.Name
	}
	if c.Webhook.FeeChannel == "" {
		c.Webhook.FeeChannel = c.Webhook.Provider
	}
	c.Ledger.DefaultCurrency = strings.ToUpper(c.Ledger.DefaultCurrency)
}

// validate reports every problem at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)
	check(len(c.Ledger.DefaultCurrency) == 3,
		"ledger.default_currency must be a 3-letter code, got %q", c.Ledger.DefaultCurrency)
	check(c.Webhook.GatewayTimeout >= 0, "webhook.gateway_timeout cannot be negative")
	check(c.HTTP.RateLimitPerSecond >= 0 && c.HTTP.RateLimitBurst >= 0, "http rate limit settings cannot be negative")
	check(c.Refund.HoldWindow >= 0, "refund.hold_window cannot be negative")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0 and 1, got %g", c.Telemetry.SamplingRatio)

	if c.App.Env == "production" {
		check(c.Webhook.Secret != "", "webhook.secret is required in production")
		check(db.Password != "" && db.Password != "postgres",
			"database.password must be set to a non-default value in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}
	return errors.Join(errs...)
}
