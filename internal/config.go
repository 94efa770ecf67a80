package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Bank          BankConfig          `mapstructure:"bank"`
	Idempotency   IdempotencyConfig   `mapstructure:"idempotency"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	Env               string        `mapstructure:"env"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	Source          string        `mapstructure:"source"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// BankConfig points at the acquiring bank authorization endpoint.
type BankConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	PaymentPath string        `mapstructure:"payment_path" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type IdempotencyConfig struct {
	Backend      string        `mapstructure:"backend" validate:"oneof=memory redis database"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	RecordTTL    time.Duration `mapstructure:"record_ttl"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type SecurityConfig struct {
	MerchantAuthEnabled bool          `mapstructure:"merchant_auth_enabled"`
	JWTSecret           string        `mapstructure:"jwt_secret"`
	TokenDuration       time.Duration `mapstructure:"token_duration"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name" validate:"required_if=Enabled true"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"min=0,max=1"`
	Endpoint     string  `mapstructure:"endpoint" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- DEFAULTS -----------------

// ApplyDefaults fills zero values that have a sensible fallback.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Source == "" {
		c.Database.Source = "file::memory:?cache=shared"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Bank.PaymentPath == "" {
		c.Bank.PaymentPath = "/payments"
	}
	if c.Bank.Timeout == 0 {
		c.Bank.Timeout = 10 * time.Second
	}
	if c.Idempotency.Backend == "" {
		c.Idempotency.Backend = "memory"
	}
	if c.Idempotency.KeyPrefix == "" {
		c.Idempotency.KeyPrefix = "idempotency:payments:"
	}
	if c.Idempotency.LockTTL == 0 {
		c.Idempotency.LockTTL = 2 * c.Bank.Timeout
	}
	if c.Idempotency.RecordTTL == 0 {
		c.Idempotency.RecordTTL = 24 * time.Hour
	}
	if c.Idempotency.WaitTimeout == 0 {
		c.Idempotency.WaitTimeout = c.Bank.Timeout + 5*time.Second
	}
	if c.Idempotency.PollInterval == 0 {
		c.Idempotency.PollInterval = 50 * time.Millisecond
	}
	if c.Security.TokenDuration == 0 {
		c.Security.TokenDuration = time.Hour
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// LoadConfigFromEnv builds the configuration from plain environment variables
// for container deployments.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("HTTP_PORT", 8080),
			Env:          getEnv("APP_ENV", "production"),
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Source:          getEnv("DB_SOURCE", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Bank: BankConfig{
			BaseURL:     getEnv("BANK_BASE_URL", ""),
			PaymentPath: getEnv("BANK_PAYMENT_PATH", "/payments"),
			Timeout:     getEnvAsDuration("BANK_TIMEOUT", 10*time.Second),
		},
		Idempotency: IdempotencyConfig{
			Backend:      getEnv("IDEMPOTENCY_BACKEND", "memory"),
			RedisAddr:    getEnv("REDIS_ADDR", ""),
			KeyPrefix:    getEnv("IDEMPOTENCY_KEY_PREFIX", ""),
			LockTTL:      getEnvAsDuration("IDEMPOTENCY_LOCK_TTL", 0),
			RecordTTL:    getEnvAsDuration("IDEMPOTENCY_RECORD_TTL", 0),
			WaitTimeout:  getEnvAsDuration("IDEMPOTENCY_WAIT_TIMEOUT", 0),
			PollInterval: getEnvAsDuration("IDEMPOTENCY_POLL_INTERVAL", 0),
		},
		Security: SecurityConfig{
			MerchantAuthEnabled: getEnvAsBool("MERCHANT_AUTH_ENABLED", false),
			JWTSecret:           getEnv("JWT_SECRET", ""),
			TokenDuration:       getEnvAsDuration("JWT_TOKEN_DURATION", time.Hour),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnvAsBool("METRICS_ENABLED", true),
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Tracing: TracingConfig{
				Enabled:      getEnvAsBool("TRACING_ENABLED", false),
				ServiceName:  getEnv("TRACING_SERVICE_NAME", "payment-gateway"),
				SamplingRate: getEnvAsFloat("TRACING_SAMPLING_RATE", 1),
				Endpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Bank.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("bank config: %v", err))
	}

	if err := c.Idempotency.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("idempotency config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Observability.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("observability config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres":
		if c.Source == "" {
			return errors.New("source is required for postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *BankConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// Endpoint is the full authorization URL.
func (c *BankConfig) Endpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.PaymentPath, "/")
}

func (c *IdempotencyConfig) Validate() error {
	switch c.Backend {
	case "memory", "database":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if c.MerchantAuthEnabled && len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters when merchant auth is enabled")
	}
	return nil
}

func (c *ObservabilityConfig) Validate() error {
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing endpoint is required when tracing is enabled")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.New("tracing sampling_rate must be between 0 and 1")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.Logging.Format)
	}
	return nil
}
