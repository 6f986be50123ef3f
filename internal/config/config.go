package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	TenantDB   TenantDBConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Escalation EscalationConfig
	SMTP       SMTPConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name            string        `env:"APP_NAME" envDefault:"hub-helpdesk"`
	Env             string        `env:"APP_ENV" envDefault:"development"`
	Host            string        `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port            string        `env:"APP_PORT" envDefault:"8080"`
	Version         string        `env:"APP_VERSION" envDefault:"dev"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// PostgresConfig holds the central database connection values.
type PostgresConfig struct {
	DSN             string        `env:"POSTGRES_DSN"`
	MaxConns        int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations   bool          `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleTime time.Duration `env:"POSTGRES_CONN_MAX_IDLE" envDefault:"30s"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFE" envDefault:"5m"`
}

// TenantDBConfig is the server every new tenant database is created on.
// AdminDSN must carry CREATEDB rights; SecretKey is base64 of 32 bytes and
// seals stored tenant passwords.
type TenantDBConfig struct {
	Host      string `env:"TENANT_DB_HOST" envDefault:"127.0.0.1"`
	Port      int    `env:"TENANT_DB_PORT" envDefault:"5432"`
	User      string `env:"TENANT_DB_USER" envDefault:"postgres"`
	Password  string `env:"TENANT_DB_PASSWORD"`
	SSLMode   string `env:"TENANT_DB_SSLMODE" envDefault:"disable"`
	AdminDSN  string `env:"TENANT_DB_ADMIN_DSN"`
	MaxConns  int32  `env:"TENANT_DB_MAX_CONNS" envDefault:"4"`
	SecretKey string `env:"TENANT_SECRET_KEY"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	PoolSize    int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret        string        `env:"AUTH_JWT_SECRET" envDefault:"dev-secret"`
	AccessTokenTTL   time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"1h"`
	AllowedClockSkew time.Duration `env:"AUTH_CLOCK_SKEW" envDefault:"30s"`
}

// RateLimitConfig bounds reply throughput per actor.
type RateLimitConfig struct {
	Backend  string        `env:"RATE_LIMIT_BACKEND" envDefault:"redis"`
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// EscalationConfig points at the escalation rule table.
type EscalationConfig struct {
	RulesFile string `env:"ESCALATION_RULES_FILE"`
}

// SMTPConfig configures the optional e-mail notification channel.
type SMTPConfig struct {
	Host        string `env:"SMTP_HOST"`
	Port        int    `env:"SMTP_PORT" envDefault:"587"`
	Username    string `env:"SMTP_USERNAME"`
	Password    string `env:"SMTP_PASSWORD"`
	FromAddress string `env:"SMTP_FROM" envDefault:"helpdesk@hub.local"`
	FromName    string `env:"SMTP_FROM_NAME" envDefault:"Hub Helpdesk"`
	BaseURL     string `env:"SMTP_LINK_BASE_URL" envDefault:"http://localhost:3000"`
	QueueSize   int    `env:"SMTP_QUEUE_SIZE" envDefault:"256"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RateLimit.Requests <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REQUESTS: %d", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %s", cfg.RateLimit.Window)
	}
	return &cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Production reports whether the service runs with production settings.
func (a AppConfig) Production() bool {
	return a.Env == "production"
}

// Key decodes the sealing key.
func (t TenantDBConfig) Key() (*[32]byte, error) {
	if t.SecretKey == "" {
		return nil, fmt.Errorf("TENANT_SECRET_KEY is required")
	}
	raw, err := base64.StdEncoding.DecodeString(t.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("decode TENANT_SECRET_KEY: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("TENANT_SECRET_KEY must decode to 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// Enabled reports whether an SMTP relay is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}
