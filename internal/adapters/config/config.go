package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Engine        EngineConfig
	Notifications NotificationConfig
	ErrorTracking ErrorTrackingConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"hermes"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ClickHouseConfig configures the optional trade audit log sink.
// When Host is empty the audit log is disabled.
type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"hermes"`
}

func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig configures the notification dedup registry backend.
// When Host is empty the engine falls back to the in-memory registry.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"hermes"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
}

// EngineConfig tunes the auto-execution engine.
type EngineConfig struct {
	// Interval between scheduled engine runs
	Interval time.Duration `envconfig:"ENGINE_INTERVAL" default:"2m"`

	// BuyAllocation is the fraction of total portfolio value committed
	// per BUY signal. The historical default is 10%.
	BuyAllocation float64 `envconfig:"ENGINE_BUY_ALLOCATION" default:"0.10"`

	// GatewayTimeout bounds every exchange and persistence call so one
	// unresponsive exchange cannot stall the whole run
	GatewayTimeout time.Duration `envconfig:"ENGINE_GATEWAY_TIMEOUT" default:"10s"`

	// MaxConcurrentUsers bounds the per-signal user worker pool
	MaxConcurrentUsers int `envconfig:"ENGINE_MAX_CONCURRENT_USERS" default:"5"`

	// SignalSuppressionWindow suppresses repeat BUY signals for a token
	// a user was already shown within this window
	SignalSuppressionWindow time.Duration `envconfig:"ENGINE_SIGNAL_SUPPRESSION_WINDOW" default:"24h"`

	// PaperTrading routes all exchange calls to the simulated gateway
	PaperTrading bool `envconfig:"ENGINE_PAPER_TRADING" default:"true"`

	// ExchangeRateLimit caps gateway calls per minute
	ExchangeRateLimit int `envconfig:"ENGINE_EXCHANGE_RATE_LIMIT" default:"600"`

	// PaperStartingCapital is the free capital each simulated account
	// starts with when paper trading is on
	PaperStartingCapital float64 `envconfig:"ENGINE_PAPER_STARTING_CAPITAL" default:"10000"`
}

type NotificationConfig struct {
	// Cooldown is the dedup window for entity-anchored notifications.
	// One canonical value applied to every notification type.
	Cooldown time.Duration `envconfig:"NOTIFICATION_COOLDOWN" default:"30m"`

	// GCInterval is how often the in-memory dedup registry is purged
	GCInterval time.Duration `envconfig:"NOTIFICATION_GC_INTERVAL" default:"5m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
