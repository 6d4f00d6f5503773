package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Catalog      CatalogConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BACKOFFICE_APP_ENV" required:"true"`
	Port         string `envconfig:"BACKOFFICE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BACKOFFICE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BACKOFFICE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BACKOFFICE_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"BACKOFFICE_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BACKOFFICE_DB_DSN"`
	Driver string `envconfig:"BACKOFFICE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BACKOFFICE_DB_HOST"`
	LegacyPort     int    `envconfig:"BACKOFFICE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BACKOFFICE_DB_USER"`
	LegacyPassword string `envconfig:"BACKOFFICE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BACKOFFICE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BACKOFFICE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BACKOFFICE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BACKOFFICE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BACKOFFICE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BACKOFFICE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BACKOFFICE_REDIS_ADDR"`
	Password     string        `envconfig:"BACKOFFICE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BACKOFFICE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BACKOFFICE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BACKOFFICE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BACKOFFICE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BACKOFFICE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BACKOFFICE_AUTO_MIGRATE" default:"false"`
	Idempotency bool `envconfig:"BACKOFFICE_FEATURE_IDEMPOTENCY" default:"true"`
}

type LedgerConfig struct {
	MovementPageSize int `envconfig:"BACKOFFICE_LEDGER_MOVEMENT_PAGE_SIZE" default:"50"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"BACKOFFICE_CATALOG_CACHE_TTL" default:"5m"`
}

type PaymentsConfig struct {
	VerifyTimeout time.Duration `envconfig:"BACKOFFICE_PAYMENT_VERIFY_TIMEOUT" default:"10s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"BACKOFFICE_STRIPE_API_KEY"`
	Env    string `envconfig:"BACKOFFICE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"BACKOFFICE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"BACKOFFICE_PUBSUB_ORDERS_TOPIC" default:"backoffice-order-events"`
	StockTopic  string `envconfig:"BACKOFFICE_PUBSUB_STOCK_TOPIC" default:"backoffice-stock-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BACKOFFICE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BACKOFFICE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BACKOFFICE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
