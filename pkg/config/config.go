package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cart     CartConfig
	Orders   OrdersConfig
	Eventing EventingConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Webhooks WebhooksConfig
	Cron     CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Cart.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERCORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERCORE_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"ORDERCORE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERCORE_DB_DSN"`
	Driver string `envconfig:"ORDERCORE_DB_DRIVER" default:"postgres"`

	// AutoMigrate applies migrations at boot; honoured only in dev.
	AutoMigrate bool `envconfig:"ORDERCORE_DB_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"ORDERCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERCORE_DB_USER"`
	LegacyPassword string `envconfig:"ORDERCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERCORE_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDERCORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERCORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERCORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// CartConfig bounds cart size and guest cart lifetime.
type CartConfig struct {
	MaxItems            int           `envconfig:"ORDERCORE_CART_MAX_ITEMS" default:"50"`
	MaxQuantityPerOrder int           `envconfig:"ORDERCORE_CART_MAX_QUANTITY_PER_ORDER" default:"99"`
	GuestTTL            time.Duration `envconfig:"ORDERCORE_CART_GUEST_TTL" default:"168h"`
}

func (c CartConfig) validate() error {
	if c.MaxItems <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartMaxItems)
	}
	if c.MaxQuantityPerOrder <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartMaxQuantity)
	}
	if c.GuestTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvCartGuestTTL)
	}
	return nil
}

type OrdersConfig struct {
	AuditDefaultLimit int           `envconfig:"ORDERCORE_ORDERS_AUDIT_DEFAULT_LIMIT" default:"20"`
	AuditMaxLimit     int           `envconfig:"ORDERCORE_ORDERS_AUDIT_MAX_LIMIT" default:"100"`
	UnpaidTTL         time.Duration `envconfig:"ORDERCORE_ORDERS_UNPAID_TTL" default:"72h"`
	BulkCancelMax     int           `envconfig:"ORDERCORE_ORDERS_BULK_CANCEL_MAX" default:"100"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"ORDERCORE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERCORE_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"ORDERCORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"ORDERCORE_PUBSUB_DOMAIN_TOPIC" default:"ordercore-domain-events"`
	DomainSubscription string `envconfig:"ORDERCORE_PUBSUB_DOMAIN_SUBSCRIPTION" default:"ordercore-domain-events-worker"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"ORDERCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"ORDERCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"ORDERCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"ORDERCORE_OUTBOX_RETENTION" default:"720h"`
}

type WebhooksConfig struct {
	PaymentSecret  string        `envconfig:"ORDERCORE_WEBHOOKS_PAYMENT_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"ORDERCORE_WEBHOOKS_IDEMPOTENCY_TTL" default:"168h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ORDERCORE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"ORDERCORE_CRON_LOCK_TTL" default:"4m"`
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
