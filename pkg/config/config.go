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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Auction      AuctionConfig
	Payment      PaymentConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string   `envconfig:"AUCTIONHUB_APP_ENV" required:"true"`
	Port         string   `envconfig:"AUCTIONHUB_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"AUCTIONHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"AUCTIONHUB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"AUCTIONHUB_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AUCTIONHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AUCTIONHUB_DB_DSN"`
	Driver string `envconfig:"AUCTIONHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AUCTIONHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"AUCTIONHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AUCTIONHUB_DB_USER"`
	LegacyPassword string `envconfig:"AUCTIONHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"AUCTIONHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"AUCTIONHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AUCTIONHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AUCTIONHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AUCTIONHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AUCTIONHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AUCTIONHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AUCTIONHUB_REDIS_ADDR"`
	Password     string        `envconfig:"AUCTIONHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"AUCTIONHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AUCTIONHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AUCTIONHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AUCTIONHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AUCTIONHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AUCTIONHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AUCTIONHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AUCTIONHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AUCTIONHUB_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TokenTTL returns the configured access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type AuctionConfig struct {
	StartSweepInterval   time.Duration `envconfig:"AUCTIONHUB_AUCTION_START_SWEEP_INTERVAL" default:"60s"`
	EndSweepInterval     time.Duration `envconfig:"AUCTIONHUB_AUCTION_END_SWEEP_INTERVAL" default:"60s"`
	PaymentSweepInterval time.Duration `envconfig:"AUCTIONHUB_PAYMENT_SWEEP_INTERVAL" default:"5m"`
	PaymentDeadline      time.Duration `envconfig:"AUCTIONHUB_PAYMENT_DEADLINE" default:"24h"`
	AllowAdminBids       bool          `envconfig:"AUCTIONHUB_AUCTION_ALLOW_ADMIN_BIDS" default:"true"`
	BroadcastChannel     string        `envconfig:"AUCTIONHUB_AUCTION_BROADCAST_CHANNEL" default:"auctionhub:auction-events"`
	SweepBatchSize       int           `envconfig:"AUCTIONHUB_AUCTION_SWEEP_BATCH_SIZE" default:"100"`
	BidRateLimit         int           `envconfig:"AUCTIONHUB_BID_RATE_LIMIT" default:"30"`
	BidRateWindow        time.Duration `envconfig:"AUCTIONHUB_BID_RATE_WINDOW" default:"1m"`
}

type PaymentConfig struct {
	BankName       string `envconfig:"AUCTIONHUB_PAYMENT_BANK_NAME"`
	BankAccount    string `envconfig:"AUCTIONHUB_PAYMENT_BANK_ACCOUNT"`
	BankHolder     string `envconfig:"AUCTIONHUB_PAYMENT_BANK_HOLDER"`
	GatewayBaseURL string `envconfig:"AUCTIONHUB_PAYMENT_GATEWAY_BASE_URL" default:"https://pay.auctionhub.dev"`
	QRBaseURL      string `envconfig:"AUCTIONHUB_PAYMENT_QR_BASE_URL" default:"https://qr.auctionhub.dev"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AUCTIONHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AUCTIONHUB_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AUCTIONHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"AUCTIONHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AUCTIONHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"AUCTIONHUB_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"AUCTIONHUB_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"AUCTIONHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"AUCTIONHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"AUCTIONHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"AUCTIONHUB_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
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
