package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	RateLimit     RateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	BigQuery      BigQueryConfig
	Square        SquareConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
	Storefront    StorefrontConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	CORSOrigins  string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	env := strings.ToLower(strings.TrimSpace(a.Env))
	return env == AppEnvDev || env == "development" || env == "local"
}

func (a AppConfig) IsProd() bool {
	env := strings.ToLower(strings.TrimSpace(a.Env))
	return env == AppEnvProd || env == "production"
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitCSV(a.CORSOrigins)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged; zero turns query logging off.
	SlowQuery time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"STOREFRONT_REDIS_KEY_PREFIX" default:"sf"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STOREFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STOREFRONT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STOREFRONT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STOREFRONT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STOREFRONT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STOREFRONT_ARGON_KEY_LEN" default:"32"`
	// ResetTTL bounds how long an emailed reset link stays usable.
	ResetTTL time.Duration `envconfig:"STOREFRONT_PASSWORD_RESET_TTL" default:"1h"`
}

// RateLimitConfig holds per-surface windows; a zero limit disables that counter.
type RateLimitConfig struct {
	LoginWindow          time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginAccountLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_LOGIN_ACCOUNT_LIMIT" default:"5"`
	LoginIPLimit         int           `envconfig:"STOREFRONT_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow       time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterAccountLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_REGISTER_ACCOUNT_LIMIT" default:"3"`
	RegisterIPLimit      int           `envconfig:"STOREFRONT_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	NewsletterWindow     time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_NEWSLETTER_WINDOW" default:"10m"`
	NewsletterIPLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_NEWSLETTER_IP_LIMIT" default:"10"`
	ResetWindow          time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_RESET_WINDOW" default:"15m"`
	ResetAccountLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_RESET_ACCOUNT_LIMIT" default:"3"`
	ResetIPLimit         int           `envconfig:"STOREFRONT_RATE_LIMIT_RESET_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// EventingConfig selects the broker the outbox publisher and the workers talk to.
type EventingConfig struct {
	Broker               string        `envconfig:"STOREFRONT_EVENTING_BROKER" default:"pubsub"`
	OutboxIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Broker), BrokerKafka)
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Broker)) {
	case BrokerPubSub, BrokerKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvEventingBroker, BrokerPubSub, BrokerKafka)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic              string `envconfig:"STOREFRONT_PUBSUB_DOMAIN_TOPIC" default:"storefront-domain-events"`
	NotificationSubscription string `envconfig:"STOREFRONT_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"storefront-notifications"`
	AnalyticsSubscription    string `envconfig:"STOREFRONT_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"storefront-analytics"`
	// MaxOutstanding caps unacked messages per subscriber; zero keeps the library default.
	MaxOutstanding int `envconfig:"STOREFRONT_PUBSUB_MAX_OUTSTANDING" default:"100"`
}

type KafkaConfig struct {
	Brokers              string `envconfig:"STOREFRONT_KAFKA_BROKERS" default:"localhost:9092"`
	DomainTopic          string `envconfig:"STOREFRONT_KAFKA_DOMAIN_TOPIC" default:"storefront-domain-events"`
	NotificationGroupID  string `envconfig:"STOREFRONT_KAFKA_NOTIFICATION_GROUP" default:"storefront-notifications"`
	AnalyticsGroupID     string `envconfig:"STOREFRONT_KAFKA_ANALYTICS_GROUP" default:"storefront-analytics"`
	AllowTopicAutoCreate bool   `envconfig:"STOREFRONT_KAFKA_AUTO_CREATE_TOPICS" default:"true"`
}

// BrokerList returns the configured broker addresses.
func (k KafkaConfig) BrokerList() []string {
	return splitCSV(k.Brokers)
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"STOREFRONT_BIGQUERY_DATASET"`
	SalesTable string `envconfig:"STOREFRONT_BIGQUERY_SALES_TABLE" default:"order_item_sales"`
	// AutoCreate creates a missing sales table instead of refusing to start.
	AutoCreate bool `envconfig:"STOREFRONT_BIGQUERY_AUTO_CREATE" default:"false"`
}

// Enabled reports whether the analytics sink is configured.
func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}

type SquareConfig struct {
	AccessToken   string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	LocationID    string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"STOREFRONT_SQUARE_WEBHOOK_SIGNATURE_KEY"`
	WebhookURL    string `envconfig:"STOREFRONT_SQUARE_WEBHOOK_URL"`
	Env           string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"STOREFRONT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"STOREFRONT_SENDGRID_FROM_EMAIL" default:"no-reply@storefront.local"`
	FromName    string `envconfig:"STOREFRONT_SENDGRID_FROM_NAME" default:"Storefront"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"STOREFRONT_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"STOREFRONT_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

// StorefrontConfig holds the business knobs of the shop itself.
type StorefrontConfig struct {
	Currency         string `envconfig:"STOREFRONT_CURRENCY" default:"USD"`
	TaxRate          string `envconfig:"STOREFRONT_TAX_RATE" default:"0.20"`
	PublicBaseURL    string `envconfig:"STOREFRONT_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	// PasswordResetURL is the storefront page that receives ?token=.
	PasswordResetURL string `envconfig:"STOREFRONT_PASSWORD_RESET_URL" default:"http://localhost:3000/password/reset"`
	ProductsPageSize int    `envconfig:"STOREFRONT_PRODUCTS_PAGE_SIZE" default:"12"`
	OrdersPageSize   int    `envconfig:"STOREFRONT_ORDERS_PAGE_SIZE" default:"10"`
	// GuestCartIdle is how long an untouched guest cart survives the retention sweep.
	GuestCartIdle time.Duration `envconfig:"STOREFRONT_GUEST_CART_IDLE" default:"720h"`
	// ContentCacheTTL caches the home content blocks in redis; zero disables.
	ContentCacheTTL time.Duration `envconfig:"STOREFRONT_CONTENT_CACHE_TTL" default:"1m"`
}

// Tax parses the configured tax rate; malformed values fall back to zero.
func (s StorefrontConfig) Tax() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.TaxRate))
	if err != nil || rate.IsNegative() {
		return decimal.Zero
	}
	return rate
}

// ReturnURL is where shoppers land after the gateway flow.
func (s StorefrontConfig) ReturnURL(orderID string) string {
	return strings.TrimRight(s.PublicBaseURL, "/") + "/api/v1/orders/" + orderID + "/payment-return"
}

// NotifyURL is the gateway callback target.
func (s StorefrontConfig) NotifyURL() string {
	return strings.TrimRight(s.PublicBaseURL, "/") + "/api/v1/webhooks/payments"
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1m"`
	ReconcileEvery       time.Duration `envconfig:"STOREFRONT_CRON_RECONCILE_EVERY" default:"10m"`
	RetentionEvery       time.Duration `envconfig:"STOREFRONT_CRON_RETENTION_EVERY" default:"24h"`
	PendingPaymentMinAge time.Duration `envconfig:"STOREFRONT_CRON_PENDING_PAYMENT_MIN_AGE" default:"30m"`
	ReconcileBatchSize   int           `envconfig:"STOREFRONT_CRON_RECONCILE_BATCH_SIZE" default:"100"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		db.DSN = "file:storefront.db?cache=shared"
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

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
