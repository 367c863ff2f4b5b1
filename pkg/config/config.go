package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/sgtm-webhook/pkg/enums"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Webhook  WebhookConfig
	Dispatch DispatchConfig
	Stats    StatsConfig
	Eventing EventingConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
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
	if err := cfg.Webhook.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(cfg.Webhook); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SGTM_APP_ENV" required:"true"`
	Port         string `envconfig:"SGTM_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SGTM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SGTM_LOG_WARN_STACK" default:"false"`
	SiteURL      string `envconfig:"SGTM_SITE_URL"`
	Version      string `envconfig:"SGTM_APP_VERSION" default:"1.0.0"`
	// CORSOrigins lists the admin console origins allowed to call the API.
	CORSOrigins []string `envconfig:"SGTM_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SGTM_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SGTM_DB_DSN"`
	Driver string `envconfig:"SGTM_DB_DRIVER" default:"postgres"`
	// AutoMigrate runs goose up on boot in dev.
	AutoMigrate bool `envconfig:"SGTM_DB_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"SGTM_DB_HOST"`
	LegacyPort     int    `envconfig:"SGTM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SGTM_DB_USER"`
	LegacyPassword string `envconfig:"SGTM_DB_PASSWORD"`
	LegacyName     string `envconfig:"SGTM_DB_NAME"`
	LegacySSLMode  string `envconfig:"SGTM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SGTM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SGTM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SGTM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SGTM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite dialector is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SGTM_REDIS_URL"`
	Address      string        `envconfig:"SGTM_REDIS_ADDR"`
	Password     string        `envconfig:"SGTM_REDIS_PASSWORD"`
	DB           int           `envconfig:"SGTM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SGTM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SGTM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SGTM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SGTM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SGTM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis connection target is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SGTM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SGTM_JWT_ISSUER" default:"sgtm-webhook"`
	ExpirationMinutes int    `envconfig:"SGTM_JWT_EXPIRATION_MINUTES" default:"60"`
}

// WebhookConfig is the typed settings surface for outbound delivery.
type WebhookConfig struct {
	Enabled          bool   `envconfig:"SGTM_WEBHOOK_ENABLED" default:"false"`
	URL              string `envconfig:"SGTM_WEBHOOK_URL" validate:"omitempty,url"`
	ContainerID      string `envconfig:"SGTM_WEBHOOK_CONTAINER_ID" validate:"omitempty,max=128"`
	AuthToken        string `envconfig:"SGTM_WEBHOOK_AUTH_TOKEN"`
	AuthKey          string `envconfig:"SGTM_WEBHOOK_AUTH_KEY"`
	TimeoutSeconds   int    `envconfig:"SGTM_WEBHOOK_TIMEOUT_SECONDS" default:"30" validate:"min=1,max=300"`
	ValidateSSL      bool   `envconfig:"SGTM_WEBHOOK_VALIDATE_SSL" default:"true"`
	RateLimitSeconds int    `envconfig:"SGTM_WEBHOOK_RATE_LIMIT_SECONDS" default:"60" validate:"gtefield=TimeoutSeconds,max=86400"`
	RetryAttempts    int    `envconfig:"SGTM_WEBHOOK_RETRY_ATTEMPTS" default:"3" validate:"min=0,max=10"`
	DebugMode        bool   `envconfig:"SGTM_WEBHOOK_DEBUG_MODE" default:"false"`
	Format           string `envconfig:"SGTM_WEBHOOK_FORMAT" default:"generic" validate:"oneof=generic meta"`
}

var webhookValidator = validator.New()

// Validate checks the webhook settings at startup so bad values never reach the pipeline.
func (w WebhookConfig) Validate() error {
	if err := webhookValidator.Struct(w); err != nil {
		return fmt.Errorf("invalid webhook config: %w", err)
	}
	return nil
}

// Timeout returns the per-request delivery timeout.
func (w WebhookConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return DefaultWebhookTimeout
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// RateLimit returns the per-order cooldown between attempts.
func (w WebhookConfig) RateLimit() time.Duration {
	if w.RateLimitSeconds < 0 {
		return 0
	}
	return time.Duration(w.RateLimitSeconds) * time.Second
}

// PayloadFormat returns the configured format, falling back to generic.
func (w WebhookConfig) PayloadFormat() enums.PayloadFormat {
	format, err := enums.ParsePayloadFormat(strings.ToLower(strings.TrimSpace(w.Format)))
	if err != nil {
		return enums.PayloadFormatGeneric
	}
	return format
}

// BuildEndpoint returns the delivery URL: the configured base with a /data
// suffix and the container id as the id query parameter. Empty when no URL is set.
func (w WebhookConfig) BuildEndpoint() string {
	base := strings.TrimSpace(w.URL)
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		return ""
	}

	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, "/data") {
		path += "/data"
	}
	u.Path = path

	if container := strings.TrimSpace(w.ContainerID); container != "" {
		q := u.Query()
		q.Set("id", container)
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// ProbeURL returns the configured base URL used for connectivity checks.
func (w WebhookConfig) ProbeURL() string {
	return strings.TrimSpace(w.URL)
}

type DispatchConfig struct {
	LockTTL        time.Duration `envconfig:"SGTM_DISPATCH_LOCK_TTL" default:"90s"`
	ReprocessLimit int           `envconfig:"SGTM_DISPATCH_REPROCESS_LIMIT" default:"10"`
}

// Validate rejects a lock that could expire while a delivery is still running.
func (d DispatchConfig) Validate(webhook WebhookConfig) error {
	if d.LockTTL <= webhook.Timeout() {
		return fmt.Errorf("invalid dispatch config: SGTM_DISPATCH_LOCK_TTL (%s) must exceed the webhook timeout (%s)", d.LockTTL, webhook.Timeout())
	}
	return nil
}

type StatsConfig struct {
	CacheTTL time.Duration `envconfig:"SGTM_STATS_CACHE_TTL" default:"1h"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SGTM_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SGTM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SGTM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SGTM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersSubscription string `envconfig:"SGTM_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"SGTM_CRON_INTERVAL" default:"15m"`
	LockTTL              time.Duration `envconfig:"SGTM_CRON_LOCK_TTL" default:"10m"`
	OutcomeRetentionDays int           `envconfig:"SGTM_CRON_OUTCOME_RETENTION_DAYS" default:"90"`
	RetrySweepLimit      int           `envconfig:"SGTM_CRON_RETRY_SWEEP_LIMIT" default:"50"`
	RetrySweepMaxAge     time.Duration `envconfig:"SGTM_CRON_RETRY_SWEEP_MAX_AGE" default:"72h"`
}

// OutcomeRetention returns how long outcome rows are kept.
func (c CronConfig) OutcomeRetention() time.Duration {
	if c.OutcomeRetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.OutcomeRetentionDays) * 24 * time.Hour
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
