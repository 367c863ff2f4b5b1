package config

import "time"

const (
	EnvPrefix = "SGTM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:sgtm.db?cache=shared"

	DefaultWebhookTimeout = 30 * time.Second
)

const (
	EnvAppEnv   = "SGTM_APP_ENV"
	EnvPort     = "SGTM_APP_PORT"
	EnvLogLevel = "SGTM_LOG_LEVEL"
	EnvSiteURL  = "SGTM_SITE_URL"

	EnvDBDSN    = "SGTM_DB_DSN"
	EnvDBDriver = "SGTM_DB_DRIVER"
	EnvDBHost   = "SGTM_DB_HOST"
	EnvDBUser   = "SGTM_DB_USER"
	EnvDBName   = "SGTM_DB_NAME"

	EnvRedisURL = "SGTM_REDIS_URL"

	EnvJWTSecret = "SGTM_JWT_SECRET"
	EnvJWTIssuer = "SGTM_JWT_ISSUER"

	EnvWebhookEnabled     = "SGTM_WEBHOOK_ENABLED"
	EnvWebhookURL         = "SGTM_WEBHOOK_URL"
	EnvWebhookContainerID = "SGTM_WEBHOOK_CONTAINER_ID"
	EnvWebhookAuthToken   = "SGTM_WEBHOOK_AUTH_TOKEN"
	EnvWebhookAuthKey     = "SGTM_WEBHOOK_AUTH_KEY"
	EnvWebhookTimeout     = "SGTM_WEBHOOK_TIMEOUT_SECONDS"
	EnvWebhookValidateSSL = "SGTM_WEBHOOK_VALIDATE_SSL"
	EnvWebhookRateLimit   = "SGTM_WEBHOOK_RATE_LIMIT_SECONDS"
	EnvWebhookRetries     = "SGTM_WEBHOOK_RETRY_ATTEMPTS"
	EnvWebhookDebugMode   = "SGTM_WEBHOOK_DEBUG_MODE"
	EnvWebhookFormat      = "SGTM_WEBHOOK_FORMAT"

	EnvPubSubOrdersSub = "SGTM_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvGCPProjectID    = "SGTM_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
