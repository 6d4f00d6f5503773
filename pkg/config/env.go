package config

// EnvPrefix is handed to envconfig; every field also declares its full variable name.
const EnvPrefix = "BACKOFFICE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "BACKOFFICE_APP_ENV"
	EnvPort     = "BACKOFFICE_APP_PORT"
	EnvLogLevel = "BACKOFFICE_LOG_LEVEL"

	EnvDBDSN    = "BACKOFFICE_DB_DSN"
	EnvDBDriver = "BACKOFFICE_DB_DRIVER"
	EnvDBHost   = "BACKOFFICE_DB_HOST"
	EnvDBUser   = "BACKOFFICE_DB_USER"
	EnvDBName   = "BACKOFFICE_DB_NAME"

	EnvRedisURL = "BACKOFFICE_REDIS_URL"

	EnvGCPProjectID      = "BACKOFFICE_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "BACKOFFICE_PUBSUB_ORDERS_TOPIC"
	EnvPubSubStockTopic  = "BACKOFFICE_PUBSUB_STOCK_TOPIC"

	EnvStripeAPIKey   = "BACKOFFICE_STRIPE_API_KEY"
	EnvPaymentTimeout = "BACKOFFICE_PAYMENT_VERIFY_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
