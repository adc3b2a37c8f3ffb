package config

// EnvPrefix is empty because every field carries its fully qualified variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "ORDERCORE_APP_ENV"
	EnvPort     = "ORDERCORE_APP_PORT"
	EnvLogLevel = "ORDERCORE_LOG_LEVEL"

	EnvDBDSN  = "ORDERCORE_DB_DSN"
	EnvDBHost = "ORDERCORE_DB_HOST"
	EnvDBUser = "ORDERCORE_DB_USER"
	EnvDBName = "ORDERCORE_DB_NAME"

	EnvRedisURL = "ORDERCORE_REDIS_URL"

	EnvJWTSecret  = "ORDERCORE_JWT_SECRET"
	EnvJWTIssuer  = "ORDERCORE_JWT_ISSUER"
	EnvJWTExpMins = "ORDERCORE_JWT_EXPIRATION_MINUTES"

	EnvCartMaxItems    = "ORDERCORE_CART_MAX_ITEMS"
	EnvCartMaxQuantity = "ORDERCORE_CART_MAX_QUANTITY_PER_ORDER"
	EnvCartGuestTTL    = "ORDERCORE_CART_GUEST_TTL"

	EnvGCPProjectID      = "ORDERCORE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "ORDERCORE_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "ORDERCORE_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
