package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer              = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"

	EnvCartTaxRate               = "STOREFRONT_CART_TAX_RATE"
	EnvCartFreeShippingThreshold = "STOREFRONT_CART_FREE_SHIPPING_THRESHOLD_CENTS"
	EnvCartExpiryDays            = "STOREFRONT_CART_EXPIRY_DAYS"
	EnvCartMaxMutationAttempts   = "STOREFRONT_CART_MAX_MUTATION_ATTEMPTS"

	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "STOREFRONT_PUBSUB_DOMAIN_TOPIC"
)

// discreteDBEnvVars must all be present when no DSN is configured.
var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
