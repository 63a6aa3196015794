package config

// EnvPrefix scopes every environment variable consumed by the service.
const EnvPrefix = "HUNGERDASH"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Canonical env var names, shared with tests and deploy manifests.
const (
	EnvAppEnv   = "HUNGERDASH_APP_ENV"
	EnvPort     = "HUNGERDASH_APP_PORT"
	EnvDBDSN    = "HUNGERDASH_DB_DSN"
	EnvDBHost   = "HUNGERDASH_DB_HOST"
	EnvDBUser   = "HUNGERDASH_DB_USER"
	EnvDBName   = "HUNGERDASH_DB_NAME"
	EnvRedisURL = "HUNGERDASH_REDIS_URL"

	EnvJWTSecret  = "HUNGERDASH_JWT_SECRET"
	EnvJWTIssuer  = "HUNGERDASH_JWT_ISSUER"
	EnvJWTExpMins = "HUNGERDASH_JWT_EXPIRATION_MINUTES"

	EnvGatewayAccessToken   = "HUNGERDASH_GATEWAY_ACCESS_TOKEN"
	EnvGatewayLocationID    = "HUNGERDASH_GATEWAY_LOCATION_ID"
	EnvGatewayWebhookSecret = "HUNGERDASH_GATEWAY_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
