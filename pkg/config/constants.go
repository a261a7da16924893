package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// envconfig tags so the prefix only matters for untagged fields.
const EnvPrefix = "AUCTIONHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "AUCTIONHUB_APP_ENV"
	EnvPort     = "AUCTIONHUB_APP_PORT"
	EnvLogLevel = "AUCTIONHUB_LOG_LEVEL"

	EnvDBDSN      = "AUCTIONHUB_DB_DSN"
	EnvDBHost     = "AUCTIONHUB_DB_HOST"
	EnvDBUser     = "AUCTIONHUB_DB_USER"
	EnvDBName     = "AUCTIONHUB_DB_NAME"
	EnvDBPassword = "AUCTIONHUB_DB_PASSWORD"

	EnvRedisURL = "AUCTIONHUB_REDIS_URL"

	EnvJWTSecret  = "AUCTIONHUB_JWT_SECRET"
	EnvJWTIssuer  = "AUCTIONHUB_JWT_ISSUER"
	EnvJWTExpMins = "AUCTIONHUB_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "AUCTIONHUB_GCP_PROJECT_ID"

	EnvPubSubDomainTopic = "AUCTIONHUB_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubDomainSub   = "AUCTIONHUB_PUBSUB_DOMAIN_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
