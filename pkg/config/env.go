package config

// EnvPrefix scopes envconfig lookups; the struct tags carry the full names.
const EnvPrefix = "PEERLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	SchedulerDriverMemory = "memory"
	SchedulerDriverRedis  = "redis"

	BusDriverMemory = "memory"
	BusDriverRedis  = "redis"
	BusDriverNATS   = "nats"
)

const (
	EnvAppEnv   = "PEERLINK_APP_ENV"
	EnvPort     = "PEERLINK_APP_PORT"
	EnvLogLevel = "PEERLINK_LOG_LEVEL"

	EnvDBDSN  = "PEERLINK_DB_DSN"
	EnvDBHost = "PEERLINK_DB_HOST"
	EnvDBUser = "PEERLINK_DB_USER"
	EnvDBName = "PEERLINK_DB_NAME"

	EnvRedisURL = "PEERLINK_REDIS_URL"

	EnvJWTSecret  = "PEERLINK_JWT_SECRET"
	EnvJWTIssuer  = "PEERLINK_JWT_ISSUER"
	EnvJWTExpMins = "PEERLINK_JWT_EXPIRATION_MINUTES"

	EnvInvitationTimeout = "PEERLINK_INVITATION_TIMEOUT"
	EnvSchedulerDriver   = "PEERLINK_SCHEDULER_DRIVER"
	EnvBusDriver         = "PEERLINK_BUS_DRIVER"
	EnvNATSURL           = "PEERLINK_NATS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
