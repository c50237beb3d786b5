package config

const (
	EnvPrefix = "DAILYLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv        = "DAILYLEDGER_APP_ENV"
	EnvPort          = "DAILYLEDGER_APP_PORT"
	EnvDBDSN         = "DAILYLEDGER_DB_DSN"
	EnvDBHost        = "DAILYLEDGER_DB_HOST"
	EnvDBUser        = "DAILYLEDGER_DB_USER"
	EnvDBName        = "DAILYLEDGER_DB_NAME"
	EnvUseSQLite     = "DAILYLEDGER_USE_SQLITE"
	EnvRedisURL      = "DAILYLEDGER_REDIS_URL"
	EnvTenants       = "DAILYLEDGER_TENANTS"
	EnvTimeZone      = "DAILYLEDGER_TIME_ZONE"
	EnvDefaultCutoff = "DAILYLEDGER_DEFAULT_CUTOFF"
	EnvGranularity   = "DAILYLEDGER_CART_GRANULARITY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
