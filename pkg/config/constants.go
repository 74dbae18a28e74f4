package config

// EnvPrefix is applied by envconfig when processing the environment.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "CLINICORE_DB_DSN"
	EnvDBHost = "CLINICORE_DB_HOST"
	EnvDBUser = "CLINICORE_DB_USER"
	EnvDBName = "CLINICORE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
