package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// qualified names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "RILEGATO_DB_DSN"
	EnvDBHost = "RILEGATO_DB_HOST"
	EnvDBUser = "RILEGATO_DB_USER"
	EnvDBName = "RILEGATO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
