package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Session      SessionConfig
	Carrier      CarrierConfig
	Quote        QuoteConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RILEGATO_APP_ENV" required:"true"`
	Port         string `envconfig:"RILEGATO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RILEGATO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RILEGATO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"RILEGATO_DB_DSN"`
	Driver string `envconfig:"RILEGATO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RILEGATO_DB_HOST"`
	LegacyPort     int    `envconfig:"RILEGATO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RILEGATO_DB_USER"`
	LegacyPassword string `envconfig:"RILEGATO_DB_PASSWORD"`
	LegacyName     string `envconfig:"RILEGATO_DB_NAME"`
	LegacySSLMode  string `envconfig:"RILEGATO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RILEGATO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RILEGATO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RILEGATO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RILEGATO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RILEGATO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RILEGATO_REDIS_ADDR"`
	Password     string        `envconfig:"RILEGATO_REDIS_PASSWORD"`
	DB           int           `envconfig:"RILEGATO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RILEGATO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RILEGATO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RILEGATO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RILEGATO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RILEGATO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SessionConfig struct {
	Secret     string        `envconfig:"RILEGATO_SESSION_SECRET" required:"true"`
	Issuer     string        `envconfig:"RILEGATO_SESSION_ISSUER" default:"rilegato"`
	TTL        time.Duration `envconfig:"RILEGATO_SESSION_TTL" default:"720h"`
	CookieName string        `envconfig:"RILEGATO_SESSION_COOKIE" default:"rilegato_session"`
}

type CarrierConfig struct {
	BaseURL string        `envconfig:"RILEGATO_CARRIER_BASE_URL" required:"true"`
	APIKey  string        `envconfig:"RILEGATO_CARRIER_API_KEY"`
	Timeout time.Duration `envconfig:"RILEGATO_CARRIER_TIMEOUT" default:"20s"`
}

type QuoteConfig struct {
	CacheTTL         time.Duration `envconfig:"RILEGATO_QUOTE_CACHE_TTL" default:"30s"`
	WeightBucketGram int           `envconfig:"RILEGATO_QUOTE_WEIGHT_BUCKET_GRAMS" default:"25"`
}

type RateLimitConfig struct {
	QuoteWindow time.Duration `envconfig:"RILEGATO_RATE_LIMIT_QUOTE_WINDOW" default:"1m"`
	QuoteLimit  int           `envconfig:"RILEGATO_RATE_LIMIT_QUOTE_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RILEGATO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RILEGATO_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
