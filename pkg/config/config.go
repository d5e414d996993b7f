package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is passed to envconfig; individual fields carry full names so the
// prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "VIALSHARE_DB_DSN"
	EnvDBHost = "VIALSHARE_DB_HOST"
	EnvDBUser = "VIALSHARE_DB_USER"
	EnvDBName = "VIALSHARE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Orders       OrdersConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string   `envconfig:"VIALSHARE_APP_ENV" required:"true"`
	Port         string   `envconfig:"VIALSHARE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"VIALSHARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"VIALSHARE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"VIALSHARE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VIALSHARE_DB_DSN"`
	Driver string `envconfig:"VIALSHARE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VIALSHARE_DB_HOST"`
	LegacyPort     int    `envconfig:"VIALSHARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VIALSHARE_DB_USER"`
	LegacyPassword string `envconfig:"VIALSHARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"VIALSHARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"VIALSHARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VIALSHARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VIALSHARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VIALSHARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VIALSHARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VIALSHARE_REDIS_URL"`
	Address      string        `envconfig:"VIALSHARE_REDIS_ADDR"`
	Password     string        `envconfig:"VIALSHARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"VIALSHARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VIALSHARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VIALSHARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VIALSHARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VIALSHARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VIALSHARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// OrdersConfig tunes order-code generation.
type OrdersConfig struct {
	CodeMaxAttempts int `envconfig:"VIALSHARE_ORDER_CODE_MAX_ATTEMPTS" default:"5"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VIALSHARE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VIALSHARE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VIALSHARE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	SweepInterval time.Duration `envconfig:"VIALSHARE_CRON_SWEEP_INTERVAL" default:"15m"`
	LockTTL       time.Duration `envconfig:"VIALSHARE_CRON_LOCK_TTL" default:"20m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VIALSHARE_AUTO_MIGRATE" default:"false"`
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
