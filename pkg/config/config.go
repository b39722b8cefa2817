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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Invitation   InvitationConfig
	Scheduler    SchedulerConfig
	Realtime     RealtimeConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Scheduler.Driver {
	case SchedulerDriverMemory, SchedulerDriverRedis:
	default:
		return fmt.Errorf("%s must be one of %q or %q", EnvSchedulerDriver, SchedulerDriverMemory, SchedulerDriverRedis)
	}
	switch c.Realtime.BusDriver {
	case BusDriverMemory, BusDriverRedis:
	case BusDriverNATS:
		if c.Realtime.NATSURL == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvNATSURL, EnvBusDriver, BusDriverNATS)
		}
	default:
		return fmt.Errorf("%s must be one of %q, %q or %q", EnvBusDriver, BusDriverMemory, BusDriverRedis, BusDriverNATS)
	}
	if c.Invitation.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvInvitationTimeout)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"PEERLINK_APP_ENV" required:"true"`
	Port         string   `envconfig:"PEERLINK_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PEERLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PEERLINK_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PEERLINK_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PEERLINK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PEERLINK_DB_DSN"`
	Driver string `envconfig:"PEERLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PEERLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"PEERLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PEERLINK_DB_USER"`
	LegacyPassword string `envconfig:"PEERLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"PEERLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"PEERLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PEERLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PEERLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PEERLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PEERLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PEERLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PEERLINK_REDIS_ADDR"`
	Password     string        `envconfig:"PEERLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PEERLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PEERLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PEERLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PEERLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PEERLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PEERLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PEERLINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PEERLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PEERLINK_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PEERLINK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PEERLINK_AUTO_MIGRATE" default:"false"`
}

// InvitationConfig tunes the invitation lifecycle.
type InvitationConfig struct {
	Timeout    time.Duration `envconfig:"PEERLINK_INVITATION_TIMEOUT" default:"60s"`
	SweepGrace time.Duration `envconfig:"PEERLINK_INVITATION_SWEEP_GRACE" default:"30s"`
	SendLimit  int           `envconfig:"PEERLINK_INVITATION_SEND_LIMIT" default:"30"`
	SendWindow time.Duration `envconfig:"PEERLINK_INVITATION_SEND_WINDOW" default:"1m"`
}

type SchedulerConfig struct {
	Driver       string        `envconfig:"PEERLINK_SCHEDULER_DRIVER" default:"memory"`
	PollInterval time.Duration `envconfig:"PEERLINK_SCHEDULER_POLL_INTERVAL" default:"1s"`
	Concurrency  int           `envconfig:"PEERLINK_SCHEDULER_CONCURRENCY" default:"8"`
}

type RealtimeConfig struct {
	BusDriver    string        `envconfig:"PEERLINK_BUS_DRIVER" default:"memory"`
	NATSURL      string        `envconfig:"PEERLINK_NATS_URL"`
	PingInterval time.Duration `envconfig:"PEERLINK_WS_PING_INTERVAL" default:"30s"`
	PongWait     time.Duration `envconfig:"PEERLINK_WS_PONG_WAIT" default:"60s"`
	WriteWait    time.Duration `envconfig:"PEERLINK_WS_WRITE_WAIT" default:"10s"`
	SendBuffer   int           `envconfig:"PEERLINK_WS_SEND_BUFFER" default:"256"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PEERLINK_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"PEERLINK_CRON_LOCK_TTL" default:"5m"`
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
