package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Durations accept Go duration syntax ("2m",
// "500ms").
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify HS256 bearer tokens

	DBMaxOpenConns int  // pool size
	AutoMigrate    bool // apply the embedded schema at startup

	LockTTL         time.Duration // lifetime of a HELD seat lock
	NotifyTimeout   time.Duration // budget of one post-commit notification
	ShutdownTimeout time.Duration // graceful shutdown budget

	RabbitURL   string // AMQP URL; empty disables event publishing
	RabbitQueue string // queue booking events are published to

	LogLevel string // zap level: debug, info, warn, error
}

// Load reads configuration values from environment variables and returns a
// Config.  Every required variable that is unset or empty is reported in
// the returned error so that all of them can be fixed in one go.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}
	cfg := Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      envStr("APP_PORT", "8080"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"),
		DBHost:    must("DB_HOST"),
		DBPort:    envStr("DB_PORT", "3306"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
		AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),

		LockTTL:         envDur("LOCK_TTL", 2*time.Minute),
		NotifyTimeout:   envDur("NOTIFY_TIMEOUT", 5*time.Second),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),

		RabbitURL:   os.Getenv("RABBITMQ_URL"),
		RabbitQueue: envStr("RABBITMQ_QUEUE", "booking.events"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.LockTTL <= 0 {
		return Config{}, fmt.Errorf("invalid LOCK_TTL %s: must be positive", cfg.LockTTL)
	}
	if cfg.DBMaxOpenConns < 1 {
		cfg.DBMaxOpenConns = 1
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// DSN renders the go-sql-driver/mysql data source name.
func (c Config) DSN() string {
	auth := c.DBUser
	if c.DBPass != "" {
		auth = fmt.Sprintf("%s:%s", c.DBUser, c.DBPass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, c.DBHost, c.DBPort, c.DBName)
}
