package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Board        BoardConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigins           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	CookieSecure          bool
}

// BoardConfig tunes the ordering engine.
type BoardConfig struct {
	// AdvisoryLocks serializes relocations touching the same category.
	AdvisoryLocks bool
	// HistoryPageSize is the default page size of history listings.
	HistoryPageSize int
	// HistoryMaxPageSize caps the page size a client may request.
	HistoryMaxPageSize int
}

// NotificationConfig holds the outgoing webhook settings. An empty
// WebhookURL disables delivery.
type NotificationConfig struct {
	WebhookURL            string
	WebhookTimeoutSeconds int
}

// WebhookTimeout bounds a single webhook delivery.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	if n.WebhookTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.WebhookTimeoutSeconds) * time.Second
}

var defaults = map[string]any{
	"app.name":                       "kanban-service",
	"app.env":                        "development",
	"app.host":                       "0.0.0.0",
	"app.port":                       "8080",
	"app.version":                    "dev",
	"http.request_timeout_seconds":   30,
	"cors.origins":                   "http://localhost:3000",
	"postgres.dsn":                   "",
	"postgres.max_conns":             10,
	"postgres.min_conns":             2,
	"postgres.run_migrations":        true,
	"postgres.conn_max_idle_seconds": 30,
	"postgres.conn_max_life_seconds": 300,
	"redis.addr":                     "127.0.0.1:6379",
	"redis.password":                 "",
	"redis.db":                       0,
	"log.level":                      "info",
	"auth.jwt_secret":                "dev-secret",
	"auth.access_token_ttl_minutes":  30,
	"auth.bcrypt_cost":               12,
	"auth.cookie_secure":             false,
	"board.advisory_locks":           true,
	"board.history_page_size":        50,
	"board.history_max_page_size":    100,
	"notify.webhook_url":             "",
	"notify.webhook_timeout_seconds": 5,
}

// Load reads configuration from an optional config.yaml, a .env file and the
// environment, in increasing order of precedence. Nested keys map to env vars
// by upper-casing and replacing dots, so board.advisory_locks is read from
// BOARD_ADVISORY_LOCKS.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  v.GetString("app.name"),
			Env:                   v.GetString("app.env"),
			Host:                  v.GetString("app.host"),
			Port:                  v.GetString("app.port"),
			Version:               v.GetString("app.version"),
			RequestTimeoutSeconds: v.GetInt("http.request_timeout_seconds"),
			CORSOrigins:           v.GetString("cors.origins"),
		},
		Postgres: PostgresConfig{
			DSN:            v.GetString("postgres.dsn"),
			MaxConns:       v.GetInt32("postgres.max_conns"),
			MinConns:       v.GetInt32("postgres.min_conns"),
			RunMigrations:  v.GetBool("postgres.run_migrations"),
			ConnMaxIdleSec: v.GetInt32("postgres.conn_max_idle_seconds"),
			ConnMaxLifeSec: v.GetInt32("postgres.conn_max_life_seconds"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("log.level"),
		},
		Auth: AuthConfig{
			JWTSecret:             v.GetString("auth.jwt_secret"),
			AccessTokenTTLMinutes: v.GetInt("auth.access_token_ttl_minutes"),
			BcryptCost:            v.GetInt("auth.bcrypt_cost"),
			CookieSecure:          v.GetBool("auth.cookie_secure"),
		},
		Board: BoardConfig{
			AdvisoryLocks:      v.GetBool("board.advisory_locks"),
			HistoryPageSize:    v.GetInt("board.history_page_size"),
			HistoryMaxPageSize: v.GetInt("board.history_max_page_size"),
		},
		Notification: NotificationConfig{
			WebhookURL:            v.GetString("notify.webhook_url"),
			WebhookTimeoutSeconds: v.GetInt("notify.webhook_timeout_seconds"),
		},
	}

	if cfg.Board.HistoryPageSize <= 0 {
		return nil, fmt.Errorf("invalid BOARD_HISTORY_PAGE_SIZE: %d", cfg.Board.HistoryPageSize)
	}
	if cfg.Board.HistoryMaxPageSize < cfg.Board.HistoryPageSize {
		return nil, fmt.Errorf("BOARD_HISTORY_MAX_PAGE_SIZE %d below default page size %d",
			cfg.Board.HistoryMaxPageSize, cfg.Board.HistoryPageSize)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}
