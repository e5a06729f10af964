package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultPushEndpoint = "https://exp.host/--/api/v2/push/send"

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	Store struct {
		MaxAttempts  int
		RetryBackoff time.Duration
	}

	Notify struct {
		Enabled  bool
		Endpoint string
		Timeout  time.Duration
	}

	Admin struct {
		Emails  []string
		KeyHash string
	}

	Cleanup struct {
		Interval time.Duration
	}

	Feed struct {
		Prefix string
	}
}

// Load reads an optional env file before building the config.
// A missing file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	return New(), nil
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "arena_server")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "arena")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Transactions
	cfg.Store.MaxAttempts = getEnvInt("TX_MAX_ATTEMPTS", 5)
	cfg.Store.RetryBackoff = getEnvDuration("TX_RETRY_BACKOFF", 5*time.Millisecond)

	// Push notifications
	cfg.Notify.Enabled = isTruthy(os.Getenv("PUSH_ENABLED"))
	cfg.Notify.Endpoint = getEnvDefault("PUSH_ENDPOINT", defaultPushEndpoint)
	cfg.Notify.Timeout = getEnvDuration("PUSH_TIMEOUT", 5*time.Second)

	// Operators
	cfg.Admin.Emails = splitList(os.Getenv("ADMIN_EMAILS"))
	cfg.Admin.KeyHash = getEnvDefault("ADMIN_KEY_HASH", "")

	cfg.Cleanup.Interval = getEnvDuration("CLEANUP_INTERVAL", time.Minute)

	cfg.Feed.Prefix = getEnvDefault("FEED_PREFIX", "feed")

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	n, err := strconv.Atoi(getEnvDefault(k, ""))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnvDefault(k, ""))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
