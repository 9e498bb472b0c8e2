package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	// Postgres
	DatabaseURL string

	// RabbitMQ
	RabbitURL string

	OrderCreatedExchange   string
	OrderCreatedRoutingKey string

	OrderProcessedExchange   string
	OrderProcessedRoutingKey string

	DLXName string
	DLQName string

	MaxRetryAttempts      int
	RetryDelayBaseSeconds int

	// Outbox
	OutboxBatchSize    int
	OutboxPollInterval time.Duration
	OutboxMaxRetries   int

	// Redis (empty addr disables the status cache)
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	StatusCacheTTL time.Duration

	// Rate limiting
	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	LogLevel  string
	LogFormat string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	ShutdownTimeout  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8000")

	// --- Postgres: prefer DATABASE_URL if present, else build from DB_*
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	} else {
		cfg.DatabaseURL = buildPostgresURL(
			getEnv("DB_HOST", ""),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", ""),
			getEnv("DB_PASS", ""),
			getEnv("DB_NAME", ""),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	// --- RabbitMQ: prefer RABBIT_URL, else build from RABBIT_*
	if v := strings.TrimSpace(os.Getenv("RABBIT_URL")); v != "" {
		cfg.RabbitURL = v
	} else {
		cfg.RabbitURL = buildAMQPURL(
			getEnv("RABBIT_HOST", ""),
			getEnv("RABBIT_PORT", "5672"),
			getEnv("RABBIT_USER", "guest"),
			getEnv("RABBIT_PASS", "guest"),
			getEnv("RABBIT_VHOST", "/"),
		)
	}

	cfg.OrderCreatedExchange = getEnv("ORDER_CREATED_EXCHANGE", "order.created")
	cfg.OrderCreatedRoutingKey = getEnv("ORDER_CREATED_ROUTING_KEY", "order.created")
	cfg.OrderProcessedExchange = getEnv("ORDER_PROCESSED_EXCHANGE", "order.processed")
	cfg.OrderProcessedRoutingKey = getEnv("ORDER_PROCESSED_ROUTING_KEY", "order.processed")
	cfg.DLXName = getEnv("DLX_NAME", "dlx")
	cfg.DLQName = getEnv("DLQ_NAME", "dlq")

	cfg.MaxRetryAttempts = getInt("MAX_RETRY_ATTEMPTS", 3)
	cfg.RetryDelayBaseSeconds = getInt("RETRY_DELAY_BASE_SECONDS", 1)

	cfg.OutboxBatchSize = getInt("OUTBOX_BATCH_SIZE", 100)
	cfg.OutboxPollInterval = getDuration("OUTBOX_POLL_INTERVAL", 5*time.Second)
	cfg.OutboxMaxRetries = getInt("OUTBOX_MAX_RETRIES", 3)

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getInt("REDIS_DB", 0)
	cfg.StatusCacheTTL = getDuration("ORDER_STATUS_CACHE_TTL", 30*time.Second)

	cfg.RLEnabled = getBool("RL_ENABLED", true)
	cfg.RLLimit = getInt("RL_REQUESTS_LIMIT", 100)
	cfg.RLWindow = getDuration("RL_WINDOW", time.Minute)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	cfg.HTTPReadTimeout = getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.HTTPWriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 20*time.Second)
	cfg.HTTPIdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second)

	// validation
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DATABASE_URL (or DB_HOST/DB_USER/DB_NAME)")
	}
	if cfg.RabbitURL == "" {
		return nil, fmt.Errorf("missing RABBIT_URL (or RABBIT_HOST)")
	}
	if cfg.MaxRetryAttempts < 0 {
		return nil, fmt.Errorf("MAX_RETRY_ATTEMPTS must be >= 0")
	}
	if cfg.RetryDelayBaseSeconds <= 0 {
		return nil, fmt.Errorf("RETRY_DELAY_BASE_SECONDS must be > 0")
	}
	if cfg.OutboxBatchSize <= 0 {
		return nil, fmt.Errorf("OUTBOX_BATCH_SIZE must be > 0")
	}

	return cfg, nil
}

// buildPostgresURL builds a postgres URL DSN, escaping credentials.
func buildPostgresURL(host, port, user, pass, db, sslmode string) string {
	if strings.TrimSpace(host) == "" || strings.TrimSpace(user) == "" || strings.TrimSpace(db) == "" {
		return ""
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   strings.TrimSpace(host) + ":" + strings.TrimSpace(port),
		Path:   "/" + strings.TrimPrefix(strings.TrimSpace(db), "/"),
	}
	if pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}

	q := url.Values{}
	if strings.TrimSpace(sslmode) != "" {
		q.Set("sslmode", strings.TrimSpace(sslmode))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func buildAMQPURL(host, port, user, pass, vhost string) string {
	if strings.TrimSpace(host) == "" {
		return ""
	}
	u := &url.URL{
		Scheme: "amqp",
		Host:   strings.TrimSpace(host) + ":" + strings.TrimSpace(port),
		User:   url.UserPassword(user, pass),
		Path:   "/" + strings.TrimPrefix(strings.TrimSpace(vhost), "/"),
	}
	return u.String()
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getDuration parses Go duration syntax; bare numbers are taken as seconds
// so values like OUTBOX_POLL_INTERVAL=5 keep working.
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return def
}
