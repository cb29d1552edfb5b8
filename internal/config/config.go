package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	BaseURL     string

	// DefaultUserID is the caller identity used when a request carries no X-User-Id.
	DefaultUserID         string
	CreditsInitialBalance int64

	StoreBackend string
	BoltPath     string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Redis     RedisConfig
	Stripe    StripeConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	APIURL            string
	Timeout           time.Duration
	MaxNetworkRetries int64
	WebhookTolerance  time.Duration
}

type RateLimitConfig struct {
	CheckoutRatePerSecond float64
	CheckoutBurst         int
	MeteredRatePerSecond  float64
	MeteredBurst          int
}

type LoggerConfig struct {
	Level  string
	Format string
}

const (
	StoreBackendMemory = "memory"
	StoreBackendSQL    = "sql"
	StoreBackendBolt   = "bolt"
	StoreBackendRedis  = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:               getenv("APP_SERVICE", "apicredits"),
		AppVersion:            getenv("APP_VERSION", "0.1.0"),
		Environment:           getenv("ENVIRONMENT", "development"),
		HTTPAddr:              getenv("HTTP_ADDR", ":8080"),
		BaseURL:               strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:3000"), "/"),
		DefaultUserID:         strings.TrimSpace(getenv("DEFAULT_USER_ID", "user_123")),
		CreditsInitialBalance: getenvInt64("CREDITS_INITIAL_BALANCE", 750),
		StoreBackend:          normalizeStoreBackend(getenv("STORE_BACKEND", StoreBackendMemory)),
		BoltPath:              getenv("BOLT_PATH", "apicredits.db"),
		OTLPEndpoint:          getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:                getenv("DATABASE_TYPE", "sqlite"),
		DBHost:                getenv("DATABASE_HOST", "localhost"),
		DBPort:                getenv("DATABASE_PORT", "5432"),
		DBName:                getenv("DATABASE_NAME", "apicredits"),
		DBUser:                getenv("DATABASE_USER", "postgres"),
		DBPassword:            getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:             getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:         getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:         getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:     getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:     getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:         getenvBool("DATABASE_AUTO_MIGRATE", true),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:         strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "sk_test_your_key")),
			WebhookSecret:     strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "whsec_your_webhook_secret")),
			APIURL:            strings.TrimSpace(getenv("STRIPE_API_URL", "")),
			Timeout:           getenvDuration("STRIPE_TIMEOUT", 10*time.Second),
			MaxNetworkRetries: getenvInt64("STRIPE_MAX_NETWORK_RETRIES", 1),
			WebhookTolerance:  getenvDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			CheckoutRatePerSecond: getenvFloat("CHECKOUT_RATE_PER_SECOND", 1),
			CheckoutBurst:         getenvInt("CHECKOUT_BURST", 5),
			MeteredRatePerSecond:  getenvFloat("METERED_RATE_PER_SECOND", 50),
			MeteredBurst:          getenvInt("METERED_BURST", 100),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getenv("LOG_FORMAT", "json")),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeStoreBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case StoreBackendSQL, "postgres", "mysql", "sqlite":
		return StoreBackendSQL
	case StoreBackendBolt, "boltdb":
		return StoreBackendBolt
	case StoreBackendRedis:
		return StoreBackendRedis
	default:
		return StoreBackendMemory
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("10s") or bare seconds ("10").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
