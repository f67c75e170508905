package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	BackendURL     string
	JaegerEndpoint string
	Port           string
	GRPCPort       string
	LoginURL       string
	Currency       string

	BackendTimeout time.Duration
	LockTTL        time.Duration
	SessionTTL     time.Duration
	Polling        PollingConfig
}

// PollingConfig bounds the payment status poll loop.
type PollingConfig struct {
	Interval             time.Duration
	MaxWait              time.Duration
	MaxConsecutiveErrors int
	MockDelay            time.Duration
}

func DefaultPolling() PollingConfig {
	return PollingConfig{
		Interval:             3 * time.Second,
		MaxWait:              2 * time.Minute,
		MaxConsecutiveErrors: 5,
		MockDelay:            time.Second,
	}
}

func Load() *Config {
	defaults := DefaultPolling()

	return &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getEnv("REDIS_URL", "localhost:6379"),
		KafkaBrokers:   getEnv("KAFKA_BROKERS", "localhost:9092"),
		NatsURL:        getEnv("NATS_URL", "nats://localhost:4222"),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000/api"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "jaeger:4318"),
		Port:           getEnv("PORT", "8084"),
		GRPCPort:       getEnv("GRPC_PORT", "50060"),
		LoginURL:       getEnv("LOGIN_URL", "/login"),
		Currency:       getEnv("CURRENCY", "KES"),
		BackendTimeout: getDuration("BACKEND_TIMEOUT", 15*time.Second),
		LockTTL:        getDuration("CHECKOUT_LOCK_TTL", 30*time.Second),
		SessionTTL:     getDuration("SESSION_TTL", 30*time.Minute),
		Polling: PollingConfig{
			Interval:             getDuration("POLL_INTERVAL", defaults.Interval),
			MaxWait:              getDuration("POLL_MAX_WAIT", defaults.MaxWait),
			MaxConsecutiveErrors: getInt("POLL_MAX_CONSECUTIVE_ERRORS", defaults.MaxConsecutiveErrors),
			MockDelay:            getDuration("MOCK_PAYMENT_DELAY", defaults.MockDelay),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration falls back to the default for unset, malformed or non-positive values.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
