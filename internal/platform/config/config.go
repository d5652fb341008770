package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all runtime configuration so main stays lean.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Export   Export
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Postgres configures the database pool. An empty DSN selects the in-memory
// stores, which keeps local development dependency-free.
type Postgres struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis configures the dashboard summary cache. An empty URL disables caching.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SummaryTTL   time.Duration
}

// Kafka configures the audit event sink. Empty brokers disable publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Export configures CSV snapshot output.
type Export struct {
	Dir string
}

// FromEnv builds a Config from environment variables with development defaults.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envString("LOANBOOK_ADDR", ":8080"),
			RequestTimeout:  envDuration("LOANBOOK_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("LOANBOOK_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			DSN:             os.Getenv("LOANBOOK_POSTGRES_DSN"),
			MaxOpenConns:    envInt("LOANBOOK_POSTGRES_MAX_OPEN", 10),
			MaxIdleConns:    envInt("LOANBOOK_POSTGRES_MAX_IDLE", 5),
			ConnMaxLifetime: envDuration("LOANBOOK_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("LOANBOOK_REDIS_URL"),
			PoolSize:     envInt("LOANBOOK_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("LOANBOOK_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("LOANBOOK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("LOANBOOK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("LOANBOOK_REDIS_WRITE_TIMEOUT", 3*time.Second),
			SummaryTTL:   envDuration("LOANBOOK_DASHBOARD_CACHE_TTL", 60*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("LOANBOOK_KAFKA_BROKERS"),
			Topic:   envString("LOANBOOK_KAFKA_AUDIT_TOPIC", "loanbook.audit"),
		},
		Export: Export{
			Dir: envString("LOANBOOK_EXPORT_DIR", "data"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
