package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	strs "cveregistry/pkg/platform/strings"
)

// Store backends for identifier and range documents.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string
	Backend   string
	SeedFile  string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Allocator   AllocatorConfig
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event sink. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
	RelayBatch    int
}

// AllocatorConfig tunes identifier reservation.
type AllocatorConfig struct {
	// PoolFloor is the minimum number of AVAILABLE candidates fetched per refresh.
	PoolFloor int
	// MaxAmount caps the amount of a single non-sequential request.
	MaxAmount int
	// DefaultIDQuota applies to organizations seeded without an explicit quota.
	DefaultIDQuota int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:        getEnv("CVE_REGISTRY_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Backend:     getEnv("STORE_BACKEND", BackendMemory),
		SeedFile:    os.Getenv("SEED_FILE"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			AuditTopic: getEnv("AUDIT_TOPIC", "cve.audit"),
		},
	}

	var err error
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	if cfg.Redis.DialTimeout, err = getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.ReadTimeout, err = getDuration("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.WriteTimeout, err = getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}

	cfg.Kafka.Brokers = strs.SplitList(os.Getenv("KAFKA_BROKERS"))
	if cfg.Kafka.RelayInterval, err = getDuration("AUDIT_RELAY_INTERVAL", 2*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.RelayBatch, err = getInt("AUDIT_RELAY_BATCH", 100); err != nil {
		return Server{}, err
	}

	if cfg.Allocator.PoolFloor, err = getInt("CVE_POOL_FLOOR", 100); err != nil {
		return Server{}, err
	}
	if cfg.Allocator.MaxAmount, err = getInt("CVE_MAX_AMOUNT", 10); err != nil {
		return Server{}, err
	}
	if cfg.Allocator.DefaultIDQuota, err = getInt("CVE_DEFAULT_ID_QUOTA", 1000); err != nil {
		return Server{}, err
	}

	return cfg, cfg.Validate()
}

// Validate rejects combinations that cannot start.
func (s Server) Validate() error {
	switch s.Backend {
	case BackendMemory:
	case BackendPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", s.Backend)
	}
	if s.Allocator.PoolFloor < 1 {
		return fmt.Errorf("CVE_POOL_FLOOR must be positive")
	}
	if s.Allocator.MaxAmount < 1 {
		return fmt.Errorf("CVE_MAX_AMOUNT must be positive")
	}
	if s.Kafka.RelayInterval <= 0 {
		return fmt.Errorf("AUDIT_RELAY_INTERVAL must be positive")
	}
	if s.Kafka.RelayBatch < 1 {
		return fmt.Errorf("AUDIT_RELAY_BATCH must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
