package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Worker    WorkerConfig
	Faults    FaultConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	AWS       AWSConfig
	Seed      SeedConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	MaxBodyBytes       int64
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/integrations?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT validation settings. Tokens are issued elsewhere.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// WorkerConfig holds task queue worker settings.
type WorkerConfig struct {
	MaxRetries      int
	BackoffBase     int
	Concurrency     int
	PollTimeout     time.Duration
	PromoteInterval time.Duration
	InProcess       bool // run the worker pool inside cmd/server
}

// FaultConfig drives the simulated upstream adapters.
type FaultConfig struct {
	ForceServiceFailures int
	EnableRandomFailures bool
}

// RateLimitConfig is the per-endpoint sliding window for webhook ingestion.
type RateLimitConfig struct {
	Count  int
	Period time.Duration
}

// LogConfig holds logger settings. File is optional; stdout is always written.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// MetricsConfig holds the standalone metrics listener used by cmd/worker.
type MetricsConfig struct {
	Addr string
}

// AWSConfig holds AWS credentials and the dead-letter archive bucket.
type AWSConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	DeadLetterBucket string
}

// SeedConfig lists organizations ensured at startup, as slug:Name pairs.
type SeedConfig struct {
	Organizations []string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	period, err := ParsePeriod(getEnv("WEBHOOK_RATE_LIMIT_PERIOD", "minute"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			MaxBodyBytes:       int64(getEnvInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "integrations"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Worker: WorkerConfig{
			MaxRetries:      getEnvInt("WORKER_MAX_RETRIES", 3),
			BackoffBase:     getEnvInt("WORKER_RETRY_BACKOFF_BASE", 2),
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
			PollTimeout:     getEnvDuration("WORKER_POLL_TIMEOUT", 5*time.Second),
			PromoteInterval: getEnvDuration("WORKER_PROMOTE_INTERVAL", 500*time.Millisecond),
			InProcess:       getEnvBool("WORKER_IN_PROCESS", false),
		},
		Faults: FaultConfig{
			ForceServiceFailures: getEnvInt("FORCE_SERVICE_FAILURES", 0),
			EnableRandomFailures: getEnvBool("ENABLE_RANDOM_FAILURES", false),
		},
		RateLimit: RateLimitConfig{
			Count:  getEnvInt("WEBHOOK_RATE_LIMIT_COUNT", 10),
			Period: period,
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		AWS: AWSConfig{
			Region:           getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
			DeadLetterBucket: getEnv("AWS_S3_DEAD_LETTER_BUCKET", ""),
		},
		Seed: SeedConfig{
			Organizations: splitTrim(getEnv("SEED_ORGANIZATIONS", ""), ","),
		},
	}
	if cfg.Worker.BackoffBase < 1 {
		return nil, fmt.Errorf("WORKER_RETRY_BACKOFF_BASE must be >= 1, got %d", cfg.Worker.BackoffBase)
	}
	if cfg.Worker.MaxRetries < 0 {
		return nil, fmt.Errorf("WORKER_MAX_RETRIES must be >= 0, got %d", cfg.Worker.MaxRetries)
	}
	if cfg.Worker.Concurrency < 1 {
		cfg.Worker.Concurrency = 1
	}
	if cfg.RateLimit.Count < 1 {
		return nil, fmt.Errorf("WEBHOOK_RATE_LIMIT_COUNT must be >= 1, got %d", cfg.RateLimit.Count)
	}
	return cfg, nil
}

// ParsePeriod accepts second, minute, hour, day or any time.ParseDuration string.
func ParsePeriod(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "second":
		return time.Second, nil
	case "minute":
		return time.Minute, nil
	case "hour":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate limit period %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid rate limit period %q", s)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
