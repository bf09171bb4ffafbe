package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/intake-service/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Oracle   OracleConfig
	Intake   IntakeConfig
	SLA      SLAConfig
	Workers  WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
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

// OracleConfig points at the external classification service.
type OracleConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// IntakeConfig holds matching thresholds and the webhook shared secret.
type IntakeConfig struct {
	AutoMatchThreshold    float64
	SuggestMatchThreshold float64
	WebhookSecret         string
}

// SLAConfig maps thread priority to hours-without-response before breach.
type SLAConfig struct {
	Hours map[domain.ThreadPriority]int
}

// WorkerConfig bounds per-queue worker pool concurrency.
type WorkerConfig struct {
	Pipeline     int
	Health       int
	Escalation   int
	Notification int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	autoMatch, err := getEnvAsFloat("AUTO_MATCH_THRESHOLD", 0.85)
	if err != nil {
		return nil, err
	}
	suggestMatch, err := getEnvAsFloat("SUGGEST_MATCH_THRESHOLD", 0.5)
	if err != nil {
		return nil, err
	}
	if suggestMatch > autoMatch {
		return nil, fmt.Errorf("SUGGEST_MATCH_THRESHOLD %.2f exceeds AUTO_MATCH_THRESHOLD %.2f", suggestMatch, autoMatch)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "intake-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Oracle: OracleConfig{
			APIKey:         os.Getenv("ORACLE_API_KEY"),
			BaseURL:        os.Getenv("ORACLE_BASE_URL"),
			Model:          getEnv("ORACLE_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("ORACLE_TIMEOUT_SECONDS", 45),
		},
		Intake: IntakeConfig{
			AutoMatchThreshold:    autoMatch,
			SuggestMatchThreshold: suggestMatch,
			WebhookSecret:         os.Getenv("WEBHOOK_SECRET"),
		},
		SLA: SLAConfig{
			Hours: map[domain.ThreadPriority]int{
				domain.ThreadPriorityCritical: getEnvAsInt("SLA_HOURS_CRITICAL", 2),
				domain.ThreadPriorityHigh:     getEnvAsInt("SLA_HOURS_HIGH", 4),
				domain.ThreadPriorityNormal:   getEnvAsInt("SLA_HOURS_NORMAL", 24),
				domain.ThreadPriorityLow:      getEnvAsInt("SLA_HOURS_LOW", 72),
			},
		},
		Workers: WorkerConfig{
			Pipeline:     getEnvAsInt("PIPELINE_WORKERS", 5),
			Health:       getEnvAsInt("HEALTH_WORKERS", 2),
			Escalation:   getEnvAsInt("ESCALATION_WORKERS", 2),
			Notification: getEnvAsInt("NOTIFY_WORKERS", 10),
		},
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

// HoursFor returns the SLA window for the given priority, defaulting to the
// NORMAL window for unknown values.
func (s SLAConfig) HoursFor(priority domain.ThreadPriority) int {
	if h, ok := s.Hours[priority]; ok {
		return h
	}
	return s.Hours[domain.ThreadPriorityNormal]
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
