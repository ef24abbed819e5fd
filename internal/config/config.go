package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// BackendModeQueue and BackendModeWorkflow select the durable backend
// implementation.
const (
	BackendModeQueue    = "queue"
	BackendModeWorkflow = "workflow"
)

// Config aggregates runtime configuration for the engine.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Backend      BackendConfig
	Sla          SlaConfig
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

// AuthConfig defines service token parameters for the status API.
type AuthConfig struct {
	JWTSecret string
}

// BackendConfig selects and configures the durable backend.
type BackendConfig struct {
	Mode                   string
	WorkflowURL            string
	WorkflowTimeoutSeconds int
}

// SlaConfig tunes engine behavior.
type SlaConfig struct {
	AtRiskThresholdPercent int
	PollIntervalSeconds    int
	WakeupBatchSize        int
}

// NotificationConfig holds notification endpoints for email delivery.
type NotificationConfig struct {
	EmailFrom string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-engine"),
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
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Backend: BackendConfig{
			Mode:                   getEnv("SLA_BACKEND_MODE", BackendModeQueue),
			WorkflowURL:            getEnv("SLA_WORKFLOW_URL", ""),
			WorkflowTimeoutSeconds: getEnvAsInt("SLA_WORKFLOW_TIMEOUT_SECONDS", 10),
		},
		Sla: SlaConfig{
			AtRiskThresholdPercent: getEnvAsInt("SLA_AT_RISK_THRESHOLD_PERCENT", 25),
			PollIntervalSeconds:    getEnvAsInt("SLA_POLL_INTERVAL_SECONDS", 30),
			WakeupBatchSize:        getEnvAsInt("SLA_WAKEUP_BATCH_SIZE", 100),
		},
		Notification: NotificationConfig{
			EmailFrom: getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
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

// WorkflowTimeout returns the orchestrator request timeout.
func (b BackendConfig) WorkflowTimeout() time.Duration {
	if b.WorkflowTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.WorkflowTimeoutSeconds) * time.Second
}

// PollInterval returns the poller tick interval.
func (s SlaConfig) PollInterval() time.Duration {
	if s.PollIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
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
