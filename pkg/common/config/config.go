package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	LabReportTopic     string
	DashboardTopic     string
	CriticalAlertTopic string

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	// Dataset
	DatasetPath     string
	DatasetURL      string
	DatasetCacheTTL time.Duration
	CatalogPath     string

	// Preferences
	PreferencesBackend string
	PreferencesPrefix  string

	// Pipeline
	TrendAlerts        bool
	TrendThreshold     float64
	SnapshotCacheTTL   time.Duration
	HTTPRequestTimeout time.Duration
	HTTPRetryAttempts  int

	// Gateway specific
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "biomarkers"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "biomarkers"),
		PostgresDB:       getEnv("POSTGRES_DB", "biomarkers"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "biomarker-dashboard"),
		LabReportTopic:     getEnv("LAB_REPORT_TOPIC", "lab-report-events"),
		DashboardTopic:     getEnv("DASHBOARD_TOPIC", "dashboard-events"),
		CriticalAlertTopic: getEnv("CRITICAL_ALERT_TOPIC", "critical-alerts"),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),

		DatasetPath:     getEnv("DATASET_PATH", "public/dashboard_data.json"),
		DatasetURL:      getEnv("DATASET_URL", ""),
		DatasetCacheTTL: getDuration("DATASET_CACHE_TTL", time.Minute),
		CatalogPath:     getEnv("CATALOG_PATH", ""),

		PreferencesBackend: getEnv("PREFERENCES_BACKEND", "memory"),
		PreferencesPrefix:  getEnv("PREFERENCES_PREFIX", "prefs:"),

		TrendAlerts:        getBoolEnv("PIPELINE_TREND_ALERTS", false),
		TrendThreshold:     getFloatEnv("PIPELINE_TREND_THRESHOLD", 20),
		SnapshotCacheTTL:   getDuration("SNAPSHOT_CACHE_TTL", 5*time.Minute),
		HTTPRequestTimeout: getDuration("HTTP_REQUEST_TIMEOUT", 10*time.Second),
		HTTPRetryAttempts:  getIntEnv("HTTP_RETRY_ATTEMPTS", 3),

		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
	}
}

// LoadDotEnv populates the environment from .env files when present.
func LoadDotEnv(paths ...string) {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			existing = append(existing, ".env")
		}
	}
	if len(existing) == 0 {
		return
	}
	_ = godotenv.Load(existing...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
