package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Analysis  AnalysisConfig  `json:"analysis"`
	Estimator EstimatorConfig `json:"estimator"`
	Cache     CacheConfig     `json:"cache"`
	Redis     RedisConfig     `json:"redis"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

type AnalysisConfig struct {
	Workers           int           `json:"workers"`
	QueueSize         int           `json:"queue_size"`
	ProcessingTimeout time.Duration `json:"processing_timeout"`
	ResultCacheTTL    time.Duration `json:"result_cache_ttl"`
	SessionHistory    int           `json:"session_history"`
}

type EstimatorConfig struct {
	BaseURL             string        `json:"base_url"`
	Timeout             time.Duration `json:"timeout"`
	MaxRetries          int           `json:"max_retries"`
	RetryDelay          time.Duration `json:"retry_delay"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	MinConfidence       float64       `json:"min_confidence"`
}

type CacheConfig struct {
	Backend         string        `json:"backend"` // memory, redis
	MaxEntries      int           `json:"max_entries"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type SecurityConfig struct {
	JWTSecretKey   string        `json:"jwt_secret_key"`
	AuthRequired   bool          `json:"auth_required"`
	AllowedOrigins []string      `json:"allowed_origins"`
	RateLimitRPS   int           `json:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst"`
	MaxRequestSize int64         `json:"max_request_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func LoadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Analysis: AnalysisConfig{
			Workers:           getEnvAsInt("ANALYSIS_WORKERS", 4),
			QueueSize:         getEnvAsInt("ANALYSIS_QUEUE_SIZE", 100),
			ProcessingTimeout: getEnvAsDuration("ANALYSIS_TIMEOUT", 30*time.Second),
			ResultCacheTTL:    getEnvAsDuration("RESULT_CACHE_TTL", 1*time.Hour),
			SessionHistory:    getEnvAsInt("SESSION_HISTORY_LIMIT", 200),
		},
		Estimator: EstimatorConfig{
			BaseURL:             getEnv("ESTIMATOR_BASE_URL", "http://localhost:5000"),
			Timeout:             getEnvAsDuration("ESTIMATOR_TIMEOUT", 60*time.Second),
			MaxRetries:          getEnvAsInt("ESTIMATOR_MAX_RETRIES", 3),
			RetryDelay:          getEnvAsDuration("ESTIMATOR_RETRY_DELAY", 1*time.Second),
			HealthCheckInterval: getEnvAsDuration("ESTIMATOR_HEALTH_CHECK_INTERVAL", 30*time.Second),
			MinConfidence:       getEnvAsFloat("ESTIMATOR_MIN_CONFIDENCE", 0.5),
		},
		Cache: CacheConfig{
			Backend:         getEnv("CACHE_BACKEND", "memory"),
			MaxEntries:      getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		Security: SecurityConfig{
			JWTSecretKey:   getEnv("JWT_SECRET_KEY", ""),
			AuthRequired:   getEnvAsBool("AUTH_REQUIRED", false),
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 50),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 100),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 25*1024*1024), // video uploads
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config
}

func (c *Config) ValidateConfig(logger *zap.Logger) error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}

	if c.Analysis.Workers < 1 {
		errors = append(errors, "analysis workers must be positive")
	}

	if c.Analysis.QueueSize < 1 {
		errors = append(errors, "analysis queue size must be positive")
	}

	if c.Estimator.BaseURL == "" {
		errors = append(errors, "estimator base URL is required")
	}

	if c.Estimator.MinConfidence < 0 || c.Estimator.MinConfidence > 1 {
		errors = append(errors, "estimator min confidence must be within [0,1]")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			errors = append(errors, "Redis host is required for the redis cache backend")
		}
		if c.Redis.Port < 1 || c.Redis.Port > 65535 {
			errors = append(errors, "Redis port must be between 1 and 65535")
		}
	default:
		errors = append(errors, fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}

	if c.Security.AuthRequired && c.Security.JWTSecretKey == "" {
		errors = append(errors, "JWT secret key is required when auth is enabled")
	}

	if !c.Security.AuthRequired {
		logger.Warn("API authentication is disabled")
	}

	if c.Security.MaxRequestSize <= 0 {
		errors = append(errors, "max request size must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, ", "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
