package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runner configuration, loaded once at startup.
type Config struct {
	Service   ServiceConfig
	Scheduler SchedulerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds process-wide settings.
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// SchedulerConfig holds C5/C6 dispatch defaults, overridable per
// submission by the CLI's -j/-t flags.
type SchedulerConfig struct {
	MaxParallelJobs int
	JobTimeout      time.Duration
	Debug           bool
}

// DatabaseConfig holds the optional Postgres sink for cas.PostgresStore.
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds the primary cas.RedisStore connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelemetryConfig holds observability endpoints.
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Scheduler: SchedulerConfig{
			MaxParallelJobs: getEnvInt("MAX_PARALLEL_JOBS", 4),
			JobTimeout:      getEnvDuration("JOB_TIMEOUT", 0),
			Debug:           getEnvBool("DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "flowr"),
			User:        getEnv("POSTGRES_USER", "flowr"),
			Password:    getEnv("POSTGRES_PASSWORD", "flowr"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 10),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", false),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}
	if c.Scheduler.MaxParallelJobs < 1 {
		return fmt.Errorf("max_parallel_jobs must be >= 1")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
