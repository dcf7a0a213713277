package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/telecheck/zonewatch/internal/models"
)

type Config struct {
	Server    ServerConfig
	DB        DatabaseConfig
	Pipelines PipelinesConfig
	Scheduler SchedulerConfig
	Verify    VerifyConfig
	Alerts    AlertsConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Path string
}

type PipelinesConfig struct {
	PrimaryURL    string
	SecondaryURL  string
	Timeout       time.Duration
	Authoritative models.PipelineID
}

type SchedulerConfig struct {
	ValidationInterval    time.Duration
	StalenessInterval     time.Duration
	StalenessThreshold    time.Duration
	ActiveMonitorInterval time.Duration
	InitialValidation     bool
}

type VerifyConfig struct {
	BatchWorkers int
	RateLimitRPS int
}

type AlertsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/zonewatch.db"),
		},
		Pipelines: PipelinesConfig{
			PrimaryURL:    getEnv("PIPELINE_PRIMARY_URL", "http://localhost:9301/declarations"),
			SecondaryURL:  getEnv("PIPELINE_SECONDARY_URL", "http://localhost:9302/declarations"),
			Timeout:       getEnvDuration("PIPELINE_TIMEOUT", 5*time.Minute),
			Authoritative: models.PipelineID(getEnv("AUTHORITATIVE_PIPELINE", string(models.PipelinePrimary))),
		},
		Scheduler: SchedulerConfig{
			ValidationInterval:    getEnvDuration("VALIDATION_INTERVAL", 4*time.Hour),
			StalenessInterval:     getEnvDuration("STALENESS_INTERVAL", 15*time.Minute),
			StalenessThreshold:    getEnvDuration("STALENESS_THRESHOLD", 24*time.Hour),
			ActiveMonitorInterval: getEnvDuration("ACTIVE_MONITOR_INTERVAL", time.Hour),
			InitialValidation:     getEnvBool("INITIAL_VALIDATION", true),
		},
		Verify: VerifyConfig{
			BatchWorkers: getEnvInt("VERIFY_BATCH_WORKERS", 8),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 25),
		},
		Alerts: AlertsConfig{
			KafkaBrokers: splitList(getEnv("ALERT_KAFKA_BROKERS", "")),
			KafkaTopic:   getEnv("ALERT_KAFKA_TOPIC", "zonewatch-critical-alerts"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Pipelines.Authoritative {
	case models.PipelinePrimary, models.PipelineSecondary:
	default:
		return fmt.Errorf("invalid authoritative pipeline: %s", c.Pipelines.Authoritative)
	}

	if c.Pipelines.Timeout < time.Second {
		return fmt.Errorf("pipeline timeout must be at least 1 second")
	}
	if c.Scheduler.ValidationInterval < time.Minute {
		return fmt.Errorf("validation interval must be at least 1 minute")
	}
	if c.Scheduler.StalenessInterval < time.Minute {
		return fmt.Errorf("staleness interval must be at least 1 minute")
	}
	if c.Scheduler.StalenessThreshold <= c.Scheduler.StalenessInterval {
		return fmt.Errorf("staleness threshold must exceed the check interval")
	}
	if c.Verify.BatchWorkers < 1 {
		return fmt.Errorf("verify batch workers must be at least 1")
	}

	return nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
