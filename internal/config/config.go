package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CasdoorConfig holds the connection settings for the identity provider.
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// LLMConfig holds the explanation provider settings.
type LLMConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string

	// RedisURL is optional; an empty value disables the read-through
	// cache.
	RedisURL string

	// KafkaBrokers is optional; empty means events stay in process.
	KafkaBrokers []string

	Casdoor CasdoorConfig
	LLM     LLMConfig
}

// Load reads configuration from the environment, with .env as a
// development convenience.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Casdoor: CasdoorConfig{
			Endpoint:         os.Getenv("CASDOOR_ENDPOINT"),
			ClientID:         os.Getenv("CASDOOR_CLIENT_ID"),
			ClientSecret:     os.Getenv("CASDOOR_CLIENT_SECRET"),
			Certificate:      os.Getenv("CASDOOR_CERTIFICATE"),
			OrganizationName: os.Getenv("CASDOOR_ORGANIZATION"),
			ApplicationName:  os.Getenv("CASDOOR_APPLICATION"),
		},
		LLM: LLMConfig{
			Endpoint: os.Getenv("LLM_ENDPOINT"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout:  time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 30)) * time.Second,
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
