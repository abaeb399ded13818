package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port         string
	StoreBackend string // "memory" or "postgres"
	DBConn       string
	KafkaBrokers []string
	JWTSecret    string
	LogLevel     string
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		DBConn:       getEnv("DB_CONN", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.StoreBackend != "memory" && cfg.StoreBackend != "postgres" {
		return nil, fmt.Errorf("STORE_BACKEND must be memory or postgres, got %q", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "postgres" && cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required when STORE_BACKEND is postgres")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
