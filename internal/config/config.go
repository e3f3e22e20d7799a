package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port                 string
	DBDriver             string
	DBConn               string
	LogLevel             string
	SecretsPath          string
	TokenCleanupSchedule string

	// SMTP settings for overdraft alerts. An empty host disables the notifier.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	AlertEmail   string

	Secrets Secrets
}

// Secrets is the signing and credential material loaded once at startup
// from the file at SECRETS_PATH.
type Secrets struct {
	Users           map[string]string `json:"users"`
	AccessTokenKey  string            `json:"access_token_key"`
	RefreshTokenKey string            `json:"refresh_token_key"`
	Algorithm       string            `json:"algorithm"`
	AccessTokenTTL  int64             `json:"access_token_ttl"`
	RefreshTokenTTL int64             `json:"refresh_token_ttl"`
}

// NewConfig loads configuration from the environment and the secrets file.
func NewConfig() (*Config, error) {
	// Best effort; the environment wins over the .env file.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DBDriver:             getEnv("DB_DRIVER", "postgres"),
		DBConn:               getEnv("DB_CONN", "host=localhost port=5432 user=budget password=budget dbname=budget sslmode=disable"),
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		SecretsPath:          getEnv("SECRETS_PATH", "secrets.json"),
		TokenCleanupSchedule: getEnv("TOKEN_CLEANUP_SCHEDULE", "@daily"),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnv("SMTP_PORT", "587"),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SenderEmail:          getEnv("SENDER_EMAIL", ""),
		AlertEmail:           getEnv("ALERT_EMAIL", ""),
	}

	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}

	secrets, err := loadSecrets(cfg.SecretsPath)
	if err != nil {
		return nil, err
	}
	cfg.Secrets = *secrets

	return cfg, nil
}

func loadSecrets(path string) (*Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var s Secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}

	if s.AccessTokenKey == "" {
		return nil, fmt.Errorf("access_token_key is required")
	}
	if s.RefreshTokenKey == "" {
		return nil, fmt.Errorf("refresh_token_key is required")
	}
	if s.Algorithm == "" {
		return nil, fmt.Errorf("algorithm is required")
	}
	if s.AccessTokenTTL <= 0 || s.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive")
	}
	if s.Users == nil {
		s.Users = map[string]string{}
	}

	return &s, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
