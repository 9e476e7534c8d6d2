package main

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local"`
	Port string `env:"PORT" envDefault:"8975"`

	DSN string `env:"DATABASE_DSN" envDefault:"file:accounts.db?cache=shared&mode=rwc"`

	FrontendURL      string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	AdminEmail       string `env:"ADMIN_EMAIL"`
	RecoveryCooldown string `env:"RECOVERY_COOLDOWN" envDefault:"60m"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	ResendFrom   string `env:"RESEND_FROM" envDefault:"accounts@localhost"`

	StorageDir string `env:"STORAGE_DIR" envDefault:"./data/uploads"`
	StorageURL string `env:"STORAGE_URL" envDefault:"http://localhost:8975/uploads"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "local" || c.Env == "development"
}

func (c *Config) GetRecoveryCooldown() string {
	return c.RecoveryCooldown
}

func (c *Config) GetFrontendURL() string {
	return c.FrontendURL
}

func (c *Config) GetAdminEmail() string {
	return c.AdminEmail
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
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
