// Package config содержит логику чтения конфигурации сервиса совместных покупок.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/groupbuy/internal/service"
)

const defaultRunAddress = "localhost:8080"

// Config содержит параметры конфигурации сервиса совместных покупок.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	RedisURL        string `env:"REDIS_URL"`
	AuthSecret      string `env:"AUTH_SECRET"`
	AuthProviderURL string `env:"AUTH_PROVIDER_URL"`

	TokenTTL              time.Duration         `env:"TOKEN_TTL" envDefault:"24h"`
	AdminEmails           []string              `env:"ADMIN_EMAILS" envSeparator:","`
	MaxJoinQuantity       int                   `env:"MAX_JOIN_QUANTITY" envDefault:"1000"`
	MaxTierPolicy         service.MaxTierPolicy `env:"MAX_TIER_POLICY" envDefault:"open"`
	NotificationRetention time.Duration         `env:"NOTIFICATION_RETENTION" envDefault:"0s"`
	SweepInterval         time.Duration         `env:"SWEEP_INTERVAL" envDefault:"1h"`
	PoolLockTTL           time.Duration         `env:"POOL_LOCK_TTL" envDefault:"5s"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisURL := cfg.RedisURL
	envAuthSecret := cfg.AuthSecret
	envAuthProviderURL := cfg.AuthProviderURL

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty keeps records in memory")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for per-product pool locks")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing access tokens")
	flag.StringVar(&cfg.AuthProviderURL, "p", "", "external identity provider base URL")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisURL != "" {
		cfg.RedisURL = envRedisURL
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envAuthProviderURL != "" {
		cfg.AuthProviderURL = envAuthProviderURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.MaxTierPolicy {
	case service.MaxTierOpen, service.MaxTierFreeze:
	default:
		return fmt.Errorf("MAX_TIER_POLICY must be %q or %q, got %q", service.MaxTierOpen, service.MaxTierFreeze, c.MaxTierPolicy)
	}
	if c.MaxJoinQuantity < 1 {
		return fmt.Errorf("MAX_JOIN_QUANTITY must be positive, got %d", c.MaxJoinQuantity)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.NotificationRetention < 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must not be negative, got %s", c.NotificationRetention)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.PoolLockTTL <= 0 {
		return fmt.Errorf("POOL_LOCK_TTL must be positive, got %s", c.PoolLockTTL)
	}
	return nil
}
