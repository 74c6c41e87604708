// Package config loads process settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const devJWTSecret = "coinquest-dev-secret"

type Config struct {
	DatabaseURL             string        `env:"DATABASE_URL"`
	Port                    string        `env:"PORT,default=8080"`
	JWTSecret               string        `env:"JWT_SECRET"`
	CoinValueTTL            time.Duration `env:"COIN_VALUE_TTL,default=5m"`
	MinWithdrawalCoins      int64         `env:"MIN_WITHDRAWAL_COINS,default=1000"`
	CORSAllowedOrigins      string        `env:"CORS_ALLOWED_ORIGINS,default=*"`
	WithdrawalRatePerMinute int           `env:"WITHDRAWAL_RATE_PER_MINUTE,default=5"`
	ReconcileInterval       time.Duration `env:"RECONCILE_INTERVAL,default=1h"`
	RiverMaxWorkers         int           `env:"RIVER_MAX_WORKERS,default=10"`
}

// Load reads .env if present and decodes the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the current environment without touching .env.
func FromEnv() (*Config, error) {
	var c Config
	if err := envdecode.Decode(&c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	if c.JWTSecret == "" {
		c.JWTSecret = devJWTSecret
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch {
	case c.CoinValueTTL <= 0:
		return errors.New("COIN_VALUE_TTL must be > 0")
	case c.MinWithdrawalCoins <= 0:
		return errors.New("MIN_WITHDRAWAL_COINS must be > 0")
	case c.WithdrawalRatePerMinute <= 0:
		return errors.New("WITHDRAWAL_RATE_PER_MINUTE must be > 0")
	case c.ReconcileInterval <= 0:
		return errors.New("RECONCILE_INTERVAL must be > 0")
	case c.RiverMaxWorkers <= 0:
		return errors.New("RIVER_MAX_WORKERS must be > 0")
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// UsingDevSecret reports whether JWT_SECRET was left unset.
func (c *Config) UsingDevSecret() bool {
	return c.JWTSecret == devJWTSecret
}
