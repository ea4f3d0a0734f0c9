package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres" validate:"oneof=postgres sqlite"`
	DatabaseURL string `env:"DATABASE_URL"                        validate:"required_if=StoreDriver postgres"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"notes.db"  validate:"required_if=StoreDriver sqlite"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET,required"  validate:"required,min=32"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET,required" validate:"required,min=32,nefield=AccessTokenSecret"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"  validate:"gt=0"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h" validate:"gtfield=AccessTokenTTL"`

	OTPTTL         time.Duration `env:"OTP_TTL"          envDefault:"5m" validate:"gt=0"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"5"  validate:"min=1,max=20"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:5173" validate:"required,url"`
	CookieSecure  bool   `env:"COOKIE_SECURE"  envDefault:"true"`

	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"@every 10m" validate:"required"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		return nil, fmt.Errorf("invalid config: SWEEP_SCHEDULE: %w", err)
	}

	return cfg, nil
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
