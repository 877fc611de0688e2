package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dynamic-qr-platform/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public origin the slugs are served from
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConns       int    `yaml:"max_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // redirect target cache
}

type AuthConfig struct {
	HMACSecret string `yaml:"hmac_secret"`
}

type PaymentConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	WebhookSecret string `yaml:"webhook_secret"`
	SuccessURL    string `yaml:"success_url"`
	CancelURL     string `yaml:"cancel_url"`
	Prices        struct {
		Lite string `yaml:"lite"`
		Pro  string `yaml:"pro"`
	} `yaml:"prices"`
	Sandbox bool `yaml:"sandbox"`
}

type SubscriptionConfig struct {
	GracePastDue bool           `yaml:"grace_past_due"` // validate() passes for past_due
	UsageLimits  map[string]int `yaml:"usage_limits"`   // tier -> limit overrides
}

type ReaperConfig struct {
	Cron       string        `yaml:"cron"`        // session reaper schedule
	SessionTTL time.Duration `yaml:"session_ttl"` // unconsumed session lifetime
}

type RateLimitConfig struct {
	RedirectPerMinute int `yaml:"redirect_per_minute"`
}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	Payment      PaymentConfig      `yaml:"payment"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Reaper       ReaperConfig       `yaml:"reaper"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// env wins for secrets so they stay out of the yaml file
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PAYMENT_API_KEY"); v != "" {
		cfg.Payment.APIKey = v
	}
	if v := os.Getenv("PAYMENT_WEBHOOK_SECRET"); v != "" {
		cfg.Payment.WebhookSecret = v
	}
	if v := os.Getenv("AUTH_HMAC_SECRET"); v != "" {
		cfg.Auth.HMACSecret = v
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
	}
	if cfg.Redis.CacheTTL <= 0 {
		cfg.Redis.CacheTTL = time.Hour
	}
	if cfg.Reaper.Cron == "" {
		cfg.Reaper.Cron = "@every 15m"
	}
	if cfg.Reaper.SessionTTL <= 0 {
		cfg.Reaper.SessionTTL = 24 * time.Hour
	}
	if cfg.RateLimit.RedirectPerMinute <= 0 {
		cfg.RateLimit.RedirectPerMinute = 120
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// UsageLimits merges config overrides over the compiled-in tier limits.
func (c *Config) UsageLimits() map[model.Tier]int {
	limits := make(map[model.Tier]int, len(model.DefaultUsageLimits))
	for tier, n := range model.DefaultUsageLimits {
		limits[tier] = n
	}
	for raw, n := range c.Subscription.UsageLimits {
		tier, err := model.ParseTier(raw)
		if err != nil || n < 0 {
			continue
		}
		limits[tier] = n
	}
	return limits
}
