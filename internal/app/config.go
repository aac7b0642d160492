package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	TokenPepper string `usage:"HMAC pepper for API token hashing (STOREFRONT_TOKEN_PEPPER)" flag:"token-pepper"`
	Dev         bool   `default:"false" usage:"Relax security headers for local plain-HTTP runs"`
	HSTS        bool   `default:"false" usage:"Send Strict-Transport-Security"`
	Database    DatabaseConfig
	Redis       RedisConfig
	Pricing     PricingConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver string `default:"postgres" usage:"Storage driver: postgres or sqlite"`
	URL    string `usage:"PostgreSQL URL or SQLite DSN (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// RedisConfig controls the modifier rule cache. An empty Addr disables it.
type RedisConfig struct {
	Addr string        `default:"" usage:"Redis address or redis:// URL (STOREFRONT_REDIS_ADDR or REDIS_URL)"`
	TTL  time.Duration `default:"30s" usage:"How long cached tax and discount rules stay valid"`
}

// PricingConfig selects the price resolution strategy.
type PricingConfig struct {
	Strategy string `default:"precedence" usage:"precedence or lowest_contract"`
}

// RateLimitConfig bounds how many orders one user may place per window.
type RateLimitConfig struct {
	Max    int           `default:"30" usage:"Max orders per user per window, 0 disables"`
	Window time.Duration `default:"1m" usage:"Checkout rate limit window"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables that hosting platforms
// inject (DATABASE_URL, REDIS_URL, PORT) onto the configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.Database.URL == "" {
		c.Database.URL = getenv("DATABASE_URL")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Database.Driver == "sqlite" && c.Database.URL == "" {
		c.Database.URL = "file:storefront.db?_pragma=busy_timeout(5000)"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
		}
	case "sqlite":
	default:
		return errors.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if _, err := pricing.ParseStrategy(c.Pricing.Strategy); err != nil {
		return errors.Wrap(err, "pricing")
	}
	if c.TokenPepper == "" {
		return errors.New("token pepper is required: set STOREFRONT_TOKEN_PEPPER")
	}
	if c.RateLimit.Max > 0 && c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	return nil
}
