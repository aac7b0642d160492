package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestApplyPlatformDefaults(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		vars  map[string]string
		check func(t *testing.T, c Config)
	}{
		{
			name: "platform vars fill blanks",
			cfg:  Config{Addr: defaultAddr, Database: DatabaseConfig{Driver: "postgres"}},
			vars: map[string]string{"DATABASE_URL": "postgres://db", "REDIS_URL": "redis://cache:6379", "PORT": "9000"},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "postgres://db", c.Database.URL)
				assert.Equal(t, "redis://cache:6379", c.Redis.Addr)
				assert.Equal(t, "0.0.0.0:9000", c.Addr)
			},
		},
		{
			name: "explicit values win",
			cfg:  Config{Addr: "127.0.0.1:7000", Database: DatabaseConfig{Driver: "postgres", URL: "postgres://mine"}, Redis: RedisConfig{Addr: "localhost:6379"}},
			vars: map[string]string{"DATABASE_URL": "postgres://db", "REDIS_URL": "redis://cache:6379", "PORT": "9000"},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "postgres://mine", c.Database.URL)
				assert.Equal(t, "localhost:6379", c.Redis.Addr)
				assert.Equal(t, "127.0.0.1:7000", c.Addr)
			},
		},
		{
			name: "sqlite file default",
			cfg:  Config{Addr: defaultAddr, Database: DatabaseConfig{Driver: "sqlite"}},
			check: func(t *testing.T, c Config) {
				assert.Contains(t, c.Database.URL, "storefront.db")
				assert.Empty(t, c.Redis.Addr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.cfg
			c.applyPlatformDefaults(env(tt.vars))
			tt.check(t, c)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			TokenPepper: "pepper",
			Database:    DatabaseConfig{Driver: "postgres", URL: "postgres://db"},
			Pricing:     PricingConfig{Strategy: "precedence"},
			RateLimit:   RateLimitConfig{Max: 10, Window: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "sqlite needs no url", mutate: func(c *Config) { c.Database = DatabaseConfig{Driver: "sqlite"} }},
		{name: "lowest contract", mutate: func(c *Config) { c.Pricing.Strategy = "lowest_contract" }},
		{name: "rate limit disabled", mutate: func(c *Config) { c.RateLimit = RateLimitConfig{} }},
		{name: "missing url", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "database URL is required"},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: `unknown database driver "mysql"`},
		{name: "unknown strategy", mutate: func(c *Config) { c.Pricing.Strategy = "cheapest" }, wantErr: "unknown pricing strategy"},
		{name: "missing pepper", mutate: func(c *Config) { c.TokenPepper = "" }, wantErr: "token pepper is required"},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: "window must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
