package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shopora/storefront/internal/domain/checkout"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL (SHOP_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	JWTSecret   string `usage:"Signing secret for access tokens (SHOP_JWT_SECRET)" flag:"jwt-secret"`

	TokenTTL      time.Duration `default:"168h" usage:"Access token lifetime" flag:"token-ttl"`
	SecureCookies bool          `default:"true" usage:"Mark auth cookies Secure (disable for plain-HTTP development)" flag:"secure-cookies"`

	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CheckoutConfig controls bonus coupon issuance at checkout.
type CheckoutConfig struct {
	BonusThreshold  float64       `default:"200"  usage:"Post-discount total that triggers a bonus coupon" flag:"bonus-threshold"`
	BonusPercentage float64       `default:"10"   usage:"Bonus coupon discount percentage" flag:"bonus-percentage"`
	BonusValidity   time.Duration `default:"720h" usage:"Bonus coupon lifetime" flag:"bonus-validity"`
	BonusUsageLimit int           `default:"1"    usage:"Bonus coupon usage limit" flag:"bonus-usage-limit"`
	BonusCodePrefix string        `default:"GIFT" usage:"Bonus coupon code prefix" flag:"bonus-code-prefix"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and platform-provided fallbacks.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shopora/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("redis URL is required: set SHOP_REDIS_URL or REDIS_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret is required: set SHOP_JWT_SECRET")
	}

	return &cfg, nil
}

// CheckoutConfig converts the loaded values into the checkout service's
// configuration.
func (c *Config) CheckoutConfig() checkout.Config {
	return checkout.Config{
		BonusThreshold:  decimal.NewFromFloat(c.Checkout.BonusThreshold),
		BonusPercentage: decimal.NewFromFloat(c.Checkout.BonusPercentage),
		BonusValidity:   c.Checkout.BonusValidity,
		BonusUsageLimit: c.Checkout.BonusUsageLimit,
		BonusCodePrefix: c.Checkout.BonusCodePrefix,
	}
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) with standard names onto the SHOP_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
