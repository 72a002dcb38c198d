package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// RunTimeout bounds one full lookup run end to end.
	RunTimeout time.Duration `envconfig:"RUN_TIMEOUT" default:"5m"`

	App     AppConfig
	Server  ServerConfig
	Browser BrowserConfig
	Crawl   CrawlConfig
	Verify  VerifyConfig

	// REST collaborators
	Registry RegistryConfig
	Places   PlacesConfig
	WebDir   WebDirConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"providerlens"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"APP_LOG_LEVEL" default:"info"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"360s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       int           `envconfig:"SERVER_RATE_LIMIT" default:"60"`
}

// BrowserConfig holds browser automation settings
type BrowserConfig struct {
	Headless   bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	NavTimeout time.Duration `envconfig:"BROWSER_NAV_TIMEOUT" default:"90s"`
	UserAgent  string        `envconfig:"BROWSER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"`
	Locale     string        `envconfig:"BROWSER_LOCALE" default:"en-US"`
}

// CrawlConfig holds directory crawl settings
type CrawlConfig struct {
	BaseURL     string        `envconfig:"CRAWL_BASE_URL" default:"https://doctor.webmd.com/providers/specialty"`
	MaxPages    int           `envconfig:"CRAWL_MAX_PAGES" default:"8"`
	SettleWait  time.Duration `envconfig:"CRAWL_SETTLE_WAIT" default:"3s"`
	ScrollCount int           `envconfig:"CRAWL_SCROLL_COUNT" default:"4"`
	ScrollWait  time.Duration `envconfig:"CRAWL_SCROLL_WAIT" default:"700ms"`
}

// VerifyConfig holds insurance verification settings
type VerifyConfig struct {
	QuiesceTimeout time.Duration `envconfig:"VERIFY_QUIESCE_TIMEOUT" default:"5s"`
	FallbackWait   time.Duration `envconfig:"VERIFY_FALLBACK_WAIT" default:"3s"`
	SettleWait     time.Duration `envconfig:"VERIFY_SETTLE_WAIT" default:"2s"`
	LocatorTimeout time.Duration `envconfig:"VERIFY_LOCATOR_TIMEOUT" default:"5s"`
	ScrollSteps    int           `envconfig:"VERIFY_SCROLL_STEPS" default:"7"`
	TypeDelay      time.Duration `envconfig:"VERIFY_TYPE_DELAY" default:"50ms"`
}

// RegistryConfig holds NPI registry client settings
type RegistryConfig struct {
	BaseURL      string        `envconfig:"NPI_BASE_URL" default:"https://npiregistry.cms.hhs.gov/api/"`
	Timeout      time.Duration `envconfig:"NPI_TIMEOUT" default:"10s"`
	ResultLimit  int           `envconfig:"NPI_RESULT_LIMIT" default:"10"`
	RateLimitRPM int           `envconfig:"NPI_RATE_LIMIT_RPM" default:"60"`
}

// PlacesConfig holds places lookup settings
type PlacesConfig struct {
	APIKey       string        `envconfig:"GOOGLE_PLACES_API_KEY" default:""`
	BaseURL      string        `envconfig:"PLACES_BASE_URL" default:"https://maps.googleapis.com/maps/api/place"`
	Timeout      time.Duration `envconfig:"PLACES_TIMEOUT" default:"10s"`
	RateLimitRPM int           `envconfig:"PLACES_RATE_LIMIT_RPM" default:"60"`
}

// WebDirConfig holds the secondary HTML directory search settings
type WebDirConfig struct {
	BaseURL      string        `envconfig:"WEBDIR_BASE_URL" default:"https://www.healthgrades.com/usearch"`
	Timeout      time.Duration `envconfig:"WEBDIR_TIMEOUT" default:"10s"`
	RateLimitRPM int           `envconfig:"WEBDIR_RATE_LIMIT_RPM" default:"30"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	if c.Crawl.MaxPages < 1 {
		errs = append(errs, "CRAWL_MAX_PAGES must be at least 1")
	}
	if c.Crawl.BaseURL == "" {
		errs = append(errs, "CRAWL_BASE_URL is required")
	}
	if c.Registry.BaseURL == "" {
		errs = append(errs, "NPI_BASE_URL is required")
	}
	if c.Verify.ScrollSteps < 1 {
		errs = append(errs, "VERIFY_SCROLL_STEPS must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
