package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Env != EnvDevelopment {
		t.Errorf("Env = %v, want development", cfg.Env)
	}
	if cfg.Crawl.MaxPages != 8 {
		t.Errorf("Crawl.MaxPages = %d, want 8", cfg.Crawl.MaxPages)
	}
	if cfg.Crawl.ScrollCount != 4 {
		t.Errorf("Crawl.ScrollCount = %d, want 4", cfg.Crawl.ScrollCount)
	}
	if cfg.Verify.ScrollSteps != 7 {
		t.Errorf("Verify.ScrollSteps = %d, want 7", cfg.Verify.ScrollSteps)
	}
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless should default to true")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Setenv("CRAWL_MAX_PAGES", "3")
	os.Setenv("BROWSER_NAV_TIMEOUT", "45s")
	defer os.Unsetenv("CRAWL_MAX_PAGES")
	defer os.Unsetenv("BROWSER_NAV_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawl.MaxPages != 3 {
		t.Errorf("Crawl.MaxPages = %d, want 3", cfg.Crawl.MaxPages)
	}
	if cfg.Browser.NavTimeout != 45*time.Second {
		t.Errorf("Browser.NavTimeout = %v, want 45s", cfg.Browser.NavTimeout)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg.Crawl.MaxPages = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject MaxPages = 0")
	}

	cfg.Crawl.MaxPages = 5
	cfg.Registry.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject empty registry base URL")
	}
}

func TestGetLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "info", Debug: true}
	if got := cfg.GetLogLevel(); got != "debug" {
		t.Errorf("GetLogLevel() = %v, want debug when Debug is set", got)
	}

	cfg.Debug = false
	if got := cfg.GetLogLevel(); got != "info" {
		t.Errorf("GetLogLevel() = %v, want info", got)
	}
}
