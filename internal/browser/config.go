package browser

import (
	"fmt"
	"strings"
	"time"
)

// Config is the browser section of the acmevisual config.
type Config struct {
	// Driver is "chromedp" (default) or "playwright".
	Driver string `yaml:"driver"`

	// Headless runs the browser without UI.
	Headless bool `yaml:"headless"`

	// ExecutablePath overrides auto-detection of Chrome.
	ExecutablePath string `yaml:"executable_path"`

	// NoSandbox disables Chrome sandbox (needed in some containers).
	NoSandbox bool `yaml:"no_sandbox"`

	// ImplicitWait bounds how long element lookups wait (default: 10s).
	ImplicitWait time.Duration `yaml:"implicit_wait"`

	// NavigationTimeout bounds page loads (default: 30s).
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

// ResolvedConfig is the fully resolved browser configuration.
type ResolvedConfig struct {
	Driver            string
	Headless          bool
	ExecutablePath    string
	NoSandbox         bool
	ImplicitWait      time.Duration
	NavigationTimeout time.Duration
}

// DefaultConfig returns the default browser configuration.
func DefaultConfig() Config {
	return Config{
		Driver:            DriverChromedp,
		ImplicitWait:      DefaultImplicitWait,
		NavigationTimeout: DefaultNavigationTimeout,
	}
}

// ResolveConfig resolves a browser config with defaults applied.
func ResolveConfig(cfg Config) (*ResolvedConfig, error) {
	resolved := &ResolvedConfig{
		Driver:            strings.ToLower(strings.TrimSpace(cfg.Driver)),
		Headless:          cfg.Headless,
		ExecutablePath:    cfg.ExecutablePath,
		NoSandbox:         cfg.NoSandbox,
		ImplicitWait:      cfg.ImplicitWait,
		NavigationTimeout: cfg.NavigationTimeout,
	}

	if resolved.Driver == "" {
		resolved.Driver = DriverChromedp
	}
	if resolved.Driver != DriverChromedp && resolved.Driver != DriverPlaywright {
		return nil, fmt.Errorf("unknown browser driver: %s", cfg.Driver)
	}

	if resolved.ImplicitWait <= 0 {
		resolved.ImplicitWait = DefaultImplicitWait
	}
	if resolved.NavigationTimeout <= 0 {
		resolved.NavigationTimeout = DefaultNavigationTimeout
	}

	return resolved, nil
}
