package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neboloop/acmevisual/internal/artifacts"
	"github.com/neboloop/acmevisual/internal/browser"
	"github.com/neboloop/acmevisual/internal/config"
	"github.com/neboloop/acmevisual/internal/logging"
	"github.com/neboloop/acmevisual/internal/scenario"
)

// runLogin resolves the configuration and runs the login scenario.
// Only configuration errors are returned; scenario failures are logged.
func runLogin(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	resolved, err := browser.ResolveConfig(cfg.Browser)
	if err != nil {
		return err
	}

	opts := scenario.Options{
		Config: cfg,
		Launch: func(ctx context.Context) (browser.Driver, error) {
			return launchBrowser(ctx, resolved)
		},
		Out: cmd.OutOrStdout(),
	}

	if cfg.Output.ScreenshotDir != "" {
		store, err := artifacts.NewStore(appFs, cfg.Output.ScreenshotDir)
		if err != nil {
			logging.Warnf("screenshots will not be saved: %v", err)
		} else {
			opts.Artifacts = store
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Infof("running %q against %s (driver %s, headless %v)",
		cfg.Scenario.TestName, cfg.Scenario.URL, resolved.Driver, resolved.Headless)
	scenario.Run(ctx, opts)
	return nil
}

// loadConfig layers the --config file, the environment and the changed flags
// over the embedded defaults, then applies the log level.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if BaseConfig != nil {
		cfg = *BaseConfig
	}

	if cfgFile != "" {
		if err := cfg.MergeFile(appFs, cfgFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return cfg, err
	}
	applyFlags(cmd, &cfg)

	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags overlays the flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if flags.Changed("driver") {
		cfg.Browser.Driver = driverArg
	}
	if flags.Changed("url") {
		cfg.Scenario.URL = targetURL
	}
	if flags.Changed("save-screenshots") {
		cfg.Output.ScreenshotDir = screenshotDir
	}
	if flags.Changed("output") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
}
