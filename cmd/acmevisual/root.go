package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/neboloop/acmevisual/internal/config"
	"github.com/neboloop/acmevisual/internal/logging"
)

// SetupRootCmd configures the root command with its subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	BaseConfig = c

	rootCmd := &cobra.Command{
		Use:   "acmevisual",
		Short: "ACME bank login visual test",
		Long: `acmevisual logs into the ACME demo bank in a local Chrome and uploads a
checkpoint of the login page and of the main page to the visual-testing service.

The API key is read from APPLITOOLS_API_KEY. Set HEADLESS=true (or pass
--headless) to run without a browser window. Results are printed to stdout;
the process exits 0 whatever the outcome.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML file overlaid on the built-in defaults")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	// Root-only flags
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run the browser without a window")
	rootCmd.Flags().StringVar(&driverArg, "driver", "chromedp", "browser driver (chromedp, playwright)")
	rootCmd.Flags().StringVar(&targetURL, "url", "", "login page URL (default: the ACME demo app)")
	rootCmd.Flags().StringVar(&screenshotDir, "save-screenshots", "", "keep a local PNG of every checkpoint in this directory")
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", config.FormatText, "result format (text, json)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "bound the browser steps (default: from config)")

	rootCmd.AddCommand(ConfigCmd())

	return rootCmd
}

// Execute runs the root command. A panic outside the scenario's own guards
// is returned as an error so the caller can still exit cleanly.
func Execute(c *config.Config, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rootCmd := SetupRootCmd(c)
	if args != nil {
		rootCmd.SetArgs(args)
	}
	return rootCmd.Execute()
}
