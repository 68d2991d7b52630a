package cli

import (
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/neboloop/acmevisual/internal/browser"
	"github.com/neboloop/acmevisual/internal/config"
)

// Shared CLI flags
var (
	cfgFile       string
	headless      bool
	driverArg     string
	targetURL     string
	screenshotDir string
	outputFormat  string
	logLevel      string
	timeout       time.Duration
)

// BaseConfig holds the embedded default configuration (set by main)
var BaseConfig *config.Config

// Swapped in tests
var (
	appFs         afero.Fs = afero.NewOsFs()
	lookupEnv              = os.LookupEnv
	launchBrowser          = browser.Launch
)
