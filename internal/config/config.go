package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"

	"github.com/neboloop/acmevisual/internal/browser"
	"github.com/neboloop/acmevisual/internal/eyes"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the acmevisual configuration
type Config struct {
	Eyes     EyesConfig     `yaml:"eyes"`
	Browser  browser.Config `yaml:"browser"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Output   OutputConfig   `yaml:"output"`

	LogLevel string        `yaml:"log_level"` // debug, info, warn, error
	Timeout  time.Duration `yaml:"timeout"`   // Bounds the whole run, cleanup excluded
}

// EyesConfig holds the visual-testing service settings
type EyesConfig struct {
	APIKey       string `yaml:"api_key"`
	ServerURL    string `yaml:"server_url"`
	BatchName    string `yaml:"batch_name"`
	BatchID      string `yaml:"batch_id"`       // Empty = fresh ID per run
	BranchName   string `yaml:"branch_name"`    // Baseline branch (default: service default)
	SaveNewTests bool   `yaml:"save_new_tests"` // Accept first-run checkpoints as baseline
}

// ScenarioConfig holds the login test target
type ScenarioConfig struct {
	URL      string             `yaml:"url"`
	AppName  string             `yaml:"app_name"`
	TestName string             `yaml:"test_name"`
	Viewport eyes.RectangleSize `yaml:"viewport"`
}

// OutputConfig controls result reporting
type OutputConfig struct {
	Format        string `yaml:"format"`         // text or json
	ScreenshotDir string `yaml:"screenshot_dir"` // Local copies of checkpoints (empty = off)
}

// LoadFromBytes loads configuration from YAML bytes with environment variable expansion
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	if err := c.merge(data); err != nil {
		return c, err
	}
	return c, nil
}

// MergeFile overlays the YAML file at path. Keys absent from the file keep their value.
func (c *Config) MergeFile(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := c.merge(data); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) merge(data []byte) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), c)
}

// envConfig lists the environment overrides. Unset variables leave the field null.
type envConfig struct {
	APIKey     null.String `envconfig:"APPLITOOLS_API_KEY"`
	ServerURL  null.String `envconfig:"APPLITOOLS_SERVER_URL"`
	BatchName  null.String `envconfig:"APPLITOOLS_BATCH_NAME"`
	BatchID    null.String `envconfig:"APPLITOOLS_BATCH_ID"`
	BranchName null.String `envconfig:"APPLITOOLS_BRANCH_NAME"`
	Headless   null.String `envconfig:"HEADLESS"`
	Driver     null.String `envconfig:"ACME_BROWSER_DRIVER"`
	ChromePath null.String `envconfig:"CHROME_PATH"`
	LogLevel   null.String `envconfig:"ACME_LOG_LEVEL"`
}

// ApplyEnv overlays environment variables read through lookup (os.LookupEnv when nil).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var env envConfig
	if err := envconfig.Process("", &env, lookup); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if env.APIKey.Valid {
		c.Eyes.APIKey = env.APIKey.String
	}
	if env.ServerURL.Valid {
		c.Eyes.ServerURL = env.ServerURL.String
	}
	if env.BatchName.Valid {
		c.Eyes.BatchName = env.BatchName.String
	}
	if env.BatchID.Valid {
		c.Eyes.BatchID = env.BatchID.String
	}
	if env.BranchName.Valid {
		c.Eyes.BranchName = env.BranchName.String
	}
	if env.Headless.Valid {
		// Only "true" (any case) turns headless on; anything else means a visible window.
		c.Browser.Headless = strings.EqualFold(strings.TrimSpace(env.Headless.String), "true")
	}
	if env.Driver.Valid {
		c.Browser.Driver = env.Driver.String
	}
	if env.ChromePath.Valid {
		c.Browser.ExecutablePath = env.ChromePath.String
	}
	if env.LogLevel.Valid {
		c.LogLevel = env.LogLevel.String
	}
	return nil
}

// Validate checks values that would otherwise fail late in the run.
// A missing API key is not checked here; Eyes reports it when opening.
func (c Config) Validate() error {
	u, err := url.Parse(c.Scenario.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("scenario url must be an absolute http(s) URL, got %q", c.Scenario.URL)
	}
	if c.Scenario.Viewport.IsEmpty() {
		return fmt.Errorf("scenario viewport must be positive, got %s", c.Scenario.Viewport)
	}
	switch c.Output.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown output format %q (valid: text, json)", c.Output.Format)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// NewBatch builds the batch for this run.
func (c Config) NewBatch() *eyes.BatchInfo {
	batch := eyes.NewBatchInfo(c.Eyes.BatchName)
	if c.Eyes.BatchID != "" {
		batch.ID = c.Eyes.BatchID
	}
	return batch
}
