// Package scenario drives the ACME bank login visual test end to end.
package scenario

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/neboloop/acmevisual/internal/browser"
	"github.com/neboloop/acmevisual/internal/config"
	"github.com/neboloop/acmevisual/internal/eyes"
	"github.com/neboloop/acmevisual/internal/logging"
)

// Login form selectors and demo credentials on the ACME demo app.
const (
	UsernameSelector = "#username"
	PasswordSelector = "#password"
	LoginSelector    = "#log-in"

	Username = "applibot"
	Password = "I<3VisualTests"
)

// Checkpoint names, in capture order.
const (
	CheckpointLogin = "Login page"
	CheckpointMain  = "Main page"
)

// DefaultCleanupTimeout bounds waiting for the service results after the run.
const DefaultCleanupTimeout = 2 * time.Minute

// Launcher starts the browser the scenario runs in.
type Launcher func(ctx context.Context) (browser.Driver, error)

// Options configures Run.
type Options struct {
	Config config.Config

	// Launch starts the browser. Required.
	Launch Launcher

	// Artifacts, when set, keeps a local copy of each checkpoint.
	Artifacts eyes.ArtifactStore

	// HTTPClient is used for the visual-testing service (default: http.DefaultClient).
	HTTPClient *http.Client

	// Out receives the result summary.
	Out io.Writer

	// CleanupTimeout bounds result collection (default: DefaultCleanupTimeout).
	CleanupTimeout time.Duration
}

// Run executes the login test. Failures are logged, never returned: the
// browser is always quit and whatever results exist are always reported.
// The returned summary is nil when no results could be collected.
func Run(ctx context.Context, opts Options) *eyes.TestResultsSummary {
	log := logging.WithComponent("scenario")

	runCtx := ctx
	if opts.Config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Config.Timeout)
		defer cancel()
	}

	s := &state{log: log, opts: opts}
	s.execute(runCtx, context.WithoutCancel(ctx))
	return s.cleanup(context.WithoutCancel(ctx))
}

type state struct {
	log  logging.Logger
	opts Options

	runner *eyes.ClassicRunner
	eyes   *eyes.Eyes
	driver browser.Driver
}

// execute runs the browser steps. stopCtx outlives ctx so a close or abort
// queued here still reaches the service after a timeout.
func (s *state) execute(ctx, stopCtx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("scenario panicked: %v\n%s", r, debug.Stack())
			s.abort(stopCtx)
		}
	}()

	if err := s.login(ctx, stopCtx); err != nil {
		s.log.Errorf("scenario failed: %v", err)
		s.abort(stopCtx)
	}
}

func (s *state) login(ctx, stopCtx context.Context) error {
	cfg := s.opts.Config
	if s.opts.Launch == nil {
		return fmt.Errorf("no browser launcher")
	}

	s.runner = eyes.NewClassicRunner()
	eyesOpts := []eyes.Option{}
	if s.opts.HTTPClient != nil {
		eyesOpts = append(eyesOpts, eyes.WithHTTPClient(s.opts.HTTPClient))
	}
	if s.opts.Artifacts != nil {
		eyesOpts = append(eyesOpts, eyes.WithArtifactStore(s.opts.Artifacts))
	}
	s.eyes = eyes.New(s.runner, eyesOpts...)

	conf := s.eyes.Configuration()
	conf.APIKey = cfg.Eyes.APIKey
	if cfg.Eyes.ServerURL != "" {
		conf.ServerURL = cfg.Eyes.ServerURL
	}
	conf.Batch = cfg.NewBatch()
	conf.BranchName = cfg.Eyes.BranchName
	conf.SaveNewTests = cfg.Eyes.SaveNewTests
	conf.HostApp = hostApp(cfg.Browser.Driver)
	s.eyes.SetConfiguration(conf)

	driver, err := s.opts.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	s.driver = driver

	if err := s.eyes.Open(ctx, driver, cfg.Scenario.AppName, cfg.Scenario.TestName, cfg.Scenario.Viewport); err != nil {
		return fmt.Errorf("open eyes: %w", err)
	}

	s.log.Infof("navigating to %s", cfg.Scenario.URL)
	if err := driver.Navigate(ctx, cfg.Scenario.URL); err != nil {
		return err
	}
	if err := s.eyes.Check(ctx, eyes.Window().Fully().WithName(CheckpointLogin)); err != nil {
		return err
	}

	if err := driver.Fill(ctx, UsernameSelector, Username); err != nil {
		return err
	}
	if err := driver.Fill(ctx, PasswordSelector, Password); err != nil {
		return err
	}
	if err := driver.Click(ctx, LoginSelector); err != nil {
		return err
	}
	if err := s.eyes.Check(ctx, eyes.Window().Fully().WithName(CheckpointMain).Layout()); err != nil {
		return err
	}

	s.eyes.CloseAsync(stopCtx)
	return nil
}

func (s *state) abort(ctx context.Context) {
	if s.eyes != nil {
		s.eyes.AbortAsync(ctx)
	}
}

// cleanup quits the browser and reports the collected results.
func (s *state) cleanup(ctx context.Context) (summary *eyes.TestResultsSummary) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("cleanup panicked: %v\n%s", r, debug.Stack())
		}
	}()

	if s.driver != nil {
		if err := s.driver.Quit(); err != nil {
			s.log.Warnf("failed to quit browser: %v", err)
		}
	}

	if s.runner == nil {
		return nil
	}

	timeout := s.opts.CleanupTimeout
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	summary, err := s.runner.GetAllTestResults(ctx)
	if err != nil {
		s.log.Errorf("test results: %v", err)
	}
	if summary == nil {
		return nil
	}

	if s.opts.Out != nil {
		if err := write(s.opts.Out, s.opts.Config.Output.Format, summary); err != nil {
			s.log.Errorf("failed to write results: %v", err)
		}
	}
	return summary
}

func write(w io.Writer, format string, summary *eyes.TestResultsSummary) error {
	if format == config.FormatJSON {
		return summary.WriteJSON(w)
	}
	return summary.WriteText(w)
}

func hostApp(driver string) string {
	if driver == browser.DriverPlaywright {
		return "Chromium"
	}
	return "Chrome"
}
