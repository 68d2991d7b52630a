package eyes

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"runtime"
	"sync"

	"github.com/neboloop/acmevisual/internal/logging"
)

// ErrNotOpen is returned by Check when no session is open.
var ErrNotOpen = errors.New("eyes is not open")

// Page is the browser surface checkpoints are captured from.
type Page interface {
	SetViewportSize(ctx context.Context, width, height int) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Title(ctx context.Context) (string, error)
}

// ArtifactStore keeps a local copy of each uploaded checkpoint.
type ArtifactStore interface {
	SaveCheckpoint(testName string, step int, tag string, png []byte) (string, error)
}

// Configuration is the per-Eyes test setup.
type Configuration struct {
	APIKey         string
	ServerURL      string
	Batch          *BatchInfo
	BranchName     string
	AppName        string
	TestName       string
	ViewportSize   RectangleSize
	MatchLevel     MatchLevel // default for checkpoints without an override
	HostOS         string
	HostApp        string
	SaveNewTests   bool // accept new baselines on close
	IgnoreMismatch bool
}

// Option configures an Eyes instance.
type Option func(*Eyes)

// WithHTTPClient sets the HTTP client used to reach the server.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Eyes) { e.httpClient = c }
}

// WithArtifactStore saves each checkpoint screenshot locally.
func WithArtifactStore(s ArtifactStore) Option {
	return func(e *Eyes) { e.artifacts = s }
}

// Eyes runs one visual test: Open, one or more Check calls, then CloseAsync or AbortAsync.
type Eyes struct {
	mu sync.Mutex

	runner     *ClassicRunner
	config     Configuration
	httpClient *http.Client
	artifacts  ArtifactStore
	log        logging.Logger

	page    Page
	client  *Client
	session *RunningSession
	step    int
	open    bool
}

// New creates an Eyes whose results are collected by runner.
func New(runner *ClassicRunner, opts ...Option) *Eyes {
	e := &Eyes{
		runner: runner,
		config: Configuration{
			ServerURL:  DefaultServerURL,
			MatchLevel: MatchLevelStrict,
			HostOS:     runtime.GOOS,
			HostApp:    "Chrome",
		},
		log: logging.WithComponent("eyes"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configuration returns a copy of the current configuration.
func (e *Eyes) Configuration() Configuration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// SetConfiguration replaces the configuration. It applies to the next Open.
func (e *Eyes) SetConfiguration(c Configuration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = c
}

// IsOpen reports whether a session is running.
func (e *Eyes) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// Open starts a test session for appName/testName, resizing page to viewport.
// Empty arguments fall back to the configuration.
func (e *Eyes) Open(ctx context.Context, page Page, appName, testName string, viewport RectangleSize) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open {
		return fmt.Errorf("eyes already open for %s/%s", e.config.AppName, e.config.TestName)
	}
	if page == nil {
		return fmt.Errorf("open: page is nil")
	}

	if appName != "" {
		e.config.AppName = appName
	}
	if testName != "" {
		e.config.TestName = testName
	}
	if !viewport.IsEmpty() {
		e.config.ViewportSize = viewport
	}
	if e.config.Batch == nil {
		e.config.Batch = NewBatchInfo(e.config.TestName)
	}
	if e.config.MatchLevel == "" {
		e.config.MatchLevel = MatchLevelStrict
	}

	client, err := NewClient(e.config.ServerURL, e.config.APIKey, e.httpClient)
	if err != nil {
		return err
	}

	if !e.config.ViewportSize.IsEmpty() {
		if err := page.SetViewportSize(ctx, e.config.ViewportSize.Width, e.config.ViewportSize.Height); err != nil {
			return fmt.Errorf("open: %w", err)
		}
	}

	session, err := client.StartSession(ctx, &StartInfo{
		AppIDOrName:      e.config.AppName,
		ScenarioIDOrName: e.config.TestName,
		BatchInfo:        e.config.Batch,
		BranchName:       e.config.BranchName,
		Environment: AppEnvironment{
			OS:          e.config.HostOS,
			HostingApp:  e.config.HostApp,
			DisplaySize: e.config.ViewportSize,
		},
		DefaultMatchSettings: ImageMatchSettings{MatchLevel: e.config.MatchLevel},
	})
	if err != nil {
		return err
	}

	e.page = page
	e.client = client
	e.session = session
	e.step = 0
	e.open = true
	if e.runner != nil {
		e.runner.register(e)
	}

	e.log.Infof("opened %s/%s (batch %q, viewport %s, new=%v)",
		e.config.AppName, e.config.TestName, e.config.Batch.Name, e.config.ViewportSize, session.IsNew)
	return nil
}

// Check captures the page and uploads it as the next checkpoint.
// A visual mismatch is not an error; it is reported in the test results.
func (e *Eyes) Check(ctx context.Context, settings *CheckSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return ErrNotOpen
	}
	if settings == nil {
		settings = Window()
	}

	e.step++
	tag := settings.Name()
	if tag == "" {
		tag = fmt.Sprintf("Step %d", e.step)
	}
	level := settings.GetMatchLevel()
	if level == "" {
		level = e.config.MatchLevel
	}

	shot, err := e.page.Screenshot(ctx, settings.IsFully())
	if err != nil {
		return fmt.Errorf("check %q: %w", tag, err)
	}
	title, err := e.page.Title(ctx)
	if err != nil {
		e.log.Warnf("check %q: %v", tag, err)
	}

	result, err := e.client.MatchWindow(ctx, e.session.ID, &MatchWindowData{
		AppOutput: AppOutput{
			Title:        title,
			Screenshot64: base64.StdEncoding.EncodeToString(shot),
			ImageSize:    imageSize(shot),
		},
		Tag:            tag,
		IgnoreMismatch: e.config.IgnoreMismatch,
		Options: MatchOptions{
			Name:               tag,
			ImageMatchSettings: ImageMatchSettings{MatchLevel: level},
		},
	})
	if err != nil {
		return err
	}

	if e.artifacts != nil {
		path, err := e.artifacts.SaveCheckpoint(e.config.TestName, e.step, tag, shot)
		if err != nil {
			e.log.Warnf("save checkpoint %q: %v", tag, err)
		} else {
			e.log.Debugf("saved checkpoint %q to %s", tag, path)
		}
	}

	if result.AsExpected {
		e.log.Infof("checkpoint %q (%s) matched", tag, level)
	} else {
		e.log.Warnf("checkpoint %q (%s) differs from baseline", tag, level)
	}
	return nil
}

// CloseAsync ends the session in the background. The results are collected
// by the runner's GetAllTestResults. It does nothing when no session is open.
func (e *Eyes) CloseAsync(ctx context.Context) {
	e.stopAsync(ctx, false)
}

// AbortAsync discards the session in the background. It does nothing when
// no session is open, so it is safe to call after any failure.
func (e *Eyes) AbortAsync(ctx context.Context) {
	e.stopAsync(ctx, true)
}

func (e *Eyes) stopAsync(ctx context.Context, aborted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return
	}
	e.open = false

	client, session, config := e.client, e.session, e.config
	stop := func() (*TestResults, error) {
		results, err := client.StopSession(ctx, session.ID, aborted, config.SaveNewTests && !aborted)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", config.AppName, config.TestName, err)
		}
		fillResults(results, session, config, aborted)
		return results, nil
	}

	if aborted {
		e.log.Infof("aborting %s/%s", config.AppName, config.TestName)
	} else {
		e.log.Infof("closing %s/%s", config.AppName, config.TestName)
	}

	if e.runner != nil {
		e.runner.track(e, stop)
		return
	}
	go func() {
		if _, err := stop(); err != nil {
			e.log.Errorf("%v", err)
		}
	}()
}

// fillResults completes fields the server may leave out.
func fillResults(r *TestResults, session *RunningSession, config Configuration, aborted bool) {
	if r.ID == "" {
		r.ID = session.SessionID
	}
	if r.Name == "" {
		r.Name = config.TestName
	}
	if r.AppName == "" {
		r.AppName = config.AppName
	}
	if config.Batch != nil {
		if r.BatchName == "" {
			r.BatchName = config.Batch.Name
		}
		if r.BatchID == "" {
			r.BatchID = config.Batch.ID
		}
	}
	if r.URL == "" {
		r.URL = session.URL
	}
	if r.Viewport.IsEmpty() {
		r.Viewport = config.ViewportSize
	}
	if !r.IsNew {
		r.IsNew = session.IsNew
	}
	if aborted {
		r.IsAborted = true
	}
}

func imageSize(data []byte) RectangleSize {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return RectangleSize{}
	}
	return RectangleSize{Width: cfg.Width, Height: cfg.Height}
}
