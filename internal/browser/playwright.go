package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/neboloop/acmevisual/internal/logging"
)

// PlaywrightDriver drives Chromium through playwright-go.
type PlaywrightDriver struct {
	mu     sync.Mutex
	closed bool

	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page

	implicitWait      float64
	navigationTimeout float64
}

// LaunchPlaywright installs the Chromium driver if needed and opens a page.
func LaunchPlaywright(ctx context.Context, cfg *ResolvedConfig) (*PlaywrightDriver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return nil, fmt.Errorf("failed to install playwright browsers: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(cfg.ExecutablePath)
	}
	if cfg.NoSandbox {
		launchOpts.ChromiumSandbox = playwright.Bool(false)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	d := &PlaywrightDriver{
		pw:                pw,
		browser:           browser,
		page:              page,
		implicitWait:      float64(cfg.ImplicitWait.Milliseconds()),
		navigationTimeout: float64(cfg.NavigationTimeout.Milliseconds()),
	}
	page.SetDefaultTimeout(d.implicitWait)
	page.SetDefaultNavigationTimeout(d.navigationTimeout)

	logging.Debugf("playwright chromium %s launched (headless=%v)", browser.Version(), cfg.Headless)
	return d, nil
}

// check returns an error when the driver is closed or ctx is done.
// Playwright calls are not context-aware, so cancellation is observed between steps.
func (d *PlaywrightDriver) check(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (d *PlaywrightDriver) Navigate(ctx context.Context, url string) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	if url == "" {
		return fmt.Errorf("URL is required")
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(d.navigationTimeout),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *PlaywrightDriver) Fill(ctx context.Context, selector, value string) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	err := d.page.Locator(selector).Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(d.implicitWait),
	})
	if err != nil {
		return fmt.Errorf("fill %s failed: %w", selector, err)
	}
	return nil
}

func (d *PlaywrightDriver) Click(ctx context.Context, selector string) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	err := d.page.Locator(selector).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(d.implicitWait),
	})
	if err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

func (d *PlaywrightDriver) SetViewportSize(ctx context.Context, width, height int) error {
	if err := d.check(ctx); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport size %dx%d", width, height)
	}
	if err := d.page.SetViewportSize(width, height); err != nil {
		return fmt.Errorf("set viewport failed: %w", err)
	}
	return nil
}

func (d *PlaywrightDriver) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := d.check(ctx); err != nil {
		return nil, err
	}
	data, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (d *PlaywrightDriver) Title(ctx context.Context) (string, error) {
	if err := d.check(ctx); err != nil {
		return "", err
	}
	title, err := d.page.Title()
	if err != nil {
		return "", fmt.Errorf("read title failed: %w", err)
	}
	return title, nil
}

func (d *PlaywrightDriver) Quit() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	var firstErr error
	if err := d.browser.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close chromium: %w", err)
	}
	if err := d.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to stop playwright: %w", err)
	}
	return firstErr
}
