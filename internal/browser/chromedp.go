package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/neboloop/acmevisual/internal/logging"
)

// ChromeDriver drives a locally launched Chrome over the DevTools protocol.
type ChromeDriver struct {
	mu     sync.Mutex
	closed bool

	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	implicitWait      time.Duration
	navigationTimeout time.Duration
}

// LaunchChrome starts Chrome and opens a single tab.
func LaunchChrome(ctx context.Context, cfg *ResolvedConfig) (*ChromeDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(DefaultWindowWidth, DefaultWindowHeight),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	exe, err := FindChromeExecutable(cfg.ExecutablePath)
	if err != nil {
		return nil, err
	}
	if exe != nil {
		logging.Debugf("using %s browser at %s", exe.Kind, exe.Path)
		opts = append(opts, chromedp.ExecPath(exe.Path))
	}

	// The browser outlives ctx; Quit owns its lifetime.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logging.Debugf))

	d := &ChromeDriver{
		tabCtx:            tabCtx,
		tabCancel:         tabCancel,
		allocCancel:       allocCancel,
		implicitWait:      cfg.ImplicitWait,
		navigationTimeout: cfg.NavigationTimeout,
	}

	// First Run allocates the browser and the tab.
	if err := d.run(ctx, d.navigationTimeout); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return d, nil
}

func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithTimeout(d.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("URL is required")
	}
	err := d.run(ctx, d.navigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *ChromeDriver) Fill(ctx context.Context, selector, value string) error {
	err := d.run(ctx, d.implicitWait,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill %s failed: %w", selector, err)
	}
	return nil
}

func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	err := d.run(ctx, d.implicitWait,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

func (d *ChromeDriver) SetViewportSize(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid viewport size %dx%d", width, height)
	}
	err := d.run(ctx, d.implicitWait,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
	)
	if err != nil {
		return fmt.Errorf("set viewport failed: %w", err)
	}
	return nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if fullPage {
		// quality 100 keeps PNG encoding
		action = chromedp.FullScreenshot(&buf, 100)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := d.run(ctx, d.navigationTimeout, action); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

func (d *ChromeDriver) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, d.implicitWait, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title failed: %w", err)
	}
	return title, nil
}

func (d *ChromeDriver) Quit() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	// Cancel closes the browser gracefully; allocCancel then reaps the process.
	err := chromedp.Cancel(d.tabCtx)
	d.tabCancel()
	d.allocCancel()
	if err != nil {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}
