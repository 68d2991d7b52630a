package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by driver methods called after Quit.
var ErrClosed = errors.New("browser is closed")

// Driver is a launched browser with a single active page.
// Selectors are CSS selectors.
type Driver interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error

	// Fill waits for the element, clears it and types value.
	Fill(ctx context.Context, selector, value string) error

	// Click waits for the element to be visible and clicks it.
	Click(ctx context.Context, selector string) error

	// SetViewportSize resizes the page viewport in CSS pixels.
	SetViewportSize(ctx context.Context, width, height int) error

	// Screenshot captures the viewport, or the whole page when fullPage is set, as PNG.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// Quit closes the browser. It is safe to call more than once.
	Quit() error
}

// Launch starts a local browser using the configured driver.
func Launch(ctx context.Context, cfg *ResolvedConfig) (Driver, error) {
	switch cfg.Driver {
	case DriverChromedp:
		d, err := LaunchChrome(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case DriverPlaywright:
		d, err := LaunchPlaywright(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", cfg.Driver)
	}
}
