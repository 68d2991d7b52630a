// Package browser drives a local Chromium browser for the visual login test.
// Two drivers are available: chromedp (CDP, default) and playwright.
package browser

import "time"

// Driver names
const (
	// DriverChromedp drives Chrome directly over the DevTools protocol.
	DriverChromedp = "chromedp"

	// DriverPlaywright drives Chromium through a playwright-go server.
	DriverPlaywright = "playwright"
)

const (
	// DefaultImplicitWait is how long element actions wait for their target.
	DefaultImplicitWait = 10 * time.Second

	// DefaultNavigationTimeout bounds a single page load.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultWindowWidth and DefaultWindowHeight size the launched window
	// before any viewport emulation is applied.
	DefaultWindowWidth  = 1280
	DefaultWindowHeight = 800
)
