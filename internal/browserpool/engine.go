// Package browserpool manages a bounded pool of headless Chromium
// engines (rod.Browser) plus a secondary per-engine pool of reusable
// rendering contexts.
package browserpool

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Engine wraps one rod.Browser launched with the pool's standard
// flags, plus its own secondary pool of reusable rendering contexts.
type Engine struct {
	browser *rod.Browser
	wsURL   string

	contexts chan *renderingContext
	fonts    *fontCache
}

// launchFlags is the headless/minimized/predictable launch contract:
// GPU and sandbox disabled, background throttling disabled so timers
// stay deterministic, and a capped JS heap so one runaway page can't
// balloon process memory.
func launchFlags(proxyURL string) *launcher.Launcher {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("memory-pressure-off").
		Set("js-flags", "--max_old_space_size=512")

	if proxyURL != "" {
		l = l.Proxy(proxyURL)
	}
	return l
}

// launchEngine starts a fresh Chromium instance and connects to it.
func launchEngine(proxyURL string, contextPoolSize int) (*Engine, error) {
	wsURL, err := launchFlags(proxyURL).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	browser := rod.New().ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect chromium: %w", err)
	}

	return &Engine{
		browser:  browser,
		wsURL:    wsURL,
		contexts: make(chan *renderingContext, contextPoolSize),
		fonts:    newFontCache(),
	}, nil
}

// acquireContext pops a reusable rendering context off the engine's own
// pool, or creates a new one if none are available.
func (e *Engine) acquireContext(requestTimeout time.Duration, blockedDomains []string, useStealth bool) (*renderingContext, error) {
	select {
	case rc := <-e.contexts:
		return rc, nil
	default:
		return newRenderingContext(e.browser, requestTimeout, blockedDomains, e.fonts, useStealth)
	}
}

// releaseContext returns a context to the engine's pool if there is
// room, navigating it to about:blank first to free page memory;
// otherwise it is closed outright.
func (e *Engine) releaseContext(rc *renderingContext) {
	if rc == nil {
		return
	}
	_ = rc.page.Navigate("about:blank")

	select {
	case e.contexts <- rc:
	default:
		rc.close()
	}
}

// closeContexts drains and closes every pooled context.
func (e *Engine) closeContexts() {
	close(e.contexts)
	for rc := range e.contexts {
		rc.close()
	}
}

// connected reports whether the engine's browser process is still reachable.
func (e *Engine) connected() bool {
	if e == nil || e.browser == nil {
		return false
	}
	_, err := e.browser.Pages()
	return err == nil
}

func (e *Engine) close() error {
	if e == nil || e.browser == nil {
		return nil
	}
	return e.browser.Close()
}
