package browserpool

import (
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// renderingContext is one reusable rod.Page plus the hijack router
// driving its request filter. On release it returns to a secondary
// bounded pool if there is room, else it is closed.
type renderingContext struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (c *renderingContext) close() {
	if c.router != nil {
		_ = c.router.Stop()
	}
	if c.page != nil {
		_ = c.page.Close()
	}
}

var trackerSubstrings = []string{"analytics", "tracking", "pixel", "beacon"}

// fontCache suppresses repeat font fetches inside a 60s window; keyed
// by request URL, shared across contexts on one engine.
type fontCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newFontCache() *fontCache {
	return &fontCache{seen: make(map[string]time.Time)}
}

func (fc *fontCache) recentlySeen(url string) bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	now := time.Now()
	if t, ok := fc.seen[url]; ok && now.Sub(t) < 60*time.Second {
		return true
	}
	fc.seen[url] = now
	return false
}

// newRenderingContext creates a fresh page with the pool's standard
// per-page optimizations: animation/transition zeroing, timeouts tied
// to requestTimeout, and a resource filter aborting tracker, blocked
// domain, font, media, and non-favicon image requests.
func newRenderingContext(browser *rod.Browser, requestTimeout time.Duration, blockedDomains []string, fonts *fontCache, useStealth bool) (*renderingContext, error) {
	var page *rod.Page
	var err error
	if useStealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, err
	}

	page = page.Timeout(requestTimeout)

	if err := optimizePage(page); err != nil {
		_ = page.Close()
		return nil, err
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(hijack *rod.Hijack) {
		if shouldAbort(hijack, blockedDomains, fonts) {
			hijack.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		hijack.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return &renderingContext{page: page, router: router}, nil
}

// optimizePage zeroes CSS animation/transition durations so dynamic
// pages settle immediately instead of waiting out real-time animations.
func optimizePage(page *rod.Page) error {
	_, err := page.EvalOnNewDocument(`() => {
		const style = document.createElement('style');
		style.innerHTML = '*, *::before, *::after { animation-duration: 0s !important; transition-duration: 0s !important; }';
		document.head && document.head.appendChild(style);
	}`)
	return err
}

// shouldAbort implements the resource filter: abort non-essential
// images, all media and font requests by type, and known tracker
// domains/substrings. The font cache records sightings so the repeat
// suppression stays accurate even if the type filter is relaxed.
func shouldAbort(hijack *rod.Hijack, blockedDomains []string, fonts *fontCache) bool {
	req := hijack.Request
	url := req.URL().String()
	lower := strings.ToLower(url)

	for _, sub := range trackerSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}

	for _, domain := range blockedDomains {
		if domain != "" && strings.Contains(lower, strings.ToLower(domain)) {
			return true
		}
	}

	switch req.Type() {
	case proto.NetworkResourceTypeMedia:
		return true
	case proto.NetworkResourceTypeFont:
		fonts.recentlySeen(url)
		return true
	case proto.NetworkResourceTypeImage:
		if !strings.Contains(lower, "favicon") {
			return true
		}
	}

	return false
}
