// Package browser manages the process-wide browser singleton and the
// bounded page-slot pool scrape pipelines acquire against. Grounded on the
// teacher's scraper/scraper.go (launcher flags) and the flaresolverr
// browser-pool.go pattern (atomic/channel bookkeeping), adapted from a
// pool-of-N-browsers design down to the single-browser, bounded-page-slot
// model spec.md §4.4 requires.
package browser

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/scrapeworker/config"
	"github.com/use-agent/scrapeworker/models"
)

// Pool is the process-wide browser singleton plus its page-slot admission
// queue. Safe for concurrent use. The zero value is not usable; construct
// with New.
type Pool struct {
	cfg config.BrowserConfig

	mu        sync.Mutex
	instance  *rod.Browser
	launching chan struct{} // non-nil while a launch is in flight; closed when it resolves

	activePages int
	waiters     []chan struct{} // FIFO queue of parked acquirers
}

// New constructs a Pool. The browser itself is not launched until the
// first Acquire+Browser call (spec.md §4.4: "lazily launched on first
// request").
func New(cfg config.BrowserConfig) *Pool {
	return &Pool{cfg: cfg}
}

// Acquire blocks until a page slot is available or ctx is done. On
// success the caller owns the slot and MUST call Release exactly once on
// every exit path (spec.md §4.4, §5).
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	if p.activePages < p.cfg.MaxConcurrentPages {
		p.activePages++
		p.mu.Unlock()
		return nil
	}
	wait := make(chan struct{})
	p.waiters = append(p.waiters, wait)
	p.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		p.abandonWaiter(wait)
		return ctx.Err()
	}
}

// abandonWaiter removes wait from the queue if it is still parked (the
// caller's context expired before a slot reached it). If a slot was
// already handed to it concurrently, the hand-off is honored instead and
// immediately released back to the next waiter, preserving the invariant
// that every granted slot is matched by exactly one Release.
func (p *Pool) abandonWaiter(wait chan struct{}) {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w == wait {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()
	// Slot was already granted concurrently with the ctx cancellation;
	// hand it straight to the next waiter (or release it) on this caller's
	// behalf since it's no longer going to consume it.
	p.Release()
}

// Release hands the slot to the head waiter, if any, without decrementing
// activePages; otherwise it decrements the counter. This is the
// non-decrementing hand-off invariant from spec.md §9.
func (p *Pool) Release() {
	p.mu.Lock()
	if len(p.waiters) > 0 {
		next := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		close(next)
		return
	}
	p.activePages--
	p.mu.Unlock()
}

// Config returns the pool's browser configuration, for callers that need to
// launch a dedicated one-off instance (e.g. a per-request proxy) matching
// the same headless setting as the shared singleton.
func (p *Pool) Config() config.BrowserConfig {
	return p.cfg
}

// Stats reports the pool's current admission state.
func (p *Pool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PoolStats{
		MaxPages:    p.cfg.MaxConcurrentPages,
		ActivePages: p.activePages,
		Waiters:     len(p.waiters),
	}
}

// Browser returns the shared browser instance, launching it on first call.
// Concurrent first-callers share one launch (one-shot guard, spec.md §9).
func (p *Pool) Browser() (*rod.Browser, error) {
	p.mu.Lock()
	if p.instance != nil {
		b := p.instance
		p.mu.Unlock()
		return b, nil
	}
	if p.launching != nil {
		ch := p.launching
		p.mu.Unlock()
		<-ch
		return p.Browser()
	}

	ch := make(chan struct{})
	p.launching = ch
	p.mu.Unlock()

	b, err := p.launch()

	p.mu.Lock()
	if err == nil {
		p.instance = b
	}
	p.launching = nil
	p.mu.Unlock()

	close(ch)
	return b, err
}

// Invalidate clears the instance handle iff it still equals b, atomically
// with the launch guard, so the next Browser() call re-launches. Pipelines
// call this when a navigation/connect error on b indicates the underlying
// process died (spec.md §4.4: "on disconnect, the instance handle is
// cleared so the next request re-launches").
func (p *Pool) Invalidate(b *rod.Browser) {
	p.mu.Lock()
	if p.instance == b {
		p.instance = nil
	}
	p.mu.Unlock()
}

// launch starts a fresh headless Chromium process with the stealth /
// sandbox-disabling flags spec.md §4.4 names.
func (p *Pool) launch() (*rod.Browser, error) {
	l := launcher.New().Headless(p.cfg.Headless)

	l.Set(flags.Flag("no-sandbox"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-infobars"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	return b, nil
}

// Close shuts down the browser instance, if one is running. Called on
// process shutdown (spec.md §6: "close the browser").
func (p *Pool) Close() {
	p.mu.Lock()
	b := p.instance
	p.instance = nil
	p.mu.Unlock()
	if b != nil {
		slog.Info("closing browser")
		_ = b.Close()
	}
}
