package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/scrapeworker/actions"
	"github.com/use-agent/scrapeworker/blockdetect"
	"github.com/use-agent/scrapeworker/browser"
	"github.com/use-agent/scrapeworker/models"
	"github.com/use-agent/scrapeworker/proxyresolve"
)

const (
	maxWaitForSelector = 30000 * time.Millisecond
	maxIdleWait         = 30000 * time.Millisecond

	desktopViewportWidth  = 1920
	desktopViewportHeight = 1080
	mobileViewportWidth   = 390
	mobileViewportHeight  = 844
	mobileDeviceScale     = 3

	mobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
)

// adDomainSubstrings are matched against the lowercased request URL when
// blockAds is set (spec.md §4.5 step 3).
var adDomainSubstrings = []string{
	"doubleclick.net", "googlesyndication.com", "googleadservices.com",
	"googletagservices.com", "adservice.google.com", "amazon-adsystem.com",
	"adnxs.com", "taboola.com", "outbrain.com", "scorecardresearch.com",
	"moatads.com", "criteo.com",
}

// blockedMediaExtensions are matched as URL suffixes when blockMedia is set.
var blockedMediaExtensions = []string{
	".mp4", ".webm", ".avi", ".mov", ".wmv", ".flv", ".mp3", ".wav", ".ogg", ".gif", ".webp",
}

// additionalStealthJS layers the overrides spec.md §4.5 names beyond what
// go-rod/stealth's bundled script covers.
const additionalStealthJS = `() => {
	try { Object.defineProperty(navigator, 'webdriver', { get: () => undefined }); } catch (e) {}
	try {
		delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
		delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
		delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
	} catch (e) {}
	try { window.chrome = window.chrome || { runtime: {} }; } catch (e) {}
	try {
		const originalQuery = window.navigator.permissions.query;
		window.navigator.permissions.query = (parameters) =>
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters);
	} catch (e) {}
	try { Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] }); } catch (e) {}
	try { Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] }); } catch (e) {}
	try { Object.defineProperty(navigator, 'platform', { get: () => 'Win32' }); } catch (e) {}
	try { Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => 8 }); } catch (e) {}
	try { Object.defineProperty(navigator, 'deviceMemory', { get: () => 8 }); } catch (e) {}
}`

// BrowserScrapePipeline drives a full automated-browser scrape: isolated
// context construction, stealth, resource blocking, navigation, waits,
// actions, screenshot and block detection (spec.md §4.5).
type BrowserScrapePipeline struct {
	Pool *browser.Pool
	Env  proxyresolve.Env
}

// NewBrowserScrapePipeline constructs a pipeline against the shared page
// pool, consulting env as the environment-level proxy fallback.
func NewBrowserScrapePipeline(pool *browser.Pool, env proxyresolve.Env) *BrowserScrapePipeline {
	return &BrowserScrapePipeline{Pool: pool, Env: env}
}

// Run executes the eleven-step sequence from spec.md §4.5. Any non-action
// navigation/setup failure is folded into a soft SuccessResponse rather than
// returned as an error; an ActionError propagates so the caller can mark the
// job failed (spec.md §4.5 "Failure policy", §7).
func (b *BrowserScrapePipeline) Run(ctx context.Context, req *models.ScrapeRequest) (*models.SuccessResponse, error) {
	start := time.Now()

	if err := b.Pool.Acquire(ctx); err != nil {
		return softFailure(req.URL, start, fmt.Sprintf("timed out waiting for a page slot: %v", err)), nil
	}
	defer b.Pool.Release()

	resolvedProxy := proxyresolve.Resolve(req, b.Env)
	browserInst, dedicated, err := b.obtainBrowser(resolvedProxy)
	if err != nil {
		return softFailure(req.URL, start, err.Error()), nil
	}
	if dedicated {
		defer browserInst.Close()
	}

	bctx, err := browserInst.Incognito()
	if err != nil {
		b.Pool.Invalidate(browserInst)
		return softFailure(req.URL, start, fmt.Sprintf("failed to create isolated context: %v", err)), nil
	}
	defer bctx.Close()

	page, err := bctx.Page(proto.TargetCreateTarget{})
	if err != nil {
		return softFailure(req.URL, start, fmt.Sprintf("failed to open page: %v", err)), nil
	}
	defer page.Close()

	timeout := time.Duration(req.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 300000 * time.Millisecond
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page = page.Context(pctx)

	if req.SkipTLSVerification {
		_, _ = proto.SecuritySetIgnoreCertificateErrors{Ignore: true}.Call(page)
	}

	applyViewportAndUA(page, req)
	applyExtraHeaders(page, req)
	applyCookies(page, req)

	if resolvedProxy.Username != "" {
		waitAuth := page.HandleAuth(resolvedProxy.Username, resolvedProxy.Password)
		go func() { _ = waitAuth() }()
	}

	stealthEnabled := req.Stealth == nil || *req.Stealth
	if stealthEnabled {
		applyStealth(page)
	}

	blockMedia := req.BlockMedia == nil || *req.BlockMedia
	blockAds := req.BlockAds == nil || *req.BlockAds
	var router *rod.HijackRouter
	var waitHeaders func() map[string]string
	if blockMedia || blockAds {
		router = setupResourceBlocking(page, blockMedia, blockAds)
		defer func() { _ = router.Stop() }()
	} else {
		// Header capture uses the Network domain, which conflicts with the
		// Fetch domain used for resource blocking; only wired when hijacking
		// is off.
		waitHeaders = captureResponseHeaders(page, req.URL)
	}

	if navErr := page.Navigate(req.URL); navErr != nil {
		b.Pool.Invalidate(browserInst)
		return softFailure(req.URL, start, fmt.Sprintf("navigation failed: %v", navErr)), nil
	}

	waitForReadiness(page, req.WaitUntil)

	if req.WaitForSelector != "" {
		selTimeout := timeout
		if selTimeout > maxWaitForSelector {
			selTimeout = maxWaitForSelector
		}
		if _, err := page.Timeout(selTimeout).Element(req.WaitForSelector); err != nil {
			slog.Warn("waitForSelector did not resolve", "selector", req.WaitForSelector, "error", err)
		}
	}

	idleWait := time.Duration(req.Wait) * time.Millisecond
	if idleWait > maxIdleWait {
		idleWait = maxIdleWait
	}
	if idleWait > 0 {
		select {
		case <-time.After(idleWait):
		case <-pctx.Done():
		}
	}

	statusCode := readStatusCode(page)
	html, err := page.HTML()
	if err != nil {
		return softFailure(req.URL, start, fmt.Sprintf("failed to read page content: %v", err)), nil
	}

	finalURL := req.URL
	if u := evalString(page, `() => window.location.href`); u != "" {
		finalURL = u
	}

	headers := map[string]string{}
	if waitHeaders != nil {
		headers = waitHeaders()
	}

	sr := &models.SuccessResponse{
		TimeTaken:       time.Since(start).Seconds() * 1000,
		Content:         html,
		URL:             finalURL,
		PageStatusCode:  statusCode,
		ResponseHeaders: headers,
		UsedMobileProxy: req.MobileProxy,
	}

	if len(req.Actions) > 0 {
		results, screenshots, actErr := actions.Run(pctx, page, req.Actions)
		if actErr != nil {
			return nil, actErr
		}
		sr.ActionResults = results
		sr.Screenshots = screenshots
		if reHTML, err := page.HTML(); err == nil {
			sr.Content = reHTML
			sr.ActionContent = reHTML
		}
	}

	if req.Screenshot || req.FullPageScreenshot {
		data, err := page.Screenshot(req.FullPageScreenshot, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			slog.Warn("post-action screenshot failed", "error", err)
		} else {
			sr.Screenshot = base64.StdEncoding.EncodeToString(data)
		}
	}

	result := blockdetect.Detect(statusCode, sr.Content, headers)
	if result.IsBlocked && result.Confidence >= 0.5 {
		sr.BlockedReason = result.Reason
	}

	return sr, nil
}

// obtainBrowser returns the shared singleton when no proxy is resolved;
// otherwise it launches a dedicated one-off browser with --proxy-server set,
// mirroring a pattern where a per-request proxy differs from the pool's
// (absent) default. The caller must Close a dedicated instance.
func (b *BrowserScrapePipeline) obtainBrowser(resolved proxyresolve.Resolved) (*rod.Browser, bool, error) {
	if resolved.Server == "" {
		br, err := b.Pool.Browser()
		if err != nil {
			return nil, false, err
		}
		return br, false, nil
	}

	cfg := b.Pool.Config()
	l := launcher.New().Headless(cfg.Headless).Set("proxy-server", resolved.Server)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, false, fmt.Errorf("failed to launch proxied browser: %w", err)
	}
	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		return nil, false, fmt.Errorf("failed to connect to proxied browser: %w", err)
	}
	return br, true, nil
}

func applyViewportAndUA(page *rod.Page, req *models.ScrapeRequest) {
	if req.Mobile {
		_, _ = proto.EmulationSetDeviceMetricsOverride{
			Width: mobileViewportWidth, Height: mobileViewportHeight,
			DeviceScaleFactor: mobileDeviceScale, Mobile: true,
		}.Call(page)
		_, _ = proto.EmulationSetTouchEmulationEnabled{Enabled: true}.Call(page)
		_, _ = proto.EmulationSetUserAgentOverride{UserAgent: mobileUserAgent}.Call(page)
		return
	}

	_, _ = proto.EmulationSetDeviceMetricsOverride{
		Width: desktopViewportWidth, Height: desktopViewportHeight,
		DeviceScaleFactor: 1, Mobile: false,
	}.Call(page)
	if req.UserAgent != "" {
		_, _ = proto.EmulationSetUserAgentOverride{UserAgent: req.UserAgent}.Call(page)
	}
	_, _ = proto.EmulationSetLocaleOverride{Locale: req.Locale()}.Call(page)
}

func applyExtraHeaders(page *rod.Page, req *models.ScrapeRequest) {
	if len(req.Headers) == 0 {
		return
	}
	m := make(proto.NetworkHeaders, len(req.Headers))
	for k, v := range req.Headers {
		m[k] = gson.New(v)
	}
	_, _ = proto.NetworkSetExtraHTTPHeaders{Headers: m}.Call(page)
}

func applyCookies(page *rod.Page, req *models.ScrapeRequest) {
	if len(req.Cookies) == 0 {
		return
	}
	defaultDomain := ""
	if u, err := url.Parse(req.URL); err == nil {
		defaultDomain = u.Host
	}
	for _, c := range req.Cookies {
		domain := c.Domain
		if domain == "" {
			domain = defaultDomain
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{Name: c.Name, Value: c.Value, Domain: domain, Path: path}.Call(page)
	}
}

// applyStealth layers go-rod/stealth's bundled script with the additional
// overrides spec.md §4.5 names.
func applyStealth(page *rod.Page) {
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth.JS injection failed", "error", err)
	}
	if _, err := page.EvalOnNewDocument(additionalStealthJS); err != nil {
		slog.Warn("additional stealth overrides failed", "error", err)
	}
}

func setupResourceBlocking(page *rod.Page, blockMedia, blockAds bool) *rod.HijackRouter {
	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		u := strings.ToLower(ctx.Request.URL().String())

		if blockAds {
			for _, domain := range adDomainSubstrings {
				if strings.Contains(u, domain) {
					ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
					return
				}
			}
		}

		if blockMedia {
			switch ctx.Request.Type() {
			case proto.NetworkResourceTypeMedia, proto.NetworkResourceTypeFont:
				ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
			for _, ext := range blockedMediaExtensions {
				if strings.HasSuffix(u, ext) {
					ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
					return
				}
			}
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()
	return router
}

// captureResponseHeaders listens for the main document's response and
// returns a function that blocks (briefly) until it arrives, yielding a flat
// header map. Best-effort: a 2s cap prevents a missed event from hanging the
// pipeline.
func captureResponseHeaders(page *rod.Page, targetURL string) func() map[string]string {
	headers := map[string]string{}
	var mu sync.Mutex

	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Response.URL != targetURL {
			return false
		}
		mu.Lock()
		for k, v := range e.Response.Headers {
			headers[k] = v.Str()
		}
		mu.Unlock()
		return true
	})

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	return func() map[string]string {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
		mu.Lock()
		defer mu.Unlock()
		out := make(map[string]string, len(headers))
		for k, v := range headers {
			out[k] = v
		}
		return out
	}
}

func waitForReadiness(page *rod.Page, waitUntil models.WaitUntil) {
	switch waitUntil {
	case models.WaitUntilNetworkIdle:
		wait := page.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
		wait()
	case models.WaitUntilDOMContentLoaded:
		if err := page.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
			slog.Debug("WaitDOMStable did not converge", "error", err)
		}
	default: // load
		if err := page.WaitLoad(); err != nil {
			slog.Debug("WaitLoad failed", "error", err)
		}
	}
}

// readStatusCode reads the navigation's HTTP status via the Performance API,
// avoiding a Network-domain event listener that would conflict with the
// Fetch domain used for resource blocking.
func readStatusCode(page *rod.Page) int {
	res, err := page.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func evalString(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func softFailure(url string, start time.Time, message string) *models.SuccessResponse {
	return &models.SuccessResponse{
		TimeTaken: time.Since(start).Seconds() * 1000,
		URL:       url,
		PageError: message,
	}
}
