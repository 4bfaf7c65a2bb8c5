package models

import "encoding/json"

// Engine identifies which fetch strategy a ScrapeRequest should use.
type Engine string

const (
	EngineChromeCDP  Engine = "chrome-cdp"
	EnginePlaywright Engine = "playwright"
	EngineTLSClient  Engine = "tlsclient"
)

// WaitUntil controls navigation readiness for browser engines.
type WaitUntil string

const (
	WaitUntilLoad             WaitUntil = "load"
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitUntilNetworkIdle      WaitUntil = "networkidle"
)

// Cookie is a single cookie to inject before navigation. Domain defaults to
// the target URL host and Path defaults to "/" when left blank.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// ProxyProfile is a structured proxy descriptor; it takes precedence over
// the raw Proxy string when both are present (see proxyresolve.Resolve).
type ProxyProfile struct {
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Geolocation carries locale hints for the browser context. Only
// Languages[0] is ever consumed (as the context locale); Country is
// accepted but never acted upon.
type Geolocation struct {
	Country   string   `json:"country,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// ActionType enumerates the eight supported page-interaction variants.
type ActionType string

const (
	ActionWait       ActionType = "wait"
	ActionClick      ActionType = "click"
	ActionTypeText   ActionType = "type"
	ActionScroll     ActionType = "scroll"
	ActionScreenshot ActionType = "screenshot"
	ActionScrape     ActionType = "scrape"
	ActionExecuteJS  ActionType = "executeJavascript"
	ActionPDF        ActionType = "pdf"
)

// ScrollDirection is the direction of a scroll action.
type ScrollDirection string

const (
	ScrollDown ScrollDirection = "down"
	ScrollUp   ScrollDirection = "up"
)

// Viewport describes a browser viewport size, used by the screenshot action.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Action is one step of a scripted page-interaction sequence. Exactly the
// fields relevant to Type are meaningful; the rest are ignored.
type Action struct {
	Type ActionType `json:"type"`

	// wait
	Milliseconds int `json:"milliseconds,omitempty"`

	// click / type / scroll(selector form) / screenshot is exempt
	Selector string `json:"selector,omitempty"`

	// type
	Text string `json:"text,omitempty"`

	// scroll
	Direction ScrollDirection `json:"direction,omitempty"`
	Amount    int             `json:"amount,omitempty"`

	// screenshot
	FullPage bool      `json:"fullPage,omitempty"`
	Viewport *Viewport `json:"viewport,omitempty"`

	// executeJavascript
	Script   string          `json:"script,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Defaults fills in the per-variant defaults described in spec.md §3.
func (a *Action) Defaults() {
	if a.Type == ActionWait && a.Milliseconds == 0 {
		a.Milliseconds = 1000
	}
	if a.Type == ActionScroll {
		if a.Direction == "" {
			a.Direction = ScrollDown
		}
		if a.Amount == 0 {
			a.Amount = 500
		}
	}
}

// ScrapeRequest is the payload for POST /v1/scrape. Field names follow the
// wire contract of the proprietary scrape engine this service substitutes
// for; unrecognized fields are rejected at the transport boundary (outside
// this core, per spec.md §1).
type ScrapeRequest struct {
	URL       string            `json:"url"`
	Engine    Engine            `json:"engine,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Cookies   []Cookie          `json:"cookies,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`

	Timeout int `json:"timeout,omitempty"` // ms
	Wait    int `json:"wait,omitempty"`    // ms

	Actions []Action `json:"actions,omitempty"`

	WaitUntil       WaitUntil `json:"waitUntil,omitempty"`
	WaitForSelector string    `json:"waitForSelector,omitempty"`

	Screenshot         bool `json:"screenshot,omitempty"`
	FullPageScreenshot bool `json:"fullPageScreenshot,omitempty"`

	Proxy        string        `json:"proxy,omitempty"`
	ProxyProfile *ProxyProfile `json:"proxyProfile,omitempty"`
	MobileProxy  bool          `json:"mobileProxy,omitempty"`

	// Stealth, BlockMedia and BlockAds default to true; use a pointer so
	// Defaults() can tell "omitted" from "explicitly false" apart.
	Stealth    *bool `json:"stealth,omitempty"`
	BlockMedia *bool `json:"blockMedia,omitempty"`
	BlockAds   *bool `json:"blockAds,omitempty"`

	Mobile bool `json:"mobile,omitempty"`

	Geolocation *Geolocation `json:"geolocation,omitempty"`

	SkipTLSVerification bool `json:"skipTlsVerification,omitempty"`
	InstantReturn        bool `json:"instantReturn,omitempty"`

	// Accepted but not acted upon (spec.md §3).
	Priority              json.RawMessage `json:"priority,omitempty"`
	LogRequest            bool            `json:"logRequest,omitempty"`
	SaveScrapeResultToGCS bool            `json:"saveScrapeResultToGCS,omitempty"`
	ZeroDataRetention     bool            `json:"zeroDataRetention,omitempty"`
	DisableSmartWaitCache bool            `json:"disableSmartWaitCache,omitempty"`
	ATSV                  bool            `json:"atsv,omitempty"`
	DisableJSDom          bool            `json:"disableJsDom,omitempty"`

	// Additive enrichment fields (SPEC_FULL.md §C); all default to the
	// proprietary engine's original behavior when omitted.
	OutputFormat string `json:"outputFormat,omitempty"` // "html" (default) | "markdown" | "text"
	WebhookURL   string `json:"webhookUrl,omitempty"`
	MaxAgeMs     int    `json:"maxAgeMs,omitempty"`
}

// Defaults fills in every default named in spec.md §3 plus the additive
// fields from SPEC_FULL.md §C.
func (r *ScrapeRequest) Defaults() {
	if r.Engine == "" {
		r.Engine = EngineChromeCDP
	}
	if r.Timeout == 0 {
		r.Timeout = 300000
	}
	if r.WaitUntil == "" {
		r.WaitUntil = WaitUntilLoad
	}
	if r.Wait > 30000 {
		r.Wait = 30000
	}
	if r.OutputFormat == "" {
		r.OutputFormat = "html"
	}
	if r.Stealth == nil {
		t := true
		r.Stealth = &t
	}
	if r.BlockMedia == nil {
		t := true
		r.BlockMedia = &t
	}
	if r.BlockAds == nil {
		t := true
		r.BlockAds = &t
	}
	for i := range r.Actions {
		r.Actions[i].Defaults()
	}
}

// Locale returns the context locale derived from Geolocation.Languages[0],
// falling back to "en-US" (spec.md §4.5, §9).
func (r *ScrapeRequest) Locale() string {
	if r.Geolocation != nil && len(r.Geolocation.Languages) > 0 && r.Geolocation.Languages[0] != "" {
		return r.Geolocation.Languages[0]
	}
	return "en-US"
}
