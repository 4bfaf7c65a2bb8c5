// Package pipeline implements the two scrape strategies named in
// spec.md §4.5/§4.6 plus the EngineRouter that dispatches between them.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"github.com/use-agent/scrapeworker/blockdetect"
	"github.com/use-agent/scrapeworker/models"
	"github.com/use-agent/scrapeworker/proxyresolve"
)

// userAgentPool is the pool of 4 realistic UAs used when the request
// supplies none (spec.md §3, "userAgent ... randomized: pool of 4").
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

const maxBodyBytes = 10 << 20 // 10 MB

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 (utls can't negotiate h2 over Go's http.Transport). Computed
// once, grounded on the teacher's engine/http_engine.go.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

func newFingerprintedClient(timeout time.Duration, resolved proxyresolve.Resolved, skipTLSVerify bool) *http.Client {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: timeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConf := &tls.Config{ServerName: host, InsecureSkipVerify: skipTLSVerify}
			tlsConn := tls.UClient(conn, tlsConf, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply tls fingerprint: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}

	if resolved.Server != "" {
		if proxyURL, err := url.Parse(resolved.Server); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// HttpScrapePipeline performs a raw HTTP fetch with randomized browser-like
// headers, proxy, redirect following and charset detection (spec.md §4.6).
type HttpScrapePipeline struct {
	Env proxyresolve.Env
}

// NewHttpScrapePipeline constructs a pipeline consulting env as the
// environment-level proxy fallback.
func NewHttpScrapePipeline(env proxyresolve.Env) *HttpScrapePipeline {
	return &HttpScrapePipeline{Env: env}
}

// Run executes the HTTP fetch described in spec.md §4.6 and returns a
// fully assembled SuccessResponse, folding any transport failure into
// pageStatusCode=0/pageError rather than returning a Go error.
func (h *HttpScrapePipeline) Run(ctx context.Context, req *models.ScrapeRequest) *models.SuccessResponse {
	start := time.Now()
	resolved := proxyresolve.Resolve(req, h.Env)

	timeout := time.Duration(req.Timeout) * time.Millisecond
	if req.Timeout == 0 || timeout > 15*time.Second {
		timeout = 15 * time.Second
	}

	client := newFingerprintedClient(timeout, resolved, req.SkipTLSVerification)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return transportFailure(req.URL, start, fmt.Sprintf("invalid request: %v", err))
	}

	applyBaselineHeaders(httpReq, req)
	if resolved.Username != "" {
		httpReq.Header.Set("Proxy-Authorization", basicAuth(resolved.Username, resolved.Password))
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return transportFailure(req.URL, start, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportFailure(req.URL, start, fmt.Sprintf("failed to read response body: %v", err))
	}

	body = decodeCharset(resp.Header.Get("Content-Type"), body)
	headers := flattenHeaders(resp.Header)

	sr := &models.SuccessResponse{
		TimeTaken:       time.Since(start).Seconds() * 1000,
		Content:         string(body),
		URL:             req.URL, // redirect target intentionally not surfaced (spec.md §4.6, §9)
		PageStatusCode:  resp.StatusCode,
		ResponseHeaders: headers,
	}

	result := blockdetect.Detect(resp.StatusCode, sr.Content, headers)
	if result.IsBlocked && result.Confidence >= 0.5 {
		sr.BlockedReason = result.Reason
	}
	return sr
}

func transportFailure(url string, start time.Time, message string) *models.SuccessResponse {
	return &models.SuccessResponse{
		TimeTaken: time.Since(start).Seconds() * 1000,
		Content:   "",
		URL:       url,
		PageError: message,
	}
}

func basicAuth(username, password string) string {
	auth := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(auth))
}

// applyBaselineHeaders sets the fixed 13-header browser-like baseline
// (spec.md §4.6), then merges in a random UA and the request's own
// headers (which win on conflict).
func applyBaselineHeaders(httpReq *http.Request, req *models.ScrapeRequest) {
	ua := req.UserAgent
	if ua == "" {
		ua = userAgentPool[rand.Intn(len(userAgentPool))]
	}
	httpReq.Header.Set("User-Agent", ua)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Pragma", "no-cache")
	httpReq.Header.Set("Sec-Ch-Ua", `"Chromium";v="124", "Google Chrome";v="124", "Not-A.Brand";v="99"`)
	httpReq.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	httpReq.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	httpReq.Header.Set("Sec-Ch-Ua-Full-Version-List", `"Chromium";v="124.0.0.0"`)
	httpReq.Header.Set("Sec-Fetch-Dest", "document")
	httpReq.Header.Set("Sec-Fetch-Mode", "navigate")
	httpReq.Header.Set("Sec-Fetch-Site", "none")
	httpReq.Header.Set("Upgrade-Insecure-Requests", "1")

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// decodeCharset re-decodes body to UTF-8 when Content-Type names a
// non-utf-8 charset, falling back to the original bytes on failure
// (spec.md §4.6).
func decodeCharset(contentType string, body []byte) []byte {
	idx := strings.Index(strings.ToLower(contentType), "charset=")
	if idx == -1 {
		return body
	}
	charset := strings.Trim(strings.TrimSpace(contentType[idx+len("charset="):]), `"'`)
	if semi := strings.IndexByte(charset, ';'); semi != -1 {
		charset = charset[:semi]
	}
	if strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") || charset == "" {
		return body
	}

	e, ok := charsetLookup(charset)
	if !ok {
		return body
	}
	decoded, err := e.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

func charsetLookup(name string) (encoding.Encoding, bool) {
	e, _, ok := htmlcharset.Lookup(name)
	return e, ok
}
