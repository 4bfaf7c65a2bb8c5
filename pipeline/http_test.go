package pipeline

import (
	"net/http"
	"testing"

	"github.com/use-agent/scrapeworker/models"
)

func TestDecodeCharset_NoCharsetReturnsBodyUnchanged(t *testing.T) {
	body := []byte("<html>hello</html>")
	got := decodeCharset("text/html", body)
	if string(got) != string(body) {
		t.Fatalf("body was modified without a charset directive")
	}
}

func TestDecodeCharset_UTF8IsNoOp(t *testing.T) {
	body := []byte("<html>hello</html>")
	got := decodeCharset("text/html; charset=utf-8", body)
	if string(got) != string(body) {
		t.Fatalf("utf-8 body should pass through unchanged")
	}
}

func TestDecodeCharset_UnknownCharsetFallsBackToOriginal(t *testing.T) {
	body := []byte("hello")
	got := decodeCharset("text/html; charset=not-a-real-charset", body)
	if string(got) != string(body) {
		t.Fatalf("unknown charset should fall back to original bytes")
	}
}

func TestApplyBaselineHeaders_SetsBrowserLikeHeaders(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	applyBaselineHeaders(req, &models.ScrapeRequest{})

	required := []string{
		"User-Agent", "Accept", "Accept-Language", "Accept-Encoding",
		"Cache-Control", "Pragma", "Sec-Ch-Ua", "Sec-Ch-Ua-Mobile",
		"Sec-Ch-Ua-Platform", "Sec-Fetch-Dest", "Sec-Fetch-Mode",
		"Sec-Fetch-Site", "Upgrade-Insecure-Requests",
	}
	for _, h := range required {
		if req.Header.Get(h) == "" {
			t.Errorf("missing expected baseline header %q", h)
		}
	}
}

func TestApplyBaselineHeaders_CustomHeadersWin(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	applyBaselineHeaders(req, &models.ScrapeRequest{
		UserAgent: "custom-ua",
		Headers:   map[string]string{"Accept-Language": "fr-FR"},
	})

	if req.Header.Get("User-Agent") != "custom-ua" {
		t.Errorf("explicit userAgent should win over the random pool")
	}
	if req.Header.Get("Accept-Language") != "fr-FR" {
		t.Errorf("request headers should override the baseline")
	}
}
