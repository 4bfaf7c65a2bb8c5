package enrich

import (
	"strings"
	"testing"
)

func TestTransform_HTMLPassesThroughUnchanged(t *testing.T) {
	html := "<html><body><p>hi</p></body></html>"
	got, err := Transform(html, "https://example.com", "html")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got != html {
		t.Errorf("expected raw html to pass through unchanged")
	}
}

func TestTransform_TextUsesFallbackBelowMinLength(t *testing.T) {
	// Content too short for readability to consider it an article body;
	// the fallback returns the raw HTML as TextContent.
	html := "<p>hi</p>"
	got, err := Transform(html, "https://example.com", "text")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got != html {
		t.Errorf("got %q, want fallback raw html %q", got, html)
	}
}

func TestTransform_MarkdownOnInvalidURLFallsBackToRawHTML(t *testing.T) {
	html := strings.Repeat("word ", 20)
	got, err := Transform(html, "://not-a-valid-url", "markdown")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got == "" {
		t.Error("expected non-empty fallback output")
	}
}

func TestStripNoise_RemovesBoilerplateElements(t *testing.T) {
	html := `<html><body>
		<nav>site nav</nav>
		<script>track();</script>
		<article>` + strings.Repeat("real content ", 20) + `</article>
		<footer>copyright</footer>
	</body></html>`

	cleaned := stripNoise(html)
	if strings.Contains(cleaned, "site nav") || strings.Contains(cleaned, "track()") || strings.Contains(cleaned, "copyright") {
		t.Errorf("expected nav/script/footer stripped, got %q", cleaned)
	}
	if !strings.Contains(cleaned, "real content") {
		t.Errorf("expected article content preserved, got %q", cleaned)
	}
}

func TestStripNoise_MalformedHTMLStillProducesOutput(t *testing.T) {
	// goquery's parser is lenient and rarely errors, but stripNoise must
	// never panic or lose content on malformed input.
	html := "<<<not html>>>"
	if got := stripNoise(html); got == "" {
		t.Errorf("expected non-empty passthrough for malformed input, got empty")
	}
}
