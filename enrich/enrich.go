// Package enrich converts raw page content into markdown or plain text when
// a request's outputFormat asks for it (SPEC_FULL.md §C.1). It is purely
// additive: html output never touches this package. Grounded on the
// teacher's cleaner/readability.go, cleaner/markdown.go, and
// cleaner/filter.go (the goquery-based selector removal, here narrowed to a
// fixed boilerplate deny-list instead of request-controlled selectors).
package enrich

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const minContentLength = 50

// noiseSelectors are stripped from the document before readability
// extraction runs: chrome that never belongs in cleaned content regardless
// of how a given page structures its markup.
var noiseSelectors = []string{
	"script", "style", "noscript", "iframe", "nav", "footer", "form",
	"aside", "[role=navigation]", "[role=banner]", "[role=contentinfo]",
}

var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// Transform produces the CleanedContent for a request whose outputFormat is
// "markdown" or "text"; "html" (the default) never calls this. On any
// extraction failure it falls back to the raw HTML so a scrape never fails
// solely because enrichment choked.
func Transform(rawHTML, sourceURL, outputFormat string) (string, error) {
	article := extractArticle(rawHTML, sourceURL)

	switch outputFormat {
	case "text":
		return article.TextContent, nil
	case "markdown":
		md, err := markdownConverter.ConvertString(article.Content, converter.WithDomain(domainOf(sourceURL)))
		if err != nil {
			slog.Warn("markdown conversion failed, falling back to plain text", "url", sourceURL, "error", err)
			return article.TextContent, nil
		}
		return md, nil
	default:
		return rawHTML, nil
	}
}

func extractArticle(rawHTML, sourceURL string) readability.Article {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, falling back to raw HTML", "url", sourceURL, "error", err)
		return fallbackArticle(rawHTML)
	}

	cleanedHTML := stripNoise(rawHTML)

	article, err := readability.FromReader(strings.NewReader(cleanedHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, falling back to raw HTML", "url", sourceURL, "error", err)
		return fallbackArticle(rawHTML)
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Warn("readability: extracted content too short, falling back to raw HTML", "url", sourceURL, "length", len(article.TextContent))
		return fallbackArticle(rawHTML)
	}
	return article
}

// stripNoise removes boilerplate chrome (scripts, styles, nav, footers,
// forms, iframes, ARIA navigation/banner/contentinfo landmarks) via
// CSS selectors before readability gets a pass at the document. Falls back
// to the input unchanged if it doesn't parse as HTML.
func stripNoise(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	for _, selector := range noiseSelectors {
		doc.Find(selector).Remove()
	}
	cleaned, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return cleaned
}

func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{Content: rawHTML, TextContent: rawHTML}
}

func domainOf(sourceURL string) string {
	u, err := nurl.Parse(sourceURL)
	if err != nil {
		return ""
	}
	return u.Host
}
