package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the scrapeworker API's ScrapeRequest, restricted to
// the fields an MCP caller plausibly wants to set.
type scrapeRequest struct {
	URL          string `json:"url"`
	OutputFormat string `json:"outputFormat,omitempty"`
	Engine       string `json:"engine,omitempty"`
}

// scrapeResponse mirrors the API's SuccessResponse/ErrorResponse union.
type scrapeResponse struct {
	Content        string `json:"content"`
	CleanedContent string `json:"cleanedContent"`
	URL            string `json:"url"`
	PageStatusCode int    `json:"pageStatusCode"`
	Error          string `json:"error"`
}

func main() {
	apiURL := os.Getenv("SCRAPEWORKER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	authToken := os.Getenv("SCRAPEWORKER_AUTH_TOKEN")

	s := server.NewMCPServer(
		"scrapeworker",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape",
		mcp.WithDescription("Scrape a web page and return its content. Uses a headless browser by default to render JavaScript-heavy pages."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithString("output_format",
			mcp.Description("Output format: 'html' (default), 'markdown', or 'text'"),
			mcp.Enum("html", "markdown", "text"),
		),
		mcp.WithString("engine",
			mcp.Description("Fetch engine: 'chrome-cdp' (default), 'playwright', or 'tlsclient'"),
			mcp.Enum("chrome-cdp", "playwright", "tlsclient"),
		),
	)
	s.AddTool(scrapeTool, handleScrape(apiURL, authToken))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleScrape(apiURL, authToken string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := scrapeRequest{
			URL:          url,
			OutputFormat: request.GetString("output_format", ""),
			Engine:       request.GetString("engine", ""),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/v1/scrape", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if authToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+authToken)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		if resp.StatusCode >= 400 {
			return mcp.NewToolResultError(fmt.Sprintf("scrape failed (%d): %s", resp.StatusCode, string(respBody))), nil
		}

		var scrapeResp scrapeResponse
		if err := json.Unmarshal(respBody, &scrapeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		content := scrapeResp.CleanedContent
		if content == "" {
			content = scrapeResp.Content
		}
		result := fmt.Sprintf("URL: %s\nStatus: %d\n\n%s", scrapeResp.URL, scrapeResp.PageStatusCode, content)
		return mcp.NewToolResultText(result), nil
	}
}
