package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL    = flag.String("api-url", "http://localhost:3000", "scrapeworker API base URL")
	authToken = flag.String("auth-token", "", "bearer token for authenticated requests")
	engine    = flag.String("engine", "", "engine override: chrome-cdp, playwright, or tlsclient (default: server default)")
	runs      = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output    = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering a few site shapes.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"Complex", "https://github.com/go-rod/rod"},
}

// --- Request / Response types (mirror models.ScrapeRequest / SuccessResponse) ---

type scrapeRequest struct {
	URL          string `json:"url"`
	Engine       string `json:"engine,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty"`
	Timeout      int    `json:"timeout,omitempty"`
}

type scrapeResponse struct {
	TimeTaken      float64 `json:"timeTaken"`
	Content        string  `json:"content"`
	CleanedContent string  `json:"cleanedContent"`
	URL            string  `json:"url"`
	PageStatusCode int     `json:"pageStatusCode"`
	PageError      string  `json:"pageError"`
	BlockedReason  string  `json:"blockedReason"`
	CacheHit       bool    `json:"cacheHit"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Benchmark result types ---

type runResult struct {
	Run            int     `json:"run"`
	TimeTakenMs    float64 `json:"time_taken_ms"`
	ContentLength  int     `json:"content_length"`
	StatusCode     int     `json:"status_code"`
	BlockedReason  string  `json:"blocked_reason,omitempty"`
	CacheHit       bool    `json:"cache_hit"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
}

type urlAverages struct {
	TimeTakenMs   float64 `json:"time_taken_ms"`
	ContentLength float64 `json:"content_length"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== scrapeworker Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure scrapeworker is running\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, t := range testURLs {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %.0fms  status=%d\n", rr.TimeTakenMs, rr.StatusCode)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(url string, run int) runResult {
	rr := runResult{Run: run}

	reqBody := scrapeRequest{
		URL:          url,
		Engine:       *engine,
		OutputFormat: "markdown",
		Timeout:      60000,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/v1/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *authToken != "" {
		req.Header.Set("Authorization", "Bearer "+*authToken)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var er errorResponse
		json.NewDecoder(resp.Body).Decode(&er)
		rr.Error = er.Error
		if rr.Error == "" {
			rr.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return rr
	}

	var sr scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = true
	rr.StatusCode = sr.PageStatusCode
	rr.TimeTakenMs = sr.TimeTaken
	rr.CacheHit = sr.CacheHit
	rr.BlockedReason = sr.BlockedReason
	content := sr.CleanedContent
	if content == "" {
		content = sr.Content
	}
	rr.ContentLength = len(content)

	if sr.PageError != "" {
		rr.Error = sr.PageError
	}

	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var successCount int
	var avg urlAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TimeTakenMs += r.TimeTakenMs
		avg.ContentLength += float64(r.ContentLength)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TimeTakenMs /= n
	avg.ContentLength /= n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 70))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tContent Len\tStatus\n")
	fmt.Fprintf(w, "───\t───────────\t───────────\t──────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		status := dominantStatus(r.Runs)

		fmt.Fprintf(w, "%s\t%.0fms\t%s\t%d\n",
			truncateURL(r.URL, 40),
			r.Averages.TimeTakenMs,
			formatInt(int(r.Averages.ContentLength)),
			status,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 70))
}

func dominantStatus(runs []runResult) int {
	counts := map[int]int{}
	for _, r := range runs {
		if r.Success {
			counts[r.StatusCode]++
		}
	}
	best, bestCount := 0, 0
	for code, count := range counts {
		if count > bestCount {
			best = code
			bestCount = count
		}
	}
	return best
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
