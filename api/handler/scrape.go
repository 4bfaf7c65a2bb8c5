package handler

import (
	"context"
	"encoding/json"
	"net/http"
	nurl "net/url"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapeworker/jobs"
	"github.com/use-agent/scrapeworker/models"
)

// Scrape returns a handler for POST /v1/scrape (spec.md §6).
//
// Flow:
//  1. Parse & validate the request body; 400 on schema failure.
//  2. Apply defaults, create the job.
//  3. instantReturn=true → start async, reply 202 immediately.
//     Otherwise run synchronously and reply 200/500.
func Scrape(mgr *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		dec := json.NewDecoder(c.Request.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "request failed schema validation",
				"details": []models.FieldError{
					{Path: "body", Message: err.Error()},
				},
			})
			return
		}
		if msg := validateURL(req.URL); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "request failed schema validation",
				"details": []models.FieldError{
					{Path: "url", Message: msg},
				},
			})
			return
		}
		req.Defaults()

		job := mgr.CreateJob(req)

		if req.InstantReturn {
			// net/http cancels the request's Context() the instant ServeHTTP
			// returns, which happens microseconds after this handler replies
			// 202 — long before a real scrape finishes. Detach so the
			// backgrounded job isn't canceled along with the request.
			mgr.StartJobAsync(context.WithoutCancel(c.Request.Context()), job)
			c.JSON(http.StatusAccepted, models.JobStatusResponse{JobID: job.ID, Processing: true})
			return
		}

		result, errDetail := mgr.ExecuteJob(c.Request.Context(), job)
		if errDetail != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: errDetail.Message})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// validateURL reports a validation message for a missing or malformed url,
// or "" if it is an absolute http(s) URL (spec.md §8, scenario 7).
func validateURL(raw string) string {
	if raw == "" {
		return "url is required"
	}
	parsed, err := nurl.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "url must be an absolute http(s) URL"
	}
	return ""
}
