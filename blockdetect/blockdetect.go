// Package blockdetect classifies an HTTP response as an anti-bot
// intervention or a genuine page. Detect is pure: no I/O, no clock, no
// global state, so it is trivially fuzzable and unit-testable.
package blockdetect

import (
	"strings"

	"github.com/use-agent/scrapeworker/models"
	"github.com/use-agent/scrapeworker/simhash"
)

var captchaPatterns = []string{
	"captcha", "recaptcha", "hcaptcha", "cf-turnstile", "challenge-form",
	"challenge-running", "g-recaptcha", "h-captcha", "arkose", "funcaptcha",
}

var botPatterns = []string{
	"verify you are human", "access denied", "suspicious activity",
	"unusual traffic", "bot detected", "browser check",
	"please enable javascript", "automated access", "automated request",
	"are you a robot", "security check", "human verification",
	"unusual activity", "bot protection", "detected unusual",
	"robot check", "not a robot", "abnormal traffic",
	"automated queries", "blocked due to", "requests from your",
	"pardon our interruption", "enable cookies and reload",
}

var cloudflarePatterns = []string{
	"cloudflare", "cf-ray", "checking your browser", "just a moment",
	"please wait while we verify", "ddos protection", "ray id:",
	"performance & security by cloudflare", "__cf_bm", "cf_chl_opt",
}

var rateLimitPatterns = []string{
	"rate limit", "rate-limit", "ratelimit", "too many requests",
	"slow down", "request limit exceeded", "quota exceeded", "throttled",
}

var ipBlockPatterns = []string{
	"ip blocked", "ip banned", "your ip", "ip address", "blocked ip",
	"banned ip", "forbidden", "403 forbidden",
}

func containsAny(body string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(body, p) {
			return true
		}
	}
	return false
}

// Detect implements the precedence table: the first matching rule
// determines the result. status/body/headers mirror spec.md §4.1 exactly;
// Fingerprint is an additive diagnostic field that never feeds back into
// the decision (SPEC_FULL.md §C.2).
func Detect(status int, body string, headers map[string]string) models.BlockDetectionResult {
	lower := strings.ToLower(body)
	fp := fingerprint(body)

	if hasRateLimitHeaders(headers) {
		return blocked(models.BlockedRateLimited, 0.95, fp)
	}
	if status == 429 {
		return blocked(models.BlockedRateLimited, 0.95, fp)
	}
	if status == 403 {
		switch {
		case containsAny(lower, captchaPatterns):
			return blocked(models.BlockedCaptcha, 0.9, fp)
		case containsAny(lower, botPatterns):
			return blocked(models.BlockedRobotDetected, 0.85, fp)
		default:
			return blocked(models.BlockedIPBlock, 0.8, fp)
		}
	}
	if status == 503 {
		if containsAny(lower, cloudflarePatterns) {
			return blocked(models.BlockedRobotDetected, 0.85, fp)
		}
		return blocked(models.BlockedIPBlock, 0.6, fp)
	}
	if status == 401 {
		if containsAny(lower, ipBlockPatterns) {
			return blocked(models.BlockedIPBlock, 0.7, fp)
		}
		return notBlocked()
	}
	if containsAny(lower, captchaPatterns) {
		if len(body) < 50000 {
			return blocked(models.BlockedCaptcha, 0.9, fp)
		}
		return blocked(models.BlockedCaptcha, 0.6, fp)
	}
	if containsAny(lower, cloudflarePatterns) {
		if len(body) < 15000 {
			return blocked(models.BlockedRobotDetected, 0.85, fp)
		}
		return notBlocked()
	}
	if containsAny(lower, botPatterns) {
		if len(body) < 20000 {
			return blocked(models.BlockedRobotDetected, 0.8, fp)
		}
		return blocked(models.BlockedRobotDetected, 0.5, fp)
	}
	if containsAny(lower, rateLimitPatterns) {
		return blocked(models.BlockedRateLimited, 0.75, fp)
	}
	if containsAny(lower, ipBlockPatterns) {
		if len(body) < 20000 {
			return blocked(models.BlockedIPBlock, 0.7, fp)
		}
		return blocked(models.BlockedIPBlock, 0.4, fp)
	}
	if status == 200 && strings.TrimSpace(body) == "" {
		return blocked(models.BlockedUnknown, 0.3, fp)
	}
	return notBlocked()
}

func hasRateLimitHeaders(headers map[string]string) bool {
	for k, v := range headers {
		lk := strings.ToLower(k)
		switch lk {
		case "retry-after":
			if v != "" {
				return true
			}
		case "x-ratelimit-remaining", "x-rate-limit-remaining":
			if v == "0" {
				return true
			}
		}
	}
	return false
}

func fingerprint(body string) uint64 {
	if body == "" {
		return 0
	}
	return simhash.Fingerprint(body)
}

func blocked(reason models.BlockedReason, confidence float64, fp uint64) models.BlockDetectionResult {
	return models.BlockDetectionResult{
		IsBlocked:   true,
		Reason:      reason,
		Confidence:  confidence,
		Fingerprint: fp,
	}
}

func notBlocked() models.BlockDetectionResult {
	return models.BlockDetectionResult{IsBlocked: false, Confidence: 0}
}

// ShouldRetryWithStealth implements the caller policy from spec.md §4.1:
// retry iff blocked AND (confidence >= 0.7, OR reason is captcha/robot with
// confidence >= 0.5).
func ShouldRetryWithStealth(r models.BlockDetectionResult) bool {
	if !r.IsBlocked {
		return false
	}
	if r.Confidence >= 0.7 {
		return true
	}
	if (r.Reason == models.BlockedCaptcha || r.Reason == models.BlockedRobotDetected) && r.Confidence >= 0.5 {
		return true
	}
	return false
}
