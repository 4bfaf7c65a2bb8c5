package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/use-agent/scrapeworker/config"
	"github.com/use-agent/scrapeworker/jobs"
	"github.com/use-agent/scrapeworker/models"
)

type stubRouter struct{}

func (stubRouter) Run(_ context.Context, _ *models.ScrapeRequest) (*models.SuccessResponse, error) {
	return &models.SuccessResponse{Content: "ok", PageStatusCode: 200}, nil
}

func newTestRouter(t *testing.T, cfg *config.Config) (*jobs.Manager, http.Handler) {
	t.Helper()
	mgr := jobs.New(stubRouter{}, nil, config.JobConfig{TTLMs: 600000, CleanupIntervalMs: 3600000})
	t.Cleanup(mgr.Close)
	return mgr, NewRouter(mgr, cfg)
}

func TestNewRouter_HealthEndpointsBypassAuth(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{Token: "secret"}}
	_, handler := newTestRouter(t, cfg)

	for _, path := range []string{"/healthz", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200 even without auth", path, w.Code)
		}
	}
}

func TestNewRouter_ScrapeRequiresAuthWhenTokenSet(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{Token: "secret"}}
	_, handler := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/v1/scrape", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestNewRouter_PostScrapeRedirectsToV1(t *testing.T) {
	cfg := &config.Config{}
	_, handler := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/scrape", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want 307", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/v1/scrape" {
		t.Errorf("Location = %q, want /v1/scrape", loc)
	}
}
