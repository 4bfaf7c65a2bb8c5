package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Browser.MaxConcurrentPages != 10 {
		t.Errorf("Browser.MaxConcurrentPages = %d, want 10", cfg.Browser.MaxConcurrentPages)
	}
	if !cfg.Browser.Headless || !cfg.Browser.StealthEnabled || !cfg.Browser.BlockMedia {
		t.Errorf("expected headless/stealth/blockMedia to default true, got %+v", cfg.Browser)
	}
	if cfg.Job.TTLMs != 600000 || cfg.Job.CleanupIntervalMs != 60000 {
		t.Errorf("unexpected job defaults: %+v", cfg.Job)
	}
	if cfg.Auth.Token != "" {
		t.Errorf("expected auth disabled by default, got token %q", cfg.Auth.Token)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENT_PAGES", "4")
	t.Setenv("AUTH_TOKEN", "secret")
	t.Setenv("HEADLESS", "false")

	cfg := Load()
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Browser.MaxConcurrentPages != 4 {
		t.Errorf("Browser.MaxConcurrentPages = %d, want 4", cfg.Browser.MaxConcurrentPages)
	}
	if cfg.Auth.Token != "secret" {
		t.Errorf("Auth.Token = %q, want secret", cfg.Auth.Token)
	}
	if cfg.Browser.Headless {
		t.Errorf("expected Headless=false override to apply")
	}
}
