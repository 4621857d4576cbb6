package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := FromEnv()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestFromEnvDefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DASHBOARD_CACHE_TTL_SECONDS", "-4")
	t.Setenv("LOGIN_RATE_LIMIT", "")
	t.Setenv("TIMEZONE", "America/Mexico_City")

	cfg := FromEnv()
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default port, got %s", cfg.Address())
	}
	if cfg.DashboardCacheTTLSeconds != 30 {
		t.Fatalf("expected invalid ttl to fall back to 30, got %d", cfg.DashboardCacheTTLSeconds)
	}
	if cfg.LoginRateLimit != "5-M" {
		t.Fatalf("expected default login rate, got %q", cfg.LoginRateLimit)
	}
	if cfg.Timezone != "America/Mexico_City" {
		t.Fatalf("expected timezone override, got %q", cfg.Timezone)
	}
}
