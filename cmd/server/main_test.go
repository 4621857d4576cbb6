package main

import (
	"testing"

	"hielitos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := map[string]config.Config{
		"short secret":   {AuthSecret: "short", SeedAdminPassword: "s3cure-pass", LoginRateLimit: "5-M"},
		"short password": {AuthSecret: "0123456789abcdef0123456789abcdef", DatabaseURL: "postgres://localhost/hielitos", SeedAdminPassword: "admin", LoginRateLimit: "5-M"},
		"bad rate":       {AuthSecret: "0123456789abcdef0123456789abcdef", SeedAdminPassword: "s3cure-pass", LoginRateLimit: "five per minute"},
	}
	for name, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("%s: expected config to be rejected", name)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:        "0123456789abcdef0123456789abcdef",
		SeedAdminPassword: "s3cure-pass",
		LoginRateLimit:    "5-M",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigAllowsDevAdminInMemory(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:        "0123456789abcdef0123456789abcdef",
		SeedAdminPassword: "admin",
		LoginRateLimit:    "5-M",
	})
	if err != nil {
		t.Fatalf("expected in-memory dev config to pass, got %v", err)
	}
}
