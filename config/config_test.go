package config

import (
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeOAuth {
		t.Fatalf("expected oauth mode by default, got %q", cfg.Auth.Mode)
	}
	if cfg.Auth.ClaimsTimeout != 5*time.Second || cfg.Auth.DirectoryTimeout != 3*time.Second {
		t.Fatalf("unexpected timeouts: %v / %v", cfg.Auth.ClaimsTimeout, cfg.Auth.DirectoryTimeout)
	}
	if cfg.Auth.OIDC.RolesClaimPath != "realm_access.roles" {
		t.Fatalf("unexpected roles claim path %q", cfg.Auth.OIDC.RolesClaimPath)
	}
	if !reflect.DeepEqual(cfg.Auth.OIDC.Scopes, []string{"openid", "profile", "email"}) {
		t.Fatalf("unexpected scopes %v", cfg.Auth.OIDC.Scopes)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTP.Addr)
	}
	if cfg.ClaimsCacheEnabled() {
		t.Fatal("claims cache must be off by default")
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "MOCK")
	t.Setenv("OIDC_BASE_URL", "https://sso.example.com/")
	t.Setenv("OIDC_REALM", "ops")
	t.Setenv("OIDC_CLIENT_ID", "console")
	t.Setenv("OIDC_CLIENT_SECRET", "super-secret")
	t.Setenv("OIDC_SCOPES", "openid email")
	t.Setenv("OIDC_ROLES_CLAIM_PATH", "groups")
	t.Setenv("DEV_AUTH_EMAIL", " dev@example.org ")
	t.Setenv("DEV_AUTH_ROLES", "admin;operator")
	t.Setenv("AUTH_CLAIMS_TIMEOUT", "2s")
	t.Setenv("AUTH_DIRECTORY_TIMEOUT", "-1s")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := AuthConfig{
		Mode: AuthModeMock,
		OIDC: OIDCConfig{
			BaseURL:        "https://sso.example.com",
			Realm:          "ops",
			ClientID:       "console",
			ClientSecret:   "super-secret",
			Scopes:         []string{"openid", "email"},
			RolesClaimPath: "groups",
		},
		DevAuth: DevAuthConfig{
			Email:    "dev@example.org",
			Username: "dev",
			Roles:    []string{"admin", "operator"},
		},
		ClaimsTimeout:    2 * time.Second,
		DirectoryTimeout: 3 * time.Second,
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestAuthMode_UnmarshalText(t *testing.T) {
	var m AuthMode
	if err := m.UnmarshalText([]byte("saml")); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if err := m.UnmarshalText([]byte(" OAuth ")); err != nil || m != AuthModeOAuth {
		t.Fatalf("expected oauth, got %q (%v)", m, err)
	}
}

func TestCacheConfig_Sanitize(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{name: "negative disables", in: -time.Second, want: 0},
		{name: "within bound kept", in: 30 * time.Second, want: 30 * time.Second},
		{name: "clamped to max", in: 10 * time.Minute, want: MaxClaimsCacheTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CacheConfig{ClaimsTTL: tt.in}
			c.Sanitize()
			if c.ClaimsTTL != tt.want {
				t.Fatalf("ClaimsTTL = %v, want %v", c.ClaimsTTL, tt.want)
			}
		})
	}
}

func TestAppConfig_ClaimsCacheEnabled(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CACHE_CLAIMS_TTL", "20s")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if !cfg.ClaimsCacheEnabled() {
		t.Fatal("expected claims cache to be enabled")
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	h := HTTPConfig{
		Addr:           " ",
		AllowedOrigins: []string{" https://console.example.com/ ", "", "http://localhost:3000"},
	}
	h.Sanitize()

	if h.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", h.Addr)
	}
	if h.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected default shutdown timeout, got %v", h.ShutdownTimeout)
	}
	want := []string{"https://console.example.com", "http://localhost:3000"}
	if !reflect.DeepEqual(h.AllowedOrigins, want) {
		t.Fatalf("origins = %v, want %v", h.AllowedOrigins, want)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}
	if cfg.Prefix != "opsconsole" {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
		Prefix:        ".ops.",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "ops" {
		t.Fatalf("expected prefix dots trimmed, got %q", cfg.Prefix)
	}
}

func TestObservabilityConfig_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		c := ObservabilityConfig{LogLevel: in}
		c.Sanitize()
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleConfig_Parse(t *testing.T) {
	t.Setenv("OPSCTL_SERVER_URL", "https://ops.example.com/")
	t.Setenv("OPSCTL_CREDENTIAL_DIR", "/tmp/opsctl-test")
	t.Setenv("SESSION_REFRESH_INTERVAL", "30s")
	t.Setenv("OIDC_CLIENT_ID", "opsctl")

	var cfg ConsoleConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.ServerURL != "https://ops.example.com" {
		t.Fatalf("unexpected server url %q", cfg.ServerURL)
	}
	if cfg.CredentialDir != "/tmp/opsctl-test" {
		t.Fatalf("unexpected credential dir %q", cfg.CredentialDir)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Fatalf("unexpected refresh interval %v", cfg.RefreshInterval)
	}
	if cfg.OIDC.ClientID != "opsctl" {
		t.Fatalf("unexpected client id %q", cfg.OIDC.ClientID)
	}
	if got := cfg.CallbackURL(); got != "http://127.0.0.1:8765/callback" {
		t.Fatalf("unexpected callback url %q", got)
	}
}

func TestConsoleConfig_SanitizeDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := ConsoleConfig{RefreshInterval: -time.Second}
	cfg.Sanitize()

	if cfg.RefreshInterval != time.Minute {
		t.Fatalf("expected default refresh interval, got %v", cfg.RefreshInterval)
	}
	if cfg.CredentialDir != filepath.Join(home, ".opsconsole") {
		t.Fatalf("unexpected credential dir %q", cfg.CredentialDir)
	}
	if cfg.LoginSurface != "/login" || cfg.CallbackAddr != "127.0.0.1:8765" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
