package pmscanauth

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "missing secret",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "secret shorter than 32 bytes",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "leeway too large",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "blank audience",
			mutate: func(c *Config) {
				c.JWT.Audience = "   "
			},
			wantValid: false,
		},
		{
			name: "access ttl not shorter than refresh",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = c.JWT.RefreshTTL
			},
			wantValid: false,
		},
		{
			name: "zero reset ttl",
			mutate: func(c *Config) {
				c.JWT.ResetTTL = 0
			},
			wantValid: false,
		},
		{
			name: "reset template without placeholder",
			mutate: func(c *Config) {
				c.PasswordReset.URLTemplate = "https://pmscan.test/reset"
			},
			wantValid: false,
		},
		{
			name: "inverted enumeration delay",
			mutate: func(c *Config) {
				c.PasswordReset.MinEnumerationDelay = 50 * time.Millisecond
				c.PasswordReset.MaxEnumerationDelay = 10 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "zero enumeration delay",
			mutate: func(c *Config) {
				c.PasswordReset.MinEnumerationDelay = 0
				c.PasswordReset.MaxEnumerationDelay = 0
			},
			wantValid: true,
		},
		{
			name: "reset throttle without window",
			mutate: func(c *Config) {
				c.PasswordReset.MaxRequestsPerEmail = 3
				c.PasswordReset.RequestWindow = 0
			},
			wantValid: false,
		},
		{
			name: "login throttle without cooldown",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 5
				c.Security.LoginCooldown = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "histograms without metrics",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.EnableLatencyHistograms = true
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.JWT.PrivateKey = testSecret
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.JWT.RefreshTTL != 240*time.Hour || cfg.JWT.ResetTTL != time.Hour {
		t.Fatalf("unexpected default TTLs: %+v", cfg.JWT)
	}
	if cfg.Security.RotateRefreshOnUse {
		t.Fatal("rotation must be off by default")
	}
	if cfg.PasswordReset.MinEnumerationDelay != 20*time.Millisecond || cfg.PasswordReset.MaxEnumerationDelay != 40*time.Millisecond {
		t.Fatalf("unexpected default enumeration delay: %v-%v", cfg.PasswordReset.MinEnumerationDelay, cfg.PasswordReset.MaxEnumerationDelay)
	}
}

func TestWithConfigCopiesKeyMaterial(t *testing.T) {
	cfg := DefaultConfig()
	secret := append([]byte(nil), testSecret...)
	cfg.JWT.PrivateKey = secret

	b := New().WithConfig(cfg)
	secret[0] = 'X'

	if b.config.JWT.PrivateKey[0] == 'X' {
		t.Fatal("builder config must not alias caller key bytes")
	}
}
