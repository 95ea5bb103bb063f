package pmscanauth

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// override fields; Build validates the result.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Security      SecurityConfig
	Store         StoreConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string
	// PrivateKey is the HMAC secret for hs256.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	KeyID      string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters for new digests.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// UpgradeOnLogin rehashes legacy or weaker digests after a successful login.
	UpgradeOnLogin bool
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls the reset mail and the enumeration delay.
type PasswordResetConfig struct {
	// URLTemplate must contain "{token}".
	URLTemplate string
	From        string
	Subject     string
	// MinEnumerationDelay and MaxEnumerationDelay bound the random wait on
	// unknown emails.
	MinEnumerationDelay time.Duration
	MaxEnumerationDelay time.Duration
	// MaxRequestsPerEmail limits reset mails per email per RequestWindow.
	// Zero disables the throttle.
	MaxRequestsPerEmail int
	RequestWindow       time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds optional hardening switches.
type SecurityConfig struct {
	// RotateRefreshOnUse revokes a refresh token when it is used and returns
	// a replacement. Off by default.
	RotateRefreshOnUse bool
	// MaxLoginAttempts is the failed-login budget per email per
	// LoginCooldown. Zero disables login throttling.
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	EnableIPThrottle bool
}

// StoreConfig controls Redis key layout.
type StoreConfig struct {
	// RedisPrefix is prepended to record keys as "<prefix>:". Empty by default.
	RedisPrefix string
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. JWT.PrivateKey must still be
// supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    10 * 24 * time.Hour,
			ResetTTL:      time.Hour,
			SigningMethod: "hs256",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			URLTemplate:         "http://localhost:3000/reset-password?token={token}",
			Subject:             "Password Reset",
			MinEnumerationDelay: 20 * time.Millisecond,
			MaxEnumerationDelay: 40 * time.Millisecond,
			RequestWindow:       time.Hour,
		},
		Security: SecurityConfig{
			LoginCooldown: 15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate checks internal consistency. It does not check key material
// beyond presence; the signer does that at Build.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 || c.JWT.ResetTTL <= 0 {
		return errors.New("JWT TTLs must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("JWT hs256 secret must be at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("JWT ed25519 requires a public key")
		}
	default:
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	}

	if !strings.Contains(c.PasswordReset.URLTemplate, "{token}") {
		return errors.New("PasswordReset URLTemplate must contain {token}")
	}
	if c.PasswordReset.MinEnumerationDelay < 0 || c.PasswordReset.MaxEnumerationDelay < c.PasswordReset.MinEnumerationDelay {
		return errors.New("PasswordReset enumeration delay range is invalid")
	}
	if c.PasswordReset.MaxRequestsPerEmail < 0 {
		return errors.New("PasswordReset MaxRequestsPerEmail must be >= 0")
	}
	if c.PasswordReset.MaxRequestsPerEmail > 0 && c.PasswordReset.RequestWindow <= 0 {
		return errors.New("PasswordReset RequestWindow must be > 0 when throttling")
	}

	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("Security MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0 {
		return errors.New("Security LoginCooldown must be > 0 when throttling")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics latency histograms require metrics to be enabled")
	}
	return nil
}
