package pmscanauth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/pmscanauth/internal/audit"
	"github.com/MrEthical07/pmscanauth/internal/rate"
	"github.com/MrEthical07/pmscanauth/internal/stores"
	"github.com/MrEthical07/pmscanauth/internal/tokens"
	"github.com/MrEthical07/pmscanauth/jwt"
	"github.com/MrEthical07/pmscanauth/password"
)

// timingPadPassword is hashed once per engine to give unknown-email logins a
// digest to verify against.
const timingPadPassword = "pmscanauth-unknown-account"

// Builder assembles an Engine. A Builder is single use: configure it during
// initialization, call Build once, and discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	tokenStore TokenStore
	directory  UserDirectory
	hasher     PasswordHasher
	mailer     Mailer
	auditSink  AuditSink
	logger     *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client used for token records and throttling
// counters. Unless WithTokenStore is also given, records are written through
// a RedisTokenStore on this client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTokenStore overrides the record store.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokenStore = store
	return b
}

func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

// WithPasswordHasher overrides the default argon2id/bcrypt hasher. If the
// hasher also implements NeedsUpgrade(digest) (bool, error), digests are
// upgraded on login when Password.UpgradeOnLogin is set.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the audit destination. Audit.Enabled must also be set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for engine diagnostics. Defaults to
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
//
// Build fails when the config is invalid, when neither a Redis client nor a
// token store was given, when throttling is configured without Redis, or
// when the user directory or mailer is missing.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		if b.tokenStore == nil {
			return nil, errors.New("redis client or token store required")
		}
		if cfg.Security.MaxLoginAttempts > 0 || cfg.PasswordReset.MaxRequestsPerEmail > 0 {
			return nil, errors.New("throttling requires redis client")
		}
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	// -------- SIGNER --------
	signer, err := jwt.NewSigner(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		ResetTTL:      cfg.JWT.ResetTTL,
	})
	if err != nil {
		return nil, err
	}

	// -------- RECORD STORE --------
	store := b.tokenStore
	if store == nil {
		store = stores.NewRedisTokenStore(b.redis, cfg.Store.RedisPrefix)
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		h, err := password.NewHasher(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = h
	}
	timingDigest, err := hasher.Hash(timingPadPassword)
	if err != nil {
		return nil, fmt.Errorf("hash timing digest: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		signer:       signer,
		refresh:      tokens.NewRefreshManager(signer, store, cfg.JWT.RefreshTTL),
		reset:        tokens.NewResetManager(signer, store, cfg.JWT.ResetTTL),
		directory:    b.directory,
		hasher:       hasher,
		timingDigest: timingDigest,
		mailer:       b.mailer,
		logger:       logger,
		metrics:      NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	if b.redis != nil && (cfg.Security.MaxLoginAttempts > 0 || cfg.PasswordReset.MaxRequestsPerEmail > 0) {
		engine.limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:   cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:   cfg.Security.MaxLoginAttempts,
			LoginCooldown:      cfg.Security.LoginCooldown,
			MaxForgotRequests:  cfg.PasswordReset.MaxRequestsPerEmail,
			ForgotPasswordSpan: cfg.PasswordReset.RequestWindow,
		})
	}

	b.built = true

	return engine, nil
}
