package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm used by a Signer.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Purpose scopes a token to exactly one use.
type Purpose string

const (
	PurposeAccess  Purpose = "access"
	PurposeRefresh Purpose = "refresh"
	PurposeReset   Purpose = "reset"
)

// Valid reports whether p is one of the known purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeReset:
		return true
	}
	return false
}

var (
	// ErrInvalidToken is returned for malformed tokens and signature failures.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpired is returned for a signature-valid token past its exp.
	ErrExpired = errors.New("token expired")
	// ErrPurposeMismatch is returned when the purpose claim differs from the expected one.
	ErrPurposeMismatch = errors.New("token purpose mismatch")
)

// Config carries the key material and validation rules of a Signer.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for MethodHS256 or the Ed25519 private key
	// (raw or PEM) for MethodEd25519.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
	// MaxFutureIAT bounds how far in the future an iat may sit. Zero means 10m.
	MaxFutureIAT time.Duration
	KeyID        string
	VerifyKeys   map[string][]byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

// Payload is the caller-controlled part of a token.
type Payload struct {
	SubjectID int64
	TokenID   string
	Purpose   Purpose
	// Email is only embedded in access tokens.
	Email string
}

// Claims is the decoded form of a token.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	Email   string  `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID parses the sub claim.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject %q", ErrInvalidToken, c.Subject)
	}
	return id, nil
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	return c.ID
}

// Signer mints and verifies purpose-scoped tokens. It is safe for concurrent
// use once constructed.
type Signer struct {
	config Config
	now    func() time.Time
}

// NewSigner validates cfg and returns a ready Signer.
//
// NewSigner fails when the key material does not match the signing method,
// when a TTL is not positive, or when the leeway or future-iat bounds are out
// of range.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires a secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Signer{config: cfg, now: time.Now}, nil
}

// TTL returns the configured lifetime for tokens of purpose p.
func (s *Signer) TTL(p Purpose) time.Duration {
	switch p {
	case PurposeAccess:
		return s.config.AccessTTL
	case PurposeRefresh:
		return s.config.RefreshTTL
	case PurposeReset:
		return s.config.ResetTTL
	}
	return 0
}

// Sign mints a token for payload with iat=now and exp=now+ttl.
func (s *Signer) Sign(payload Payload, ttl time.Duration) (string, error) {
	if !payload.Purpose.Valid() {
		return "", fmt.Errorf("unknown token purpose %q", payload.Purpose)
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := s.now()
	claims := Claims{
		Purpose: payload.Purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(payload.SubjectID, 10),
			ID:        payload.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    s.config.Issuer,
		},
	}
	if payload.Purpose == PurposeAccess {
		claims.Email = payload.Email
	}
	if s.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.config.Audience}
	}

	token := jwt.NewWithClaims(s.getMethod(), claims)
	if s.config.KeyID != "" {
		token.Header["kid"] = s.config.KeyID
	}

	signKey, err := s.getSignKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(signKey)
}

// Verify checks signature, expiry, issuer, audience and purpose and returns
// the decoded claims.
//
// The returned error wraps ErrExpired, ErrPurposeMismatch or ErrInvalidToken.
func (s *Signer) Verify(tokenStr string, purpose Purpose) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		options = append(options, jwt.WithAudience(s.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(s.now().Add(s.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidToken)
	}
	if claims.Purpose != purpose {
		return nil, ErrPurposeMismatch
	}
	if _, err := claims.SubjectID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// Decode parses tokenStr without checking its signature or expiry.
//
// Only use the result for best-effort bookkeeping such as revoking a record
// by its token id; never for authorization.
func (s *Signer) Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *Signer) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != s.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(s.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := s.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return s.keyBytesToVerifyKey(key)
	}

	if s.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != s.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return s.getVerifyKey()
}

func (s *Signer) getMethod() jwt.SigningMethod {
	if s.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (s *Signer) getSignKey() (interface{}, error) {
	if s.config.SigningMethod == MethodHS256 {
		return s.config.PrivateKey, nil
	}
	return parseEdPrivateKey(s.config.PrivateKey)
}

func (s *Signer) getVerifyKey() (interface{}, error) {
	if s.config.SigningMethod == MethodHS256 {
		return s.config.PrivateKey, nil
	}
	return parseEdPublicKey(s.config.PublicKey)
}

func (s *Signer) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	if s.config.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
