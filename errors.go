package pmscanauth

import (
	"errors"

	"github.com/MrEthical07/pmscanauth/internal/stores"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken is returned for any refresh token that fails
	// verification, has no live record, or does not match its record.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrMissingRefreshToken is returned when no refresh token was presented.
	ErrMissingRefreshToken = errors.New("missing refresh token")
	// ErrInvalidOrExpiredResetToken is the uniform reset-confirm failure.
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	// ErrInvalidResetToken means the reset record exists but belongs to a
	// different token string.
	ErrInvalidResetToken = errors.New("invalid reset token")
	// ErrUserNotFound is returned when a token outlives its user. Directory
	// implementations also return it (wrapped or bare) for absent users.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized is returned by Authenticate for any unusable access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLoginRateLimited is returned when the login budget is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrPasswordPolicy is returned for passwords that violate the account policy.
	ErrPasswordPolicy = errors.New("password does not meet policy")

	// ErrStoreUnavailable wraps token store transport failures.
	ErrStoreUnavailable = stores.ErrStoreUnavailable
	// ErrTokenRecordNotFound is what TokenStore.Get returns for absent keys.
	ErrTokenRecordNotFound = stores.ErrRecordNotFound
	// ErrDirectoryUnavailable wraps user directory failures other than absence.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	// ErrEngineNotReady is returned by methods on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not ready")
)
