package pmscanauth

import (
	"context"
	"time"
)

// UserRecord is the directory view of an account.
type UserRecord struct {
	ID             int64
	Email          string
	Name           string
	PasswordDigest string
}

// UserDirectory resolves accounts. FindByEmail and FindByID must report an
// absent user with an error matching ErrUserNotFound; any other error is
// treated as the directory being unavailable.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (UserRecord, error)
	FindByID(ctx context.Context, id int64) (UserRecord, error)
	UpdateCredential(ctx context.Context, id int64, digest string) error
}

// TokenStore is the key/value store revocable records live in. Get returns
// an error matching ErrTokenRecordNotFound for absent or expired keys, and
// Delete reports whether it removed anything.
type TokenStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// PasswordHasher produces and checks password digests.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) (bool, error)
}

// Mailer delivers plain-text email.
type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// LoginResult is returned by Login. RefreshToken is meant for an HttpOnly
// cookie and never for a response body.
type LoginResult struct {
	UserID         int64
	AccessToken    string
	RefreshToken   string
	RefreshTokenID string
}

// RefreshResult is returned by Refresh. RefreshToken is empty unless
// rotation is enabled.
type RefreshResult struct {
	UserID       int64
	AccessToken  string
	RefreshToken string
}

// ForgotPasswordResult is identical for known and unknown emails.
type ForgotPasswordResult struct {
	Message string
}

// ResetPasswordResult is returned by a successful ResetPassword.
type ResetPasswordResult struct {
	Message string
}

const (
	// ForgotPasswordMessage is returned by every ForgotPassword call.
	ForgotPasswordMessage = "If an account exists for this email, a password reset link has been sent."
	// ResetPasswordMessage is returned by a successful ResetPassword.
	ResetPasswordMessage = "Password has been reset successfully."
)
