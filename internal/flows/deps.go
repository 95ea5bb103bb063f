package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/pmscanauth/internal/tokens"
	"github.com/MrEthical07/pmscanauth/jwt"
)

// User is the directory view flows operate on.
type User struct {
	ID             int64
	Email          string
	PasswordDigest string
}

// RevocableTokens is the record-backed token contract shared by the refresh
// and reset managers.
type RevocableTokens interface {
	Mint(userID int64) (tokens.Issued, error)
	Persist(ctx context.Context, issued tokens.Issued) error
	Issue(ctx context.Context, userID int64) (tokens.Issued, error)
	Lookup(ctx context.Context, tokenID string) (tokens.Record, bool, error)
	Revoke(ctx context.Context, tokenID string) (bool, error)
	Matches(rec tokens.Record, token string) bool
}

// TokenVerifier checks and decodes signed tokens.
type TokenVerifier interface {
	Verify(token string, purpose jwt.Purpose) (*jwt.Claims, error)
	Decode(token string) (*jwt.Claims, error)
}

// Directory resolves users. IsNotFound separates an absent user from an
// unreachable directory.
type Directory struct {
	FindByEmail      func(ctx context.Context, email string) (User, error)
	FindByID         func(ctx context.Context, id int64) (User, error)
	UpdateCredential func(ctx context.Context, id int64, digest string) error
	IsNotFound       func(error) bool
}

// Deps groups the flow dependency sets. The root engine builds this once and
// delegates each public method to the matching Run function.
type Deps struct {
	Login          LoginDeps
	Refresh        RefreshDeps
	Logout         LogoutDeps
	ForgotPassword ForgotPasswordDeps
	ResetPassword  ResetPasswordDeps
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
