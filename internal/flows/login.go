package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/pmscanauth/internal/rate"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLimiterUnavailable
	LoginFailureUserNotFound
	LoginFailureDirectory
	LoginFailurePasswordMismatch
	LoginFailureVerify
	LoginFailureIssueAccess
	LoginFailureIssueRefresh
)

// LoginResult carries the issued pair or failure metadata.
type LoginResult struct {
	Failure        LoginFailureKind
	Err            error
	UserID         int64
	Email          string
	AccessToken    string
	RefreshToken   string
	RefreshTokenID string
	Upgraded       bool
}

// LoginLimiter is satisfied by *rate.Limiter.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, email, ip string) error
	IncrementLogin(ctx context.Context, email, ip string) error
	ResetLogin(ctx context.Context, email string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Directory           Directory
	Limiter             LoginLimiter
	ClientIPFromContext func(context.Context) string
	VerifyPassword      func(plain, digest string) (bool, error)
	// TimingDigest is verified against when the email is unknown so both
	// branches pay for one hash.
	TimingDigest        string
	NeedsUpgrade        func(digest string) (bool, error)
	HashPassword        func(string) (string, error)
	UpgradeOnLogin      bool
	IssueAccessToken    func(User) (string, error)
	Refresh             RevocableTokens
	Verifier            TokenVerifier
	Warn                func(string, ...any)
}

// RunLogin authenticates email/password and issues an access token plus a
// record-backed refresh token. Unknown email and wrong password produce
// distinct kinds here; the caller collapses them into one public error.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err, Email: email}
			}
			return LoginResult{Failure: LoginFailureLimiterUnavailable, Err: err, Email: email}
		}
	}

	user, err := deps.Directory.FindByEmail(ctx, email)
	if err != nil {
		if deps.Directory.IsNotFound(err) {
			if deps.TimingDigest != "" {
				_, _ = deps.VerifyPassword(password, deps.TimingDigest)
			}
			recordLoginFailure(ctx, deps, email, ip)
			return LoginResult{Failure: LoginFailureUserNotFound, Err: err, Email: email}
		}
		return LoginResult{Failure: LoginFailureDirectory, Err: err, Email: email}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordDigest)
	if err != nil {
		recordLoginFailure(ctx, deps, email, ip)
		return LoginResult{Failure: LoginFailureVerify, Err: err, UserID: user.ID, Email: email}
	}
	if !ok {
		recordLoginFailure(ctx, deps, email, ip)
		return LoginResult{Failure: LoginFailurePasswordMismatch, UserID: user.ID, Email: email}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, email); err != nil {
			warn(deps.Warn, "pmscanauth: login limiter reset failed", "error", err)
		}
	}

	upgraded := upgradeDigest(ctx, deps, user, password)

	access, err := deps.IssueAccessToken(user)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueAccess, Err: err, UserID: user.ID, Email: email}
	}

	issued, err := deps.Refresh.Issue(ctx, user.ID)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssueRefresh, Err: err, UserID: user.ID, Email: email}
	}

	// Telemetry carries the jti decoded from the token the client receives.
	tokenID := issued.TokenID
	if deps.Verifier != nil {
		if claims, err := deps.Verifier.Decode(issued.Token); err == nil {
			tokenID = claims.TokenID()
		}
	}

	return LoginResult{
		Failure:        LoginFailureNone,
		UserID:         user.ID,
		Email:          user.Email,
		AccessToken:    access,
		RefreshToken:   issued.Token,
		RefreshTokenID: tokenID,
		Upgraded:       upgraded,
	}
}

func recordLoginFailure(ctx context.Context, deps LoginDeps, email, ip string) {
	if deps.Limiter == nil {
		return
	}
	if err := deps.Limiter.IncrementLogin(ctx, email, ip); err != nil {
		warn(deps.Warn, "pmscanauth: login limiter increment failed", "error", err)
	}
}

func upgradeDigest(ctx context.Context, deps LoginDeps, user User, password string) bool {
	if !deps.UpgradeOnLogin || deps.NeedsUpgrade == nil || deps.HashPassword == nil || deps.Directory.UpdateCredential == nil {
		return false
	}
	needs, err := deps.NeedsUpgrade(user.PasswordDigest)
	if err != nil || !needs {
		return false
	}
	digest, err := deps.HashPassword(password)
	if err != nil {
		warn(deps.Warn, "pmscanauth: digest upgrade hash failed", "user_id", user.ID, "error", err)
		return false
	}
	if err := deps.Directory.UpdateCredential(ctx, user.ID, digest); err != nil {
		warn(deps.Warn, "pmscanauth: digest upgrade store failed", "user_id", user.ID, "error", err)
		return false
	}
	return true
}

func warn(fn func(string, ...any), msg string, args ...any) {
	if fn != nil {
		fn(msg, args...)
	}
}
