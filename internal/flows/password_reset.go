package flows

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/pmscanauth/internal/rate"
	"github.com/MrEthical07/pmscanauth/internal/stores"
	"github.com/MrEthical07/pmscanauth/jwt"
)

// ForgotPasswordResult describes what happened behind the generic response.
// Callers must not let any of it reach the client.
type ForgotPasswordResult struct {
	Known     bool
	Throttled bool
	UserID    int64
	TokenID   string
	MintErr   error
	MailErr   error
	StoreErr  error
	DelayErr  error
}

// ForgotPasswordLimiter is satisfied by *rate.Limiter.
type ForgotPasswordLimiter interface {
	AllowForgotPassword(ctx context.Context, email string) error
}

// ForgotPasswordDeps captures forgot-password dependencies.
type ForgotPasswordDeps struct {
	Directory        Directory
	Limiter          ForgotPasswordLimiter
	Reset            RevocableTokens
	EnumerationDelay func() (time.Duration, error)
	BuildResetURL    func(token string) string
	SendResetMail    func(ctx context.Context, to string, resetURL string) error
	Warn             func(string, ...any)
}

// RunForgotPassword starts a reset handshake for email.
//
// Unknown emails, directory failures and throttled requests all wait out a
// random delay and report nothing. For a known user the mail send and the
// record write run concurrently; neither failure is surfaced.
func RunForgotPassword(ctx context.Context, email string, deps ForgotPasswordDeps) ForgotPasswordResult {
	if deps.Limiter != nil {
		if err := deps.Limiter.AllowForgotPassword(ctx, email); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return ForgotPasswordResult{Throttled: true, DelayErr: enumerationSleep(ctx, deps)}
			}
			warn(deps.Warn, "pmscanauth: forgot-password limiter unavailable", "error", err)
		}
	}

	user, err := deps.Directory.FindByEmail(ctx, email)
	if err != nil {
		if !deps.Directory.IsNotFound(err) {
			warn(deps.Warn, "pmscanauth: forgot-password directory lookup failed", "error", err)
		}
		return ForgotPasswordResult{DelayErr: enumerationSleep(ctx, deps)}
	}

	issued, err := deps.Reset.Mint(user.ID)
	if err != nil {
		return ForgotPasswordResult{Known: true, UserID: user.ID, MintErr: err}
	}

	result := ForgotPasswordResult{Known: true, UserID: user.ID, TokenID: issued.TokenID}
	resetURL := deps.BuildResetURL(issued.Token)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.MailErr = deps.SendResetMail(ctx, user.Email, resetURL)
	}()
	go func() {
		defer wg.Done()
		result.StoreErr = deps.Reset.Persist(ctx, issued)
	}()
	wg.Wait()

	return result
}

func enumerationSleep(ctx context.Context, deps ForgotPasswordDeps) error {
	if deps.EnumerationDelay == nil {
		return nil
	}
	d, err := deps.EnumerationDelay()
	if err != nil {
		return err
	}
	return sleepCtx(ctx, d)
}

// ResetPasswordFailureKind classifies reset-confirm failures.
type ResetPasswordFailureKind int

const (
	ResetFailureNone ResetPasswordFailureKind = iota
	ResetFailureVerify
	ResetFailureStore
	ResetFailureNotFound
	ResetFailureDigestMismatch
	ResetFailureUserNotFound
	ResetFailureDirectory
	ResetFailurePolicy
	ResetFailureConsumed
	ResetFailureHash
	ResetFailureUpdate
)

// ResetPasswordResult carries the outcome of a reset confirmation.
type ResetPasswordResult struct {
	Failure ResetPasswordFailureKind
	Err     error
	UserID  int64
	TokenID string
}

// ResetPasswordDeps captures reset-confirm dependencies.
type ResetPasswordDeps struct {
	Verifier     TokenVerifier
	Reset        RevocableTokens
	Directory    Directory
	CheckPolicy  func(string) error
	HashPassword func(string) (string, error)
}

// RunResetPassword redeems a reset token and sets a new credential.
//
// The record is deleted before the credential is written. Only the caller
// that actually removed it proceeds, so a token redeems at most once even
// under concurrent submissions.
func RunResetPassword(ctx context.Context, resetToken, newPassword string, deps ResetPasswordDeps) ResetPasswordResult {
	claims, err := deps.Verifier.Verify(resetToken, jwt.PurposeReset)
	if err != nil {
		return ResetPasswordResult{Failure: ResetFailureVerify, Err: err}
	}
	tokenID := claims.TokenID()

	rec, found, err := deps.Reset.Lookup(ctx, tokenID)
	if err != nil {
		if errors.Is(err, stores.ErrStoreUnavailable) {
			return ResetPasswordResult{Failure: ResetFailureStore, Err: err, TokenID: tokenID}
		}
		return ResetPasswordResult{Failure: ResetFailureNotFound, Err: err, TokenID: tokenID}
	}
	if !found {
		return ResetPasswordResult{Failure: ResetFailureNotFound, TokenID: tokenID}
	}
	if !deps.Reset.Matches(rec, resetToken) {
		return ResetPasswordResult{Failure: ResetFailureDigestMismatch, TokenID: tokenID, UserID: rec.UserID}
	}

	user, err := deps.Directory.FindByID(ctx, rec.UserID)
	if err != nil {
		if deps.Directory.IsNotFound(err) {
			return ResetPasswordResult{Failure: ResetFailureUserNotFound, Err: err, TokenID: tokenID, UserID: rec.UserID}
		}
		return ResetPasswordResult{Failure: ResetFailureDirectory, Err: err, TokenID: tokenID, UserID: rec.UserID}
	}

	if deps.CheckPolicy != nil {
		if err := deps.CheckPolicy(newPassword); err != nil {
			return ResetPasswordResult{Failure: ResetFailurePolicy, Err: err, TokenID: tokenID, UserID: user.ID}
		}
	}

	removed, err := deps.Reset.Revoke(ctx, tokenID)
	if err != nil {
		return ResetPasswordResult{Failure: ResetFailureStore, Err: err, TokenID: tokenID, UserID: user.ID}
	}
	if !removed {
		return ResetPasswordResult{Failure: ResetFailureConsumed, TokenID: tokenID, UserID: user.ID}
	}

	digest, err := deps.HashPassword(newPassword)
	if err != nil {
		return ResetPasswordResult{Failure: ResetFailureHash, Err: err, TokenID: tokenID, UserID: user.ID}
	}
	if err := deps.Directory.UpdateCredential(ctx, user.ID, digest); err != nil {
		return ResetPasswordResult{Failure: ResetFailureUpdate, Err: err, TokenID: tokenID, UserID: user.ID}
	}
	return ResetPasswordResult{Failure: ResetFailureNone, TokenID: tokenID, UserID: user.ID}
}
