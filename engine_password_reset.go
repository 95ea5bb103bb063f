package pmscanauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/pmscanauth/internal"
	"github.com/MrEthical07/pmscanauth/internal/flows"
	"github.com/MrEthical07/pmscanauth/password"
)

// ForgotPassword starts a password reset for email.
//
// The result and the error are the same whether or not the email belongs to
// an account. For a known account a reset link is mailed and its record
// written concurrently; failures of either are logged and counted, never
// returned. Unknown emails wait out a random delay instead.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (ForgotPasswordResult, error) {
	generic := ForgotPasswordResult{Message: ForgotPasswordMessage}
	if !e.ready() || e.mailer == nil {
		return ForgotPasswordResult{}, ErrEngineNotReady
	}

	e.metricInc(MetricPasswordResetRequest)
	res := flows.RunForgotPassword(ctx, email, e.forgotPasswordFlowDeps())

	if res.DelayErr != nil && !errors.Is(res.DelayErr, context.Canceled) && !errors.Is(res.DelayErr, context.DeadlineExceeded) {
		e.logger.WarnContext(ctx, "pmscanauth: enumeration delay failed", "error", res.DelayErr)
	}

	switch {
	case res.Throttled:
		e.metricInc(MetricPasswordResetThrottled)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, 0, "", ErrLoginRateLimited, identifierMetadata(email))
		return generic, nil
	case !res.Known:
		e.metricInc(MetricPasswordResetUnknownEmail)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, 0, "", nil, reasonMetadata("unknown_email"))
		return generic, nil
	case res.MintErr != nil:
		e.logger.ErrorContext(ctx, "pmscanauth: reset token signing failed", "user_id", res.UserID, "error", res.MintErr)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, res.UserID, "", res.MintErr, reasonMetadata("mint_failed"))
		return generic, nil
	}

	if res.MailErr != nil {
		e.metricInc(MetricPasswordResetMailFailure)
		e.emitAudit(ctx, auditEventPasswordResetMailFailure, false, res.UserID, res.TokenID, res.MailErr, nil)
		e.logger.ErrorContext(ctx, "pmscanauth: reset mail send failed", "user_id", res.UserID, "token_id", res.TokenID, "error", res.MailErr)
	}
	if res.StoreErr != nil {
		e.metricInc(MetricPasswordResetStoreFailure)
		e.metricInc(MetricStoreUnavailable)
		e.emitAudit(ctx, auditEventPasswordResetStoreFailure, false, res.UserID, res.TokenID, res.StoreErr, nil)
		e.logger.ErrorContext(ctx, "pmscanauth: reset record write failed", "user_id", res.UserID, "token_id", res.TokenID, "error", res.StoreErr)
	}
	if res.MailErr == nil && res.StoreErr == nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, res.UserID, res.TokenID, nil, nil)
	}
	return generic, nil
}

// ResetPassword redeems a reset token and replaces the account password.
//
// A token redeems at most once. A token whose record belongs to another
// token string returns ErrInvalidResetToken, a token that outlived its user
// returns ErrUserNotFound, and every other failure returns
// ErrInvalidOrExpiredResetToken.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) (ResetPasswordResult, error) {
	if !e.ready() {
		return ResetPasswordResult{}, ErrEngineNotReady
	}

	res := flows.RunResetPassword(ctx, resetToken, newPassword, flows.ResetPasswordDeps{
		Verifier:     e.signer,
		Reset:        e.reset,
		Directory:    e.flowDirectory(),
		CheckPolicy:  password.CheckPolicy,
		HashPassword: e.hasher.Hash,
	})

	if res.Failure == flows.ResetFailureNone {
		e.metricInc(MetricPasswordResetConfirmSuccess)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, true, res.UserID, res.TokenID, nil, nil)
		e.logger.InfoContext(ctx, "pmscanauth: password reset", "user_id", res.UserID, "token_id", res.TokenID)
		return ResetPasswordResult{Message: ResetPasswordMessage}, nil
	}

	e.metricInc(MetricPasswordResetConfirmFailure)

	var (
		err    error
		reason string
	)
	switch res.Failure {
	case flows.ResetFailureDigestMismatch:
		err, reason = ErrInvalidResetToken, "digest_mismatch"
	case flows.ResetFailureUserNotFound:
		err, reason = ErrUserNotFound, "user_not_found"
	case flows.ResetFailureVerify:
		err, reason = ErrInvalidOrExpiredResetToken, "verify_failed"
	case flows.ResetFailureNotFound:
		err, reason = ErrInvalidOrExpiredResetToken, "record_not_found"
	case flows.ResetFailureConsumed:
		err, reason = ErrInvalidOrExpiredResetToken, "already_used"
	case flows.ResetFailurePolicy:
		err, reason = ErrInvalidOrExpiredResetToken, "password_policy"
	case flows.ResetFailureStore:
		e.metricInc(MetricStoreUnavailable)
		err, reason = ErrInvalidOrExpiredResetToken, "store_unavailable"
	case flows.ResetFailureDirectory:
		err, reason = ErrInvalidOrExpiredResetToken, "directory_unavailable"
	case flows.ResetFailureHash:
		err, reason = ErrInvalidOrExpiredResetToken, "hash_failed"
	default:
		err, reason = ErrInvalidOrExpiredResetToken, "update_failed"
	}

	if res.Err != nil {
		e.logger.WarnContext(ctx, "pmscanauth: password reset failed", "reason", reason, "user_id", res.UserID, "token_id", res.TokenID, "error", res.Err)
	}
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, res.UserID, res.TokenID, err, reasonMetadata(reason))
	return ResetPasswordResult{}, err
}

func (e *Engine) forgotPasswordFlowDeps() flows.ForgotPasswordDeps {
	cfg := e.config.PasswordReset
	deps := flows.ForgotPasswordDeps{
		Directory: e.flowDirectory(),
		Reset:     e.reset,
		EnumerationDelay: func() (time.Duration, error) {
			return internal.RandomDuration(cfg.MinEnumerationDelay, cfg.MaxEnumerationDelay)
		},
		BuildResetURL: e.resetURL,
		SendResetMail: func(ctx context.Context, to, resetURL string) error {
			return e.mailer.Send(ctx, cfg.From, to, cfg.Subject, resetMailBody(resetURL, e.config.JWT.ResetTTL))
		},
		Warn: e.logger.Warn,
	}
	if e.limiter != nil {
		deps.Limiter = e.limiter
	}
	return deps
}

func (e *Engine) resetURL(token string) string {
	return strings.ReplaceAll(e.config.PasswordReset.URLTemplate, "{token}", url.QueryEscape(token))
}

func resetMailBody(resetURL string, ttl time.Duration) string {
	var b strings.Builder
	b.WriteString("A password reset was requested for your PMScan account.\n\n")
	b.WriteString("Open the link below to choose a new password:\n")
	b.WriteString(resetURL)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The link expires in %s and can only be used once.\n", humanDuration(ttl))
	b.WriteString("If you did not ask for this, you can ignore this email.\n")
	return b.String()
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
