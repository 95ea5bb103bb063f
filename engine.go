package pmscanauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/pmscanauth/internal"
	"github.com/MrEthical07/pmscanauth/internal/audit"
	"github.com/MrEthical07/pmscanauth/internal/flows"
	"github.com/MrEthical07/pmscanauth/internal/rate"
	"github.com/MrEthical07/pmscanauth/internal/tokens"
	"github.com/MrEthical07/pmscanauth/jwt"
)

// Engine runs the credential and token flows. Build one with [Builder].
type Engine struct {
	config    Config
	signer    *jwt.Signer
	refresh   *tokens.Manager
	reset     *tokens.Manager
	limiter   *rate.Limiter
	directory UserDirectory
	hasher    PasswordHasher
	mailer    Mailer
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger

	// timingDigest pads unknown-email logins to the cost of a real verify.
	timingDigest string
}

type upgradeChecker interface {
	NeedsUpgrade(digest string) (bool, error)
}

// Close drains pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.signer != nil && e.refresh != nil && e.reset != nil && e.directory != nil
}

// Login checks email and password and issues an access token plus a
// refresh token backed by a stored record.
//
// An unknown email and a wrong password both return ErrInvalidCredentials.
// Record write failures return ErrStoreUnavailable.
func (e *Engine) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if !e.ready() {
		return LoginResult{}, ErrEngineNotReady
	}

	res := flows.RunLogin(ctx, email, password, e.loginFlowDeps())

	switch res.Failure {
	case flows.LoginFailureNone:
		if res.Upgraded {
			e.metricInc(MetricDigestUpgraded)
			e.logger.InfoContext(ctx, "pmscanauth: password digest upgraded", "user_id", res.UserID)
		}
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, res.RefreshTokenID, nil, nil)
		e.logger.InfoContext(ctx, "pmscanauth: login", "user_id", res.UserID, "token_id", res.RefreshTokenID)
		return LoginResult{
			UserID:         res.UserID,
			AccessToken:    res.AccessToken,
			RefreshToken:   res.RefreshToken,
			RefreshTokenID: res.RefreshTokenID,
		}, nil

	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, 0, "", ErrLoginRateLimited, identifierMetadata(email))
		return LoginResult{}, ErrLoginRateLimited

	case flows.LoginFailureLimiterUnavailable:
		err := fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
		e.metricInc(MetricStoreUnavailable)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, "", err, reasonMetadata("limiter_unavailable"))
		e.logger.ErrorContext(ctx, "pmscanauth: login limiter unavailable", "error", res.Err)
		return LoginResult{}, err

	case flows.LoginFailureUserNotFound, flows.LoginFailurePasswordMismatch, flows.LoginFailureVerify:
		reason := "password_mismatch"
		switch res.Failure {
		case flows.LoginFailureUserNotFound:
			reason = "user_not_found"
		case flows.LoginFailureVerify:
			reason = "digest_unreadable"
			e.logger.WarnContext(ctx, "pmscanauth: stored digest could not be verified", "user_id", res.UserID, "error", res.Err)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": email,
				"reason":     reason,
			}
		})
		return LoginResult{}, ErrInvalidCredentials

	case flows.LoginFailureDirectory:
		err := fmt.Errorf("%w: %v", ErrDirectoryUnavailable, res.Err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, "", err, reasonMetadata("directory_unavailable"))
		e.logger.ErrorContext(ctx, "pmscanauth: login directory lookup failed", "error", res.Err)
		return LoginResult{}, err

	case flows.LoginFailureIssueRefresh:
		e.metricInc(MetricLoginFailure)
		e.logger.ErrorContext(ctx, "pmscanauth: refresh record write failed", "user_id", res.UserID, "error", res.Err)
		if errors.Is(res.Err, ErrStoreUnavailable) {
			e.metricInc(MetricStoreUnavailable)
			e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", res.Err, reasonMetadata("store_unavailable"))
			return LoginResult{}, res.Err
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", res.Err, reasonMetadata("issue_refresh_failed"))
		return LoginResult{}, res.Err

	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.UserID, "", res.Err, reasonMetadata("issue_access_failed"))
		e.logger.ErrorContext(ctx, "pmscanauth: access token signing failed", "user_id", res.UserID, "error", res.Err)
		return LoginResult{}, res.Err
	}
}

// Refresh trades a live refresh token for a new access token. With
// Security.RotateRefreshOnUse the presented token is revoked and a
// replacement is returned in RefreshResult.RefreshToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if !e.ready() {
		return RefreshResult{}, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.refreshFlowDeps())

	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		if res.Rotated {
			e.metricInc(MetricRefreshRotated)
			e.emitAudit(ctx, auditEventRefreshRotated, true, res.UserID, res.TokenID, nil, func() map[string]string {
				return map[string]string{"next_token_id": res.RefreshTokenID}
			})
		} else {
			e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.TokenID, nil, nil)
		}
		return RefreshResult{
			UserID:       res.UserID,
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
		}, nil

	case flows.RefreshFailureMissing:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, 0, "", ErrMissingRefreshToken, nil)
		return RefreshResult{}, ErrMissingRefreshToken

	case flows.RefreshFailureVerify, flows.RefreshFailureNotFound, flows.RefreshFailureDigestMismatch:
		reason := "verify_failed"
		switch res.Failure {
		case flows.RefreshFailureNotFound:
			reason = "record_not_found"
		case flows.RefreshFailureDigestMismatch:
			reason = "digest_mismatch"
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.TokenID, ErrInvalidRefreshToken, reasonMetadata(reason))
		return RefreshResult{}, ErrInvalidRefreshToken

	case flows.RefreshFailureStore, flows.RefreshFailureRotate:
		err := res.Err
		if !errors.Is(err, ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
		}
		e.metricInc(MetricStoreUnavailable)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.TokenID, err, reasonMetadata("store_unavailable"))
		e.logger.ErrorContext(ctx, "pmscanauth: refresh record store failed", "token_id", res.TokenID, "error", res.Err)
		return RefreshResult{}, err

	case flows.RefreshFailureUserNotFound:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.TokenID, ErrUserNotFound, reasonMetadata("user_not_found"))
		return RefreshResult{}, ErrUserNotFound

	case flows.RefreshFailureDirectory:
		err := fmt.Errorf("%w: %v", ErrDirectoryUnavailable, res.Err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.TokenID, err, reasonMetadata("directory_unavailable"))
		e.logger.ErrorContext(ctx, "pmscanauth: refresh directory lookup failed", "user_id", res.UserID, "error", res.Err)
		return RefreshResult{}, err

	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.TokenID, res.Err, reasonMetadata("issue_access_failed"))
		e.logger.ErrorContext(ctx, "pmscanauth: access token signing failed", "user_id", res.UserID, "error", res.Err)
		return RefreshResult{}, res.Err
	}
}

// Logout revokes the record behind refreshToken. Only a missing token is
// reported; an unreadable token or a store failure is logged and the call
// still succeeds.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, refreshToken, flows.LogoutDeps{
		Verifier: e.signer,
		Refresh:  e.refresh,
	})

	switch res.Failure {
	case flows.LogoutFailureMissing:
		return ErrMissingRefreshToken
	case flows.LogoutFailureDecode:
		e.logger.WarnContext(ctx, "pmscanauth: logout token could not be decoded", "error", res.Err)
		e.metricInc(MetricLogout)
		return nil
	case flows.LogoutFailureStore:
		e.metricInc(MetricLogoutStoreError)
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, false, 0, res.TokenID, res.Err, nil)
		e.logger.ErrorContext(ctx, "pmscanauth: logout revoke failed", "token_id", res.TokenID, "error", res.Err)
		return nil
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, 0, res.TokenID, nil, func() map[string]string {
		return map[string]string{
			"verified": boolString(res.Verified),
			"revoked":  boolString(res.Revoked),
		}
	})
	return nil
}

// Authenticate verifies an access token and returns its subject id. It does
// not touch the store. Any failure returns ErrUnauthorized.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
		}
	}()

	if accessToken == "" {
		e.metricInc(MetricAuthenticateFailure)
		return 0, ErrUnauthorized
	}
	claims, err := e.signer.Verify(accessToken, jwt.PurposeAccess)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return 0, ErrUnauthorized
	}
	id, err := claims.SubjectID()
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		return 0, ErrUnauthorized
	}

	e.metricInc(MetricAuthenticateSuccess)
	return id, nil
}

func (e *Engine) issueAccessToken(u flows.User) (string, error) {
	tokenID, err := internal.NewTokenID()
	if err != nil {
		return "", err
	}
	return e.signer.Sign(jwt.Payload{
		SubjectID: u.ID,
		TokenID:   tokenID,
		Purpose:   jwt.PurposeAccess,
		Email:     u.Email,
	}, e.signer.TTL(jwt.PurposeAccess))
}

func (e *Engine) flowDirectory() flows.Directory {
	return flows.Directory{
		FindByEmail: func(ctx context.Context, email string) (flows.User, error) {
			u, err := e.directory.FindByEmail(ctx, email)
			if err != nil {
				return flows.User{}, err
			}
			return toFlowUser(u), nil
		},
		FindByID: func(ctx context.Context, id int64) (flows.User, error) {
			u, err := e.directory.FindByID(ctx, id)
			if err != nil {
				return flows.User{}, err
			}
			return toFlowUser(u), nil
		},
		UpdateCredential: e.directory.UpdateCredential,
		IsNotFound: func(err error) bool {
			return errors.Is(err, ErrUserNotFound)
		},
	}
}

func (e *Engine) loginFlowDeps() flows.LoginDeps {
	deps := flows.LoginDeps{
		Directory:           e.flowDirectory(),
		ClientIPFromContext: clientIPFromContext,
		VerifyPassword:      e.hasher.Verify,
		TimingDigest:        e.timingDigest,
		HashPassword:        e.hasher.Hash,
		UpgradeOnLogin:      e.config.Password.UpgradeOnLogin,
		IssueAccessToken:    e.issueAccessToken,
		Refresh:             e.refresh,
		Verifier:            e.signer,
		Warn:                e.logger.Warn,
	}
	if uc, ok := e.hasher.(upgradeChecker); ok {
		deps.NeedsUpgrade = uc.NeedsUpgrade
	}
	if e.limiter != nil {
		deps.Limiter = e.limiter
	}
	return deps
}

func (e *Engine) refreshFlowDeps() flows.RefreshDeps {
	return flows.RefreshDeps{
		Verifier:         e.signer,
		Refresh:          e.refresh,
		Directory:        e.flowDirectory(),
		IssueAccessToken: e.issueAccessToken,
		RotateOnUse:      e.config.Security.RotateRefreshOnUse,
		Warn:             e.logger.Warn,
	}
}

func toFlowUser(u UserRecord) flows.User {
	return flows.User{
		ID:             u.ID,
		Email:          u.Email,
		PasswordDigest: u.PasswordDigest,
	}
}

func reasonMetadata(reason string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": reason}
	}
}

func identifierMetadata(identifier string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"identifier": identifier}
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
