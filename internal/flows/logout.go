package flows

import (
	"context"

	"github.com/MrEthical07/pmscanauth/jwt"
)

// LogoutFailureKind classifies logout outcomes. Only LogoutFailureMissing is
// surfaced to callers; the rest are logged.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureMissing
	LogoutFailureDecode
	LogoutFailureStore
)

// LogoutResult reports what was revoked.
type LogoutResult struct {
	Failure  LogoutFailureKind
	Err      error
	TokenID  string
	Verified bool
	Revoked  bool
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Verifier TokenVerifier
	Refresh  RevocableTokens
}

// RunLogout revokes the record behind a refresh token.
//
// An expired or otherwise unverifiable token is still decoded for its jti so
// the record can be removed. That means anyone holding a token string can
// revoke it; revocation is the only effect.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	if refreshToken == "" {
		return LogoutResult{Failure: LogoutFailureMissing}
	}

	verified := true
	claims, err := deps.Verifier.Verify(refreshToken, jwt.PurposeRefresh)
	if err != nil {
		verified = false
		claims, err = deps.Verifier.Decode(refreshToken)
		if err != nil {
			return LogoutResult{Failure: LogoutFailureDecode, Err: err}
		}
	}

	tokenID := claims.TokenID()
	if tokenID == "" {
		return LogoutResult{Failure: LogoutFailureDecode, Verified: verified}
	}

	removed, err := deps.Refresh.Revoke(ctx, tokenID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err, TokenID: tokenID, Verified: verified}
	}
	return LogoutResult{TokenID: tokenID, Verified: verified, Revoked: removed}
}
