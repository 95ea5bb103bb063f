package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/pmscanauth/internal/stores"
	"github.com/MrEthical07/pmscanauth/jwt"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissing
	RefreshFailureVerify
	RefreshFailureStore
	RefreshFailureNotFound
	RefreshFailureDigestMismatch
	RefreshFailureUserNotFound
	RefreshFailureDirectory
	RefreshFailureIssueAccess
	RefreshFailureRotate
)

// RefreshResult carries the new access token, and with rotation enabled the
// replacement refresh token.
type RefreshResult struct {
	Failure        RefreshFailureKind
	Err            error
	UserID         int64
	TokenID        string
	AccessToken    string
	RefreshToken   string
	RefreshTokenID string
	Rotated        bool
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Verifier         TokenVerifier
	Refresh          RevocableTokens
	Directory        Directory
	IssueAccessToken func(User) (string, error)
	RotateOnUse      bool
	Warn             func(string, ...any)
}

// RunRefresh trades a live refresh token for a new access token.
//
// Order matters: signature and expiry first, then the record, then the
// digest, and only then the user. Nothing about the user is touched for a
// token the store does not vouch for.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureMissing}
	}

	claims, err := deps.Verifier.Verify(refreshToken, jwt.PurposeRefresh)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureVerify, Err: err}
	}
	tokenID := claims.TokenID()

	rec, found, err := deps.Refresh.Lookup(ctx, tokenID)
	if err != nil {
		if errors.Is(err, stores.ErrStoreUnavailable) {
			return RefreshResult{Failure: RefreshFailureStore, Err: err, TokenID: tokenID}
		}
		return RefreshResult{Failure: RefreshFailureNotFound, Err: err, TokenID: tokenID}
	}
	if !found {
		return RefreshResult{Failure: RefreshFailureNotFound, TokenID: tokenID}
	}
	if !deps.Refresh.Matches(rec, refreshToken) {
		return RefreshResult{Failure: RefreshFailureDigestMismatch, TokenID: tokenID, UserID: rec.UserID}
	}

	user, err := deps.Directory.FindByID(ctx, rec.UserID)
	if err != nil {
		if deps.Directory.IsNotFound(err) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err, TokenID: tokenID, UserID: rec.UserID}
		}
		return RefreshResult{Failure: RefreshFailureDirectory, Err: err, TokenID: tokenID, UserID: rec.UserID}
	}

	access, err := deps.IssueAccessToken(user)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, TokenID: tokenID, UserID: user.ID}
	}

	result := RefreshResult{
		Failure:     RefreshFailureNone,
		UserID:      user.ID,
		TokenID:     tokenID,
		AccessToken: access,
	}
	if !deps.RotateOnUse {
		return result
	}

	// At most one token of a rotation chain is live at any time.
	removed, err := deps.Refresh.Revoke(ctx, tokenID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, TokenID: tokenID, UserID: user.ID}
	}
	if !removed {
		return RefreshResult{Failure: RefreshFailureNotFound, TokenID: tokenID, UserID: user.ID}
	}
	issued, err := deps.Refresh.Issue(ctx, user.ID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureRotate, Err: err, TokenID: tokenID, UserID: user.ID}
	}
	result.RefreshToken = issued.Token
	result.RefreshTokenID = issued.TokenID
	result.Rotated = true
	return result
}
