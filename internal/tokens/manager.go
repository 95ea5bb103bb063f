package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/pmscanauth/internal"
	"github.com/MrEthical07/pmscanauth/internal/stores"
	"github.com/MrEthical07/pmscanauth/jwt"
)

// Store is the key/value contract records are persisted through.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// Signer mints tokens.
type Signer interface {
	Sign(payload jwt.Payload, ttl time.Duration) (string, error)
}

// Record is the server-side half of a revocable token.
type Record struct {
	UserID      int64  `json:"userId"`
	TokenDigest string `json:"tokenDigest"`
}

// Issued is a freshly minted token that may or may not be persisted yet.
type Issued struct {
	Token   string
	TokenID string
	UserID  int64
	Digest  string
}

// Manager issues, looks up and revokes tokens of one purpose.
type Manager struct {
	purpose jwt.Purpose
	ttl     time.Duration
	signer  Signer
	store   Store
}

// NewRefreshManager returns a manager for refresh tokens.
func NewRefreshManager(signer Signer, store Store, ttl time.Duration) *Manager {
	return &Manager{purpose: jwt.PurposeRefresh, ttl: ttl, signer: signer, store: store}
}

// NewResetManager returns a manager for password-reset tokens.
func NewResetManager(signer Signer, store Store, ttl time.Duration) *Manager {
	return &Manager{purpose: jwt.PurposeReset, ttl: ttl, signer: signer, store: store}
}

func (m *Manager) Purpose() jwt.Purpose { return m.purpose }

func (m *Manager) TTL() time.Duration { return m.ttl }

// Key returns the record key for tokenID, e.g. "refresh_token:<id>".
func (m *Manager) Key(tokenID string) string {
	return string(m.purpose) + "_token:" + tokenID
}

// Mint signs a new token without persisting its record.
func (m *Manager) Mint(userID int64) (Issued, error) {
	tokenID, err := internal.NewTokenID()
	if err != nil {
		return Issued{}, err
	}
	token, err := m.signer.Sign(jwt.Payload{
		SubjectID: userID,
		TokenID:   tokenID,
		Purpose:   m.purpose,
	}, m.ttl)
	if err != nil {
		return Issued{}, err
	}
	return Issued{
		Token:   token,
		TokenID: tokenID,
		UserID:  userID,
		Digest:  internal.TokenDigest(token),
	}, nil
}

// Persist writes the record for issued with the manager TTL.
func (m *Manager) Persist(ctx context.Context, issued Issued) error {
	value, err := json.Marshal(Record{UserID: issued.UserID, TokenDigest: issued.Digest})
	if err != nil {
		return err
	}
	return storeError(m.store.Set(ctx, m.Key(issued.TokenID), value, m.ttl))
}

// Issue mints and persists a token. The token is only returned once its
// record is durable.
func (m *Manager) Issue(ctx context.Context, userID int64) (Issued, error) {
	issued, err := m.Mint(userID)
	if err != nil {
		return Issued{}, err
	}
	if err := m.Persist(ctx, issued); err != nil {
		return Issued{}, err
	}
	return issued, nil
}

// Lookup returns the record for tokenID. found is false when the record is
// absent or expired; err is non-nil only for store failures and corrupt
// records.
func (m *Manager) Lookup(ctx context.Context, tokenID string) (rec Record, found bool, err error) {
	data, err := m.store.Get(ctx, m.Key(tokenID))
	if err != nil {
		if errors.Is(err, stores.ErrRecordNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, storeError(err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode %s record: %w", m.purpose, err)
	}
	return rec, true, nil
}

// Revoke deletes the record for tokenID. Revoking an absent record is not an
// error; removed reports whether this call deleted it.
func (m *Manager) Revoke(ctx context.Context, tokenID string) (removed bool, err error) {
	removed, err = m.store.Delete(ctx, m.Key(tokenID))
	return removed, storeError(err)
}

// storeError classifies every store failure as an outage. Custom stores only
// promise ErrRecordNotFound for absence, so anything else is "cannot tell".
func storeError(err error) error {
	if err == nil || errors.Is(err, stores.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", stores.ErrStoreUnavailable, err)
}

// Digest returns the digest a record stores for token.
func (m *Manager) Digest(token string) string {
	return internal.TokenDigest(token)
}

// Matches compares the presented token against rec in constant time.
func (m *Manager) Matches(rec Record, token string) bool {
	return internal.DigestEqual(rec.TokenDigest, internal.TokenDigest(token))
}
