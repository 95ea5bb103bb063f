package pmscanauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/pmscanauth/jwt"
	"github.com/MrEthical07/pmscanauth/password"
)

var testSecret = []byte("pmscan-test-secret-0123456789abcdef")

const (
	testEmail    = "alice@pmscan.test"
	testPassword = "Correct#Pass1"
	testResetURL = "https://pmscan.test/reset-password?token={token}"
)

type mockDirectory struct {
	mu      sync.Mutex
	users   map[int64]UserRecord
	byEmail map[string]int64

	findErr   error
	updateErr error

	findByEmailCalls int
	findByIDCalls    int
	updateCalls      int
}

func newMockDirectory(users ...UserRecord) *mockDirectory {
	d := &mockDirectory{
		users:   make(map[int64]UserRecord),
		byEmail: make(map[string]int64),
	}
	for _, u := range users {
		d.users[u.ID] = u
		d.byEmail[u.Email] = u.ID
	}
	return d
}

func (m *mockDirectory) FindByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findByEmailCalls++

	if m.findErr != nil {
		return UserRecord{}, m.findErr
	}
	id, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return m.users[id], nil
}

func (m *mockDirectory) FindByID(_ context.Context, id int64) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findByIDCalls++

	if m.findErr != nil {
		return UserRecord{}, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (m *mockDirectory) UpdateCredential(_ context.Context, id int64, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++

	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordDigest = digest
	m.users[id] = u
	return nil
}

func (m *mockDirectory) remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		delete(m.byEmail, u.Email)
	}
	delete(m.users, id)
}

func (m *mockDirectory) digest(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].PasswordDigest
}

type sentMail struct {
	From, To, Subject, Body string
}

type mockMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (m *mockMailer) Send(_ context.Context, from, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{From: from, To: to, Subject: subject, Body: body})
	return nil
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// lastResetToken pulls the token out of the link in the most recent mail.
func (m *mockMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	body := m.sent[len(m.sent)-1].Body
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "https://pmscan.test/reset-password") {
			continue
		}
		u, err := url.Parse(line)
		if err != nil {
			t.Fatalf("parse reset link: %v", err)
		}
		return u.Query().Get("token")
	}
	t.Fatalf("no reset link in mail body: %q", body)
	return ""
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return mr, client
}

func testPasswordConfig() password.Config {
	return password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()

	h, err := password.NewHasher(testPasswordConfig())
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = testSecret
	pc := testPasswordConfig()
	cfg.Password.Memory = pc.Memory
	cfg.Password.Time = pc.Time
	cfg.Password.Parallelism = pc.Parallelism
	cfg.Password.SaltLength = pc.SaltLength
	cfg.Password.KeyLength = pc.KeyLength
	cfg.PasswordReset.URLTemplate = testResetURL
	cfg.PasswordReset.From = "noreply@pmscan.test"
	return cfg
}

type testEnv struct {
	engine *Engine
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	dir    *mockDirectory
	mailer *mockMailer
	hasher *password.Hasher
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	hasher := newTestHasher(t)
	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	dir := newMockDirectory(UserRecord{ID: 1, Email: testEmail, Name: "Alice", PasswordDigest: digest})
	mailer := &mockMailer{}

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(dir).
		WithMailer(mailer).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &testEnv{engine: engine, mr: mr, rdb: rdb, dir: dir, mailer: mailer, hasher: hasher}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func readRecord(t *testing.T, rdb *redis.Client, key string) (map[string]any, bool) {
	t.Helper()
	raw, err := rdb.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return out, true
}

func signRaw(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign raw token: %v", err)
	}
	return tok
}

func TestLoginStoresDigestOfIssuedRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.UserID != 1 || res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("unexpected login result: %+v", res)
	}

	claims, err := env.engine.signer.Decode(res.RefreshToken)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.TokenID() != res.RefreshTokenID {
		t.Fatalf("expected RefreshTokenID %q to equal jti %q", res.RefreshTokenID, claims.TokenID())
	}

	rec, ok := readRecord(t, env.rdb, "refresh_token:"+res.RefreshTokenID)
	if !ok {
		t.Fatal("expected refresh record to exist")
	}
	if rec["userId"] != float64(1) {
		t.Fatalf("expected userId 1, got %v", rec["userId"])
	}
	if rec["tokenDigest"] != sha256Hex(res.RefreshToken) {
		t.Fatal("stored digest does not match issued refresh token")
	}

	ttl := env.mr.TTL("refresh_token:" + res.RefreshTokenID)
	if ttl <= 0 || ttl > 10*24*time.Hour {
		t.Fatalf("unexpected record ttl %v", ttl)
	}

	id, err := env.engine.Authenticate(ctx, res.AccessToken)
	if err != nil || id != 1 {
		t.Fatalf("Authenticate failed: id=%d err=%v", id, err)
	}
	access, err := env.engine.signer.Verify(res.AccessToken, jwt.PurposeAccess)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if access.Email != testEmail {
		t.Fatalf("expected email claim %q, got %q", testEmail, access.Email)
	}
}

func TestLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, errUnknown := env.engine.Login(ctx, "nobody@pmscan.test", testPassword)
	_, errWrong := env.engine.Login(ctx, testEmail, "Wrong#Pass1")

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("error text differs: %q vs %q", errUnknown, errWrong)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricLoginFailure]; got != 2 {
		t.Fatalf("expected 2 login failures, got %d", got)
	}
	if keys := env.mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no records after failed logins, got %v", keys)
	}
}

func TestLoginDirectoryFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.dir.findErr = errors.New("connection reset")

	_, err := env.engine.Login(context.Background(), testEmail, testPassword)
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("expected ErrDirectoryUnavailable, got %v", err)
	}
}

func TestLoginUpgradesBcryptDigest(t *testing.T) {
	env := newTestEnv(t, nil)

	legacy, err := password.NewBcrypt(4)
	if err != nil {
		t.Fatalf("NewBcrypt failed: %v", err)
	}
	digest, err := legacy.Hash(testPassword)
	if err != nil {
		t.Fatalf("bcrypt Hash failed: %v", err)
	}
	if err := env.dir.UpdateCredential(context.Background(), 1, digest); err != nil {
		t.Fatalf("seed digest: %v", err)
	}

	if _, err := env.engine.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("Login with bcrypt digest failed: %v", err)
	}
	if upgraded := env.dir.digest(1); !strings.HasPrefix(upgraded, "$argon2id$") {
		t.Fatalf("expected argon2id digest after login, got %q", upgraded)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricDigestUpgraded]; got != 1 {
		t.Fatalf("expected MetricDigestUpgraded=1, got %d", got)
	}
	if _, err := env.engine.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("Login after upgrade failed: %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Security.MaxLoginAttempts = 2
		c.Security.LoginCooldown = time.Minute
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, testEmail, "Wrong#Pass1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	env.mr.FastForward(2 * time.Minute)
	if _, err := env.engine.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestRefreshWorksUntilLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		res, err := env.engine.Refresh(ctx, login.RefreshToken)
		if err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
		if res.UserID != 1 || res.AccessToken == "" {
			t.Fatalf("unexpected refresh result: %+v", res)
		}
		if res.RefreshToken != "" {
			t.Fatal("expected no replacement refresh token without rotation")
		}
	}

	if err := env.engine.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}
	if err := env.engine.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("second Logout should be a no-op, got %v", err)
	}
}

func TestRefreshFailsOnceRecordExpires(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	env.mr.FastForward(10*24*time.Hour + time.Second)
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after record ttl, got %v", err)
	}
}

func TestRefreshNeverIssuedTokenID(t *testing.T) {
	env := newTestEnv(t, nil)

	tok, err := env.engine.signer.Sign(jwt.Payload{SubjectID: 1, TokenID: "never-issued", Purpose: jwt.PurposeRefresh}, time.Hour)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if _, err := env.engine.Refresh(context.Background(), tok); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if env.dir.findByIDCalls != 0 {
		t.Fatal("directory must not be consulted for an unknown token")
	}
}

func TestRefreshRejectsForgedTokenWithSameTokenID(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	forged := signRaw(t, jwt.Claims{
		Purpose: jwt.PurposeRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "1",
			ID:        login.RefreshTokenID,
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if forged == login.RefreshToken {
		t.Fatal("forged token must differ from the issued one")
	}

	if _, err := env.engine.Refresh(ctx, forged); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for forged token, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); err != nil {
		t.Fatalf("genuine token must survive a forged attempt, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t, nil)
	login, err := env.engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := env.engine.Refresh(context.Background(), login.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRefreshMissingToken(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.engine.Refresh(context.Background(), ""); !errors.Is(err, ErrMissingRefreshToken) {
		t.Fatalf("expected ErrMissingRefreshToken, got %v", err)
	}
}

func TestRefreshUserRemoved(t *testing.T) {
	env := newTestEnv(t, nil)
	login, err := env.engine.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	env.dir.remove(1)

	if _, err := env.engine.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Security.RotateRefreshOnUse = true
	})
	ctx := context.Background()

	login, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	res, err := env.engine.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if res.RefreshToken == "" || res.RefreshToken == login.RefreshToken {
		t.Fatal("expected a new refresh token under rotation")
	}

	if _, err := env.engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected rotated-out token to fail, got %v", err)
	}
	if _, err := env.engine.Refresh(ctx, res.RefreshToken); err != nil {
		t.Fatalf("replacement token failed: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricRefreshRotated]; got != 2 {
		t.Fatalf("expected 2 rotations, got %d", got)
	}
}

func TestLogoutRevokesExpiredToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	const jti = "expired-but-recorded"
	expired := signRaw(t, jwt.Claims{
		Purpose: jwt.PurposeRefresh,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "1",
			ID:        jti,
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	value := fmt.Sprintf(`{"userId":1,"tokenDigest":%q}`, sha256Hex(expired))
	if err := env.rdb.Set(ctx, "refresh_token:"+jti, value, time.Hour).Err(); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if err := env.engine.Logout(ctx, expired); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, ok := readRecord(t, env.rdb, "refresh_token:"+jti); ok {
		t.Fatal("expected record of expired token to be revoked")
	}
}

func TestLogoutInputs(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if err := env.engine.Logout(ctx, ""); !errors.Is(err, ErrMissingRefreshToken) {
		t.Fatalf("expected ErrMissingRefreshToken, got %v", err)
	}
	if err := env.engine.Logout(ctx, "not-a-token"); err != nil {
		t.Fatalf("garbage token should be swallowed, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Metrics.EnableLatencyHistograms = true
	})
	ctx := context.Background()

	login, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	env.dir.findByIDCalls = 0
	env.dir.findByEmailCalls = 0

	if id, err := env.engine.Authenticate(ctx, login.AccessToken); err != nil || id != 1 {
		t.Fatalf("Authenticate failed: id=%d err=%v", id, err)
	}
	if env.dir.findByIDCalls != 0 || env.dir.findByEmailCalls != 0 {
		t.Fatal("Authenticate must not consult the directory")
	}

	for _, tok := range []string{"", "garbage", login.RefreshToken} {
		if _, err := env.engine.Authenticate(ctx, tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized for %q, got %v", tok, err)
		}
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricAuthenticateSuccess] != 1 || snap.Counters[MetricAuthenticateFailure] != 3 {
		t.Fatalf("unexpected authenticate counters: %+v", snap.Counters)
	}
	var observed uint64
	for _, n := range snap.Histograms[MetricAuthenticateLatency] {
		observed += n
	}
	if observed != 4 {
		t.Fatalf("expected 4 latency observations, got %d", observed)
	}
}

func TestBuilderRequirements(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	dir := newMockDirectory()
	mailer := &mockMailer{}

	if _, err := New().WithConfig(testConfig()).WithUserDirectory(dir).WithMailer(mailer).Build(); err == nil {
		t.Fatal("expected error without redis or token store")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).WithMailer(mailer).Build(); err == nil {
		t.Fatal("expected error without directory")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).WithUserDirectory(dir).Build(); err == nil {
		t.Fatal("expected error without mailer")
	}

	throttled := testConfig()
	throttled.Security.MaxLoginAttempts = 3
	store := &memoryStore{data: map[string][]byte{}}
	if _, err := New().WithConfig(throttled).WithTokenStore(store).WithUserDirectory(dir).WithMailer(mailer).Build(); err == nil {
		t.Fatal("expected throttling without redis to fail")
	}

	noSecret := testConfig()
	noSecret.JWT.PrivateKey = nil
	if _, err := New().WithConfig(noSecret).WithRedis(rdb).WithUserDirectory(dir).WithMailer(mailer).Build(); err == nil {
		t.Fatal("expected missing secret to fail")
	}

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithUserDirectory(dir).WithMailer(mailer)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	ctx := context.Background()
	if _, err := e.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Authenticate(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if got := e.AuditDropped(); got != 0 {
		t.Fatalf("expected 0 dropped, got %d", got)
	}
	e.Close()
}

// memoryStore is a TokenStore without Redis, used to run the engine on a
// custom store.
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrTokenRecordNotFound
	}
	return v, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}

func TestEngineWithCustomTokenStore(t *testing.T) {
	hasher := newTestHasher(t)
	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	store := &memoryStore{data: map[string][]byte{}}
	engine, err := New().
		WithConfig(testConfig()).
		WithTokenStore(store).
		WithUserDirectory(newMockDirectory(UserRecord{ID: 7, Email: "bob@pmscan.test", PasswordDigest: digest})).
		WithMailer(&mockMailer{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	login, err := engine.Login(ctx, "bob@pmscan.test", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, ok := store.data["refresh_token:"+login.RefreshTokenID]; !ok {
		t.Fatal("expected record in custom store")
	}
	if err := engine.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

type countingHasher struct {
	*password.Hasher
	verifies int
	digests  []string
}

func (h *countingHasher) Verify(plain, digest string) (bool, error) {
	h.verifies++
	h.digests = append(h.digests, digest)
	return h.Hasher.Verify(plain, digest)
}

func TestLoginUnknownEmailStillVerifiesOnce(t *testing.T) {
	mr, rdb := newTestRedis(t)
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	hasher := &countingHasher{Hasher: newTestHasher(t)}
	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithPasswordHasher(hasher).
		WithUserDirectory(newMockDirectory(UserRecord{ID: 1, Email: testEmail, PasswordDigest: digest})).
		WithMailer(&mockMailer{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if _, err := engine.Login(ctx, "nobody@pmscan.test", timingPadPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if hasher.verifies != 1 {
		t.Fatalf("expected one verify for unknown email, got %d", hasher.verifies)
	}
	if hasher.digests[0] == digest || hasher.digests[0] == "" {
		t.Fatalf("unknown email verified against %q", hasher.digests[0])
	}

	if _, err := engine.Login(ctx, testEmail, "Wrong#Pass1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if hasher.verifies != 2 || hasher.digests[1] != digest {
		t.Fatalf("expected second verify against the stored digest, got %d calls", hasher.verifies)
	}
}
