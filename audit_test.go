package pmscanauth

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newAuditTestEnv(t *testing.T, sink AuditSink) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	hasher := newTestHasher(t)
	digest, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	dir := newMockDirectory(UserRecord{ID: 1, Email: testEmail, PasswordDigest: digest})
	mailer := &mockMailer{}

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(dir).
		WithMailer(mailer).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		mr.Close()
	})
	return &testEnv{engine: engine, mr: mr, rdb: rdb, dir: dir, mailer: mailer, hasher: hasher}
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event")
	}
	return AuditEvent{}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	sink := &countingSink{}
	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithUserDirectory(newMockDirectory()).
		WithMailer(&mockMailer{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_, _ = engine.Login(context.Background(), testEmail, "whatever")
	engine.Close()

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no sink calls when disabled, got %d", got)
	}
}

func TestAuditLoginEventCarriesTokenIDNotToken(t *testing.T) {
	sink := NewChannelSink(16)
	env := newAuditTestEnv(t, sink)

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	login, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	ev := nextEvent(t, sink)
	if ev.EventType != auditEventLoginSuccess || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.ID == "" {
		t.Fatal("expected event id")
	}
	if ev.UserID != "1" || ev.IP != "198.51.100.33" {
		t.Fatalf("unexpected subject fields %+v", ev)
	}
	if ev.TokenID != login.RefreshTokenID {
		t.Fatalf("expected token id %q, got %q", login.RefreshTokenID, ev.TokenID)
	}

	raw, _ := json.Marshal(ev)
	if strings.Contains(string(raw), login.RefreshToken) || strings.Contains(string(raw), login.AccessToken) {
		t.Fatal("token leaked into audit event")
	}
}

func TestAuditFailedLoginHasErrorCode(t *testing.T) {
	sink := NewChannelSink(16)
	env := newAuditTestEnv(t, sink)

	_, _ = env.engine.Login(context.Background(), testEmail, "Wrong#Pass1")

	ev := nextEvent(t, sink)
	if ev.EventType != auditEventLoginFailure || ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("expected %q, got %q", auditErrInvalidCredentials, ev.Error)
	}
	for _, v := range ev.Metadata {
		if v == "Wrong#Pass1" {
			t.Fatal("password leaked into metadata")
		}
	}
}

func TestAuditForgotPasswordNeverCarriesResetToken(t *testing.T) {
	var buf syncBuffer
	env := newAuditTestEnv(t, NewJSONWriterSink(&buf))

	if _, err := env.engine.ForgotPassword(context.Background(), testEmail); err != nil {
		t.Fatalf("ForgotPassword failed: %v", err)
	}
	token := env.mailer.lastResetToken(t)
	env.engine.Close()

	out := buf.String()
	if !strings.Contains(out, auditEventPasswordResetRequest) {
		t.Fatalf("expected reset request event, got %q", out)
	}
	if strings.Contains(out, token) {
		t.Fatal("reset token leaked into audit output")
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		nil:                           "",
		ErrInvalidCredentials:         auditErrInvalidCredentials,
		ErrLoginRateLimited:           auditErrRateLimited,
		ErrMissingRefreshToken:        auditErrMissingToken,
		ErrInvalidRefreshToken:        auditErrInvalidToken,
		ErrInvalidOrExpiredResetToken: auditErrInvalidToken,
		ErrUserNotFound:               auditErrUserNotFound,
		ErrStoreUnavailable:           auditErrUnavailable,
		ErrDirectoryUnavailable:       auditErrUnavailable,
		context.Canceled:              auditErrInternal,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
}
