package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "github.com/pixelvault/authgate/cache/redis"
	autherrors "github.com/pixelvault/authgate/errors"
	"github.com/pixelvault/authgate/internal/storetest"
)

const testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) TestClient/1.0"

// recordSink captures alert notifications for assertions.
type recordSink struct {
	mu       sync.Mutex
	subjects []string
}

func (s *recordSink) Notify(_ context.Context, subject, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = append(s.subjects, subject)
}

func (s *recordSink) Subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.subjects))
	copy(out, s.subjects)
	return out
}

type guardFixture struct {
	guard *AbuseGuard
	redis *miniredis.Miniredis
	lists *storetest.IPListStore
	audit *storetest.AuditStore
	sink  *recordSink
}

func newGuardFixture(t *testing.T, binding KeyBinding) *guardFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	lists := storetest.NewIPListStore()
	audit := storetest.NewAuditStore()
	sink := &recordSink{}
	guard := NewAbuseGuard(rediscache.NewCounterCache(client, "test"), lists, audit, sink, binding)
	t.Cleanup(guard.Stop)

	return &guardFixture{guard: guard, redis: mr, lists: lists, audit: audit, sink: sink}
}

func loginRequest(ip string) AbuseRequest {
	return AbuseRequest{IP: ip, UserAgent: testUserAgent, Endpoint: "login"}
}

func TestGuardAllowsWithinWindow(t *testing.T) {
	f := newGuardFixture(t, BindIP)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 5))
	}

	err := f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 5)
	assert.Equal(t, autherrors.CodeRateLimited, autherrors.CodeOf(err))

	// A different IP has its own window.
	assert.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.2"), 60, 5))
}

func TestGuardWindowResets(t *testing.T) {
	f := newGuardFixture(t, BindIP)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 3))
	}
	err := f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 3)
	require.Equal(t, autherrors.CodeRateLimited, autherrors.CodeOf(err))

	// The exceeded request stretched the counter to the 10 minute block, so
	// the window only reopens once the block lapses.
	f.redis.FastForward(11 * time.Minute)
	assert.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 3))
}

func TestGuardRejectsUnknownUserAgent(t *testing.T) {
	f := newGuardFixture(t, BindIP)
	ctx := context.Background()

	for _, ua := range []string{"", "short", "curl/8.4.0", "python-requests/2.31", "Mozilla/5.0 compatible Googlebot/2.1"} {
		err := f.guard.Check(ctx, AbuseRequest{IP: "10.0.0.1", UserAgent: ua, Endpoint: "login"}, 60, 5)
		assert.Equalf(t, autherrors.CodeRateLimited, autherrors.CodeOf(err), "user agent %q should be rejected", ua)
	}

	// Nothing was counted against the IP.
	assert.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 1))
}

func TestGuardAllowlistBypassesLimit(t *testing.T) {
	f := newGuardFixture(t, BindIP)
	ctx := context.Background()

	require.NoError(t, f.lists.Allow(ctx, "10.0.0.1", "internal load test"))
	for i := 0; i < 50; i++ {
		require.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 2))
	}
}

func TestGuardDenylistRejectsImmediately(t *testing.T) {
	f := newGuardFixture(t, BindIP)
	ctx := context.Background()

	require.NoError(t, f.lists.Deny(ctx, "10.0.0.1", "manual block", time.Now().UTC().Add(time.Hour)))
	err := f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 5)
	assert.Equal(t, autherrors.CodeDenylisted, autherrors.CodeOf(err))
}

func TestGuardEscalatesToDenylist(t *testing.T) {
	f := newGuardFixture(t, BindIP)
	ctx := context.Background()

	// With a limit of 1, every call after the first exceeds the window.
	// Seven exceedances within the exceed window promote the IP.
	require.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.9"), 60, 1))
	for i := 0; i < 7; i++ {
		err := f.guard.Check(ctx, loginRequest("10.0.0.9"), 60, 1)
		require.Equal(t, autherrors.CodeRateLimited, autherrors.CodeOf(err))
	}

	denied, err := f.lists.IsDenied(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, denied)

	// Once denylisted, even a request to an endpoint this IP never touched
	// is rejected.
	err = f.guard.Check(ctx, AbuseRequest{IP: "10.0.0.9", UserAgent: testUserAgent, Endpoint: "refresh"}, 60, 5)
	assert.Equal(t, autherrors.CodeDenylisted, autherrors.CodeOf(err))

	// Every exceedance landed in the durable audit trail.
	assert.Len(t, f.audit.Entries(), 7)

	// Alerted once on the first exceedance and once on promotion.
	subjects := strings.Join(f.sink.Subjects(), "\n")
	assert.Contains(t, subjects, "rate limit exceeded")
	assert.Contains(t, subjects, "ip denylisted")
}

func TestGuardFailsOpenWhenCacheDown(t *testing.T) {
	f := newGuardFixture(t, BindIP)
	ctx := context.Background()

	f.redis.Close()
	assert.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 1))
	assert.NoError(t, f.guard.Check(ctx, loginRequest("10.0.0.1"), 60, 1))
}

func TestGuardPrincipalBindingSeparatesWindows(t *testing.T) {
	f := newGuardFixture(t, BindPrincipal)
	ctx := context.Background()

	a := AbuseRequest{IP: "10.0.0.1", UserAgent: testUserAgent, PrincipalID: "wallet-a", Endpoint: "profile"}
	b := AbuseRequest{IP: "10.0.0.1", UserAgent: testUserAgent, PrincipalID: "wallet-b", Endpoint: "profile"}

	for i := 0; i < 3; i++ {
		require.NoError(t, f.guard.Check(ctx, a, 60, 3))
	}
	err := f.guard.Check(ctx, a, 60, 3)
	require.Equal(t, autherrors.CodeRateLimited, autherrors.CodeOf(err))

	// Same IP, different principal: separate window.
	assert.NoError(t, f.guard.Check(ctx, b, 60, 3))
}

func TestSanitizeUserAgent(t *testing.T) {
	assert.Equal(t, "unknown", SanitizeUserAgent(""))
	assert.Equal(t, "unknown", SanitizeUserAgent("  ab  "))
	assert.Equal(t, "unknown", SanitizeUserAgent("curl/8.4.0"))
	assert.Equal(t, "unknown", SanitizeUserAgent("Mozilla/5.0 HeadlessChrome/120"))
	assert.Equal(t, testUserAgent, SanitizeUserAgent(testUserAgent+"  "))
}
