package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
	"github.com/pixelvault/authgate/internal/storetest"
)

func newTokenFixture(t *testing.T, accessTTL, refreshTTL time.Duration) (*TokenService, *storetest.RevocationStore) {
	t.Helper()
	signer := NewTokenSigner()
	signer.AddKeySigner("test-secret-key")
	store := storetest.NewRevocationStore()
	svc := NewTokenService(signer, NewRevocationService(store), "authgate-test", accessTTL, refreshTTL)
	return svc, store
}

func TestTokenRoundTrip(t *testing.T) {
	svc, _ := newTokenFixture(t, 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	token, minted, err := svc.CreateAccessToken(ctx, "wallet-1", "session-1", fp)
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, token, domain.TokenKindAccess, fp)
	require.NoError(t, err)
	assert.Equal(t, "wallet-1", claims.Subject)
	assert.Equal(t, "session-1", claims.SessionNonce)
	assert.Equal(t, domain.TokenKindAccess, claims.Kind)
	assert.Equal(t, minted.TokenID, claims.TokenID)
	assert.Equal(t, fp.UserAgentHash, claims.UserAgentHash)
	assert.Equal(t, fp.IPHash, claims.IPHash)
}

func TestTokenKindMismatch(t *testing.T) {
	svc, _ := newTokenFixture(t, 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	pair, err := svc.CreatePair(ctx, "wallet-1", "session-1", fp)
	require.NoError(t, err)

	// Presenting a refresh token where an access token is expected must not
	// pass, long TTL notwithstanding.
	_, err = svc.Verify(ctx, pair.RefreshToken, domain.TokenKindAccess, fp)
	assert.Equal(t, autherrors.CodeInvalidToken, autherrors.CodeOf(err))

	_, err = svc.Verify(ctx, pair.AccessToken, domain.TokenKindRefresh, fp)
	assert.Equal(t, autherrors.CodeInvalidToken, autherrors.CodeOf(err))
}

func TestTokenFingerprintBinding(t *testing.T) {
	svc, _ := newTokenFixture(t, 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	mintedWith := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	token, _, err := svc.CreateAccessToken(ctx, "wallet-1", "session-1", mintedWith)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token, domain.TokenKindAccess, NewFingerprint("Other/1.0 Agent", "192.0.2.1"))
	assert.Equal(t, autherrors.CodeFingerprintMismatch, autherrors.CodeOf(err))

	_, err = svc.Verify(ctx, token, domain.TokenKindAccess, NewFingerprint("Mozilla/5.0 TestClient", "203.0.113.9"))
	assert.Equal(t, autherrors.CodeFingerprintMismatch, autherrors.CodeOf(err))
}

func TestTokenGarbageRejected(t *testing.T) {
	svc, _ := newTokenFixture(t, 15*time.Minute, 7*24*time.Hour)
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	_, err := svc.Verify(context.Background(), "not-a-token", domain.TokenKindAccess, fp)
	assert.Equal(t, autherrors.CodeInvalidToken, autherrors.CodeOf(err))
}

func TestTokenTamperedSignatureRejected(t *testing.T) {
	svc, _ := newTokenFixture(t, 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	token, _, err := svc.CreateAccessToken(ctx, "wallet-1", "session-1", fp)
	require.NoError(t, err)

	raw, err := svc.signer.ParseUnverified(token)
	require.NoError(t, err)

	forger := NewTokenSigner()
	forger.AddKeySigner("some-other-secret")
	forged, err := forger.Sign(raw, "")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, forged, domain.TokenKindAccess, fp)
	assert.Equal(t, autherrors.CodeInvalidToken, autherrors.CodeOf(err))
}

func TestExpiredTokenPinnedInRegistry(t *testing.T) {
	svc, store := newTokenFixture(t, -time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	token, minted, err := svc.CreateAccessToken(ctx, "wallet-1", "session-1", fp)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token, domain.TokenKindAccess, fp)
	assert.Equal(t, autherrors.CodeTokenExpired, autherrors.CodeOf(err))

	// Expiry verification pins the artifact in the registry as a side
	// effect.
	entry, err := store.Get(ctx, minted.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.RevocationExpired, entry.Reason)
}

func TestRotateIsSingleUse(t *testing.T) {
	svc, _ := newTokenFixture(t, 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	pair, err := svc.CreatePair(ctx, "wallet-1", "session-1", fp)
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, pair.RefreshToken, fp)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, "session-1", rotated.RefreshClaims.SessionNonce)
	assert.Equal(t, "wallet-1", rotated.RefreshClaims.Subject)

	// Replaying the consumed refresh token must fail.
	_, err = svc.Rotate(ctx, pair.RefreshToken, fp)
	assert.Equal(t, autherrors.CodeTokenRevoked, autherrors.CodeOf(err))

	// The fresh one still works.
	_, err = svc.Rotate(ctx, rotated.RefreshToken, fp)
	assert.NoError(t, err)
}

func TestRevokeIsIdempotentFirstWriteWins(t *testing.T) {
	svc, store := newTokenFixture(t, 15*time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	token, minted, err := svc.CreateAccessToken(ctx, "wallet-1", "session-1", fp)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, token, domain.RevocationLogout))
	require.NoError(t, svc.Revoke(ctx, token, domain.RevocationSecurity))

	entry, err := store.Get(ctx, minted.TokenID)
	require.NoError(t, err)
	assert.Equal(t, domain.RevocationLogout, entry.Reason)

	_, err = svc.Verify(ctx, token, domain.TokenKindAccess, fp)
	assert.Equal(t, autherrors.CodeTokenRevoked, autherrors.CodeOf(err))
}

func TestRevokeExpiredTokenStillRecorded(t *testing.T) {
	svc, store := newTokenFixture(t, -time.Minute, 7*24*time.Hour)
	ctx := context.Background()
	fp := NewFingerprint("Mozilla/5.0 TestClient", "192.0.2.1")

	token, _, err := svc.CreateAccessToken(ctx, "wallet-1", "session-1", fp)
	require.NoError(t, err)

	// Logout after expiry still lands in the registry.
	require.NoError(t, svc.Revoke(ctx, token, domain.RevocationLogout))
	assert.Equal(t, 1, store.Len())
}
