package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
)

// TokenService mints and verifies the signed, time-boxed, fingerprint-bound
// access and refresh tokens. Tokens are bearer credentials; fingerprint
// binding raises the cost of token theft without requiring mutual TLS.
type TokenService struct {
	signer      *TokenSigner
	revocations *RevocationService
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

func NewTokenService(
	signer *TokenSigner,
	revocations *RevocationService,
	issuer string,
	accessTTL, refreshTTL time.Duration,
) *TokenService {
	return &TokenService{
		signer:      signer,
		revocations: revocations,
		issuer:      issuer,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
	}
}

// CreateAccessToken mints a short-lived access token.
func (s *TokenService) CreateAccessToken(ctx context.Context, principalID, sessionNonce string, fp domain.Fingerprint) (string, *domain.TokenClaims, error) {
	return s.createToken(ctx, principalID, sessionNonce, fp, domain.TokenKindAccess, s.accessTTL)
}

// CreateRefreshToken mints a long-lived, single-use refresh token.
func (s *TokenService) CreateRefreshToken(ctx context.Context, principalID, sessionNonce string, fp domain.Fingerprint) (string, *domain.TokenClaims, error) {
	return s.createToken(ctx, principalID, sessionNonce, fp, domain.TokenKindRefresh, s.refreshTTL)
}

func (s *TokenService) createToken(_ context.Context, principalID, sessionNonce string, fp domain.Fingerprint, kind domain.TokenKind, ttl time.Duration) (string, *domain.TokenClaims, error) {
	now := time.Now().UTC()
	claims := &domain.TokenClaims{
		Subject:       principalID,
		TokenID:       uuid.NewString(),
		Kind:          kind,
		SessionNonce:  sessionNonce,
		UserAgentHash: fp.UserAgentHash,
		IPHash:        fp.IPHash,
		IssuedAt:      now,
		ExpiresAt:     now.Add(ttl),
	}

	tokenClaimsMap := jwt.MapClaims{
		"iss":   s.issuer,
		"sub":   claims.Subject,
		"iat":   jwt.NewNumericDate(claims.IssuedAt).Unix(),
		"exp":   jwt.NewNumericDate(claims.ExpiresAt).Unix(),
		"jti":   claims.TokenID,
		"kind":  string(claims.Kind),
		"nonce": claims.SessionNonce,
	}
	if claims.UserAgentHash != "" {
		tokenClaimsMap["ua_fp"] = claims.UserAgentHash
	}
	if claims.IPHash != "" {
		tokenClaimsMap["ip_fp"] = claims.IPHash
	}

	signed, err := s.signer.Sign(tokenClaimsMap, "")
	if err != nil {
		return "", nil, autherrors.Wrap(autherrors.CodeDependency, "failed to sign token", err)
	}
	return signed, claims, nil
}

// CreatePair mints an access/refresh pair sharing one session nonce.
func (s *TokenService) CreatePair(ctx context.Context, principalID, sessionNonce string, fp domain.Fingerprint) (*domain.TokenPair, error) {
	access, accessClaims, err := s.CreateAccessToken(ctx, principalID, sessionNonce, fp)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := s.CreateRefreshToken(ctx, principalID, sessionNonce, fp)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}

// Verify checks, in order: signature and kind, expiry, revocation registry
// membership, and fingerprint binding. A token failing on expiry is also
// pinned into the registry so the artifact cannot be replayed after its
// natural window.
func (s *TokenService) Verify(ctx context.Context, tokenValue string, kind domain.TokenKind, fp domain.Fingerprint) (*domain.TokenClaims, error) {
	raw, err := s.signer.Parse(tokenValue)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && raw != nil {
			return nil, s.expireToken(ctx, raw)
		}
		return nil, autherrors.Wrap(autherrors.CodeInvalidToken, "token failed verification", err)
	}

	claims, err := decodeClaims(raw)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.CodeInvalidToken, "token claims malformed", err)
	}

	if claims.Kind != kind {
		return nil, autherrors.New(autherrors.CodeInvalidToken, "token kind mismatch")
	}

	// Redundant with the parser's own exp check, kept explicit so the
	// expired-token side effect has a single obvious home.
	if time.Now().UTC().After(claims.ExpiresAt) {
		return nil, s.expireToken(ctx, raw)
	}

	if s.revocations.IsRevoked(ctx, claims.TokenID) {
		return nil, autherrors.New(autherrors.CodeTokenRevoked, "token has been revoked")
	}

	if claims.UserAgentHash != "" && claims.UserAgentHash != fp.UserAgentHash {
		return nil, autherrors.New(autherrors.CodeFingerprintMismatch, "user agent fingerprint mismatch")
	}
	if claims.IPHash != "" && claims.IPHash != fp.IPHash {
		return nil, autherrors.New(autherrors.CodeFingerprintMismatch, "ip fingerprint mismatch")
	}

	return claims, nil
}

// expireToken records an expired artifact in the revocation registry and
// returns the typed expiry error.
func (s *TokenService) expireToken(ctx context.Context, raw jwt.MapClaims) error {
	if claims, err := decodeClaims(raw); err == nil {
		if addErr := s.revocations.Add(ctx, claims.TokenID, claims.ExpiresAt, domain.RevocationExpired); addErr != nil {
			log.Warn().Err(addErr).Str("token_id", claims.TokenID).Msg("failed to pin expired token in registry")
		}
	}
	return autherrors.New(autherrors.CodeTokenExpired, "token expired")
}

// Rotate consumes a refresh token and mints a new pair carrying the same
// session nonce and freshly computed fingerprint hashes. The refresh token
// is single-use: it is revoked before the new pair exists, so a replay
// after rotation finds it in the registry.
func (s *TokenService) Rotate(ctx context.Context, refreshValue string, fp domain.Fingerprint) (*domain.TokenPair, error) {
	claims, err := s.Verify(ctx, refreshValue, domain.TokenKindRefresh, fp)
	if err != nil {
		return nil, err
	}

	if err := s.revocations.Add(ctx, claims.TokenID, claims.ExpiresAt, domain.RevocationExpired); err != nil {
		// Fail closed: minting a new pair without consuming the old refresh
		// token would make it multi-use.
		return nil, err
	}

	return s.CreatePair(ctx, claims.Subject, claims.SessionNonce, fp)
}

// Decode recovers claims without verifying the signature. Used by logout,
// which must resolve the principal from tokens that may already be expired.
// Never use the result for authorization.
func (s *TokenService) Decode(tokenValue string) (*domain.TokenClaims, error) {
	raw, err := s.signer.ParseUnverified(tokenValue)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.CodeValidation, "cannot decode token", err)
	}
	claims, err := decodeClaims(raw)
	if err != nil {
		return nil, autherrors.Wrap(autherrors.CodeValidation, "cannot decode token claims", err)
	}
	return claims, nil
}

// Revoke decodes the artifact without requiring a valid signature, so
// already-expired tokens can still be revoked on logout, and inserts a
// registry entry. Idempotent.
func (s *TokenService) Revoke(ctx context.Context, tokenValue string, reason domain.RevocationReason) error {
	raw, err := s.signer.ParseUnverified(tokenValue)
	if err != nil {
		return autherrors.Wrap(autherrors.CodeValidation, "cannot decode token for revocation", err)
	}
	claims, err := decodeClaims(raw)
	if err != nil {
		return autherrors.Wrap(autherrors.CodeValidation, "cannot decode token claims for revocation", err)
	}
	return s.revocations.Add(ctx, claims.TokenID, claims.ExpiresAt, reason)
}

// decodeClaims maps raw JWT claims into the typed token claims.
func decodeClaims(raw jwt.MapClaims) (*domain.TokenClaims, error) {
	sub, err := raw.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("missing sub claim")
	}
	exp, err := raw.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("missing exp claim")
	}
	iat, err := raw.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, errors.New("missing iat claim")
	}
	jti, _ := raw["jti"].(string)
	if jti == "" {
		return nil, errors.New("missing jti claim")
	}
	kind, _ := raw["kind"].(string)
	if kind != string(domain.TokenKindAccess) && kind != string(domain.TokenKindRefresh) {
		return nil, errors.New("missing or unknown kind claim")
	}
	nonce, _ := raw["nonce"].(string)
	uaHash, _ := raw["ua_fp"].(string)
	ipHash, _ := raw["ip_fp"].(string)

	return &domain.TokenClaims{
		Subject:       sub,
		TokenID:       jti,
		Kind:          domain.TokenKind(kind),
		SessionNonce:  nonce,
		UserAgentHash: uaHash,
		IPHash:        ipHash,
		IssuedAt:      iat.Time,
		ExpiresAt:     exp.Time,
	}, nil
}
