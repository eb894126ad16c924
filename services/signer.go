package services

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidKeyID = errors.New("invalid key id")

// TokenSigner signs and parses tokens with named HMAC keys. The empty key
// ID selects the default key, which makes future key rotation a matter of
// registering a second signer.
type TokenSigner struct {
	secrets map[string][]byte
}

// NewTokenSigner creates an empty signer. At least one key must be added
// before signing.
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{secrets: make(map[string][]byte)}
}

// AddKeySigner registers a secret under the default key ID.
func (s *TokenSigner) AddKeySigner(secretKey string) {
	s.secrets["default"] = []byte(secretKey)
}

// Sign produces a signed HS256 token for the claims.
func (s *TokenSigner) Sign(claims jwt.Claims, keyID string) (string, error) {
	if keyID == "" {
		keyID = "default"
	}
	secret, ok := s.secrets[keyID]
	if !ok {
		return "", ErrInvalidKeyID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and standard time claims. When the only
// problem is expiry the claims are still returned alongside
// jwt.ErrTokenExpired, so callers can apply their expired-token side
// effects.
func (s *TokenSigner) Parse(tokenValue string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenValue, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		secret, ok := s.secrets["default"]
		if !ok {
			return nil, ErrInvalidKeyID
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return claims, jwt.ErrTokenExpired
		}
		return nil, err
	}
	return claims, nil
}

// ParseUnverified decodes claims without checking the signature. Used only
// to recover the token ID and expiry from artifacts being revoked, which
// must tolerate already-expired tokens.
func (s *TokenSigner) ParseUnverified(tokenValue string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenValue, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}
