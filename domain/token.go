package domain

import "time"

// TokenKind discriminates access from refresh tokens. The kind is embedded
// in the signed token and checked on every verification; an access token
// must never validate where a refresh token is expected, and vice versa.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Fingerprint holds the sha256 hex hashes of the request context a token is
// bound to. Empty components are treated as "not bound".
type Fingerprint struct {
	UserAgentHash string
	IPHash        string
}

// TokenClaims is the decoded, self-describing content of a signed token.
// Tokens are immutable once issued; invalidation is modeled by revocation
// registry membership, never by mutating the artifact.
type TokenClaims struct {
	Subject       string    `json:"sub"`
	TokenID       string    `json:"jti"`
	Kind          TokenKind `json:"kind"`
	SessionNonce  string    `json:"nonce"`
	UserAgentHash string    `json:"ua_fp,omitempty"`
	IPHash        string    `json:"ip_fp,omitempty"`
	IssuedAt      time.Time `json:"iat"`
	ExpiresAt     time.Time `json:"exp"`
}

// TokenPair is a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	AccessClaims  *TokenClaims
	RefreshClaims *TokenClaims
}
