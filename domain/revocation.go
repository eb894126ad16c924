package domain

import "time"

// RevocationReason records why a token was invalidated. "expired" doubles
// as "consumed" for rotated refresh tokens: the artifact is spent even
// though its signature is still valid.
type RevocationReason string

const (
	RevocationLogout   RevocationReason = "logout"
	RevocationSecurity RevocationReason = "security"
	RevocationExpired  RevocationReason = "expired"
)

// RevocationEntry marks a token identifier as invalid. Entries carry the
// token's original expiry so they can be garbage-collected once the
// signature-level expiry alone would reject a replay.
type RevocationEntry struct {
	TokenID           string           `bson:"_id"                 json:"token_id"`
	OriginalExpiresAt time.Time        `bson:"original_expires_at" json:"original_expires_at"`
	Reason            RevocationReason `bson:"reason"              json:"reason"`
	RevokedAt         time.Time        `bson:"revoked_at"          json:"revoked_at"`
}
