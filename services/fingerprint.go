package services

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pixelvault/authgate/domain"
)

// HashContext hashes one request-context component for fingerprint binding.
// The hash, not the raw value, is embedded in tokens: the token stays a
// fixed size and leaks nothing about the client.
func HashContext(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// NewFingerprint computes the fingerprint for a request's user agent and
// client IP. Empty components stay empty, meaning "not bound".
func NewFingerprint(userAgent, ip string) domain.Fingerprint {
	return domain.Fingerprint{
		UserAgentHash: HashContext(userAgent),
		IPHash:        HashContext(ip),
	}
}
