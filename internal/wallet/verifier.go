// Package wallet provides the signature-verification capability used by the
// login handshake. Principals are hex-encoded ed25519 public keys; proving
// possession of the matching private key over a one-time challenge replaces
// any password.
package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// Verifier checks a detached signature over a message for a public key.
type Verifier interface {
	Verify(message, signature []byte, publicKey ed25519.PublicKey) bool
}

// Ed25519Verifier verifies wallet signatures with stdlib ed25519.
type Ed25519Verifier struct{}

func NewEd25519Verifier() Ed25519Verifier { return Ed25519Verifier{} }

func (Ed25519Verifier) Verify(message, signature []byte, publicKey ed25519.PublicKey) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// ParsePublicKey decodes a principal ID into its public key.
func ParsePublicKey(principalID string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(principalID)
	if err != nil {
		return nil, fmt.Errorf("principal is not valid hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("principal must be a %d-byte public key, got %d bytes", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// ParseSignature decodes a hex-encoded detached signature.
func ParseSignature(signature string) ([]byte, error) {
	raw, err := hex.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("signature is not valid hex: %w", err)
	}
	if len(raw) != ed25519.SignatureSize {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", ed25519.SignatureSize, len(raw))
	}
	return raw, nil
}
