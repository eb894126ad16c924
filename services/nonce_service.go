package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
)

const (
	nonceTTL         = 5 * time.Minute
	nonceMaxAttempts = 3
	nonceByteLength  = 32 // 256 bits of entropy, rendered as 64 hex chars
)

// StoreProbe is a lightweight connectivity check run before fail-closed
// writes. The mongodb package's Ping satisfies it.
type StoreProbe func(ctx context.Context) error

// NonceService issues and consumes the one-time login challenges. The nonce
// anchors replay resistance for the handshake: consumption and deletion are
// one atomic store operation, so two concurrent requests can never both
// spend the same challenge.
type NonceService struct {
	repo  domain.NonceRepository
	probe StoreProbe
}

func NewNonceService(repo domain.NonceRepository, probe StoreProbe) *NonceService {
	return &NonceService{repo: repo, probe: probe}
}

// Issue creates a fresh challenge for the principal, overwriting any prior
// one. Fails closed when the backing store cannot be reached: a login must
// not proceed without provable challenge freshness.
func (s *NonceService) Issue(ctx context.Context, principalID string) (string, error) {
	if principalID == "" {
		return "", autherrors.New(autherrors.CodeValidation, "principal is required")
	}

	if s.probe != nil {
		if err := s.probe(ctx); err != nil {
			return "", autherrors.Wrap(autherrors.CodeDependency, "challenge store unavailable", err)
		}
	}

	value, err := randomHex(nonceByteLength)
	if err != nil {
		return "", autherrors.Wrap(autherrors.CodeDependency, "failed to generate nonce", err)
	}

	now := time.Now().UTC()
	nonce := &domain.Nonce{
		PrincipalID: principalID,
		Value:       value,
		ExpiresAt:   now.Add(nonceTTL),
		Attempts:    0,
		CreatedAt:   now,
	}
	if err := s.repo.Put(ctx, nonce); err != nil {
		return "", autherrors.Wrap(autherrors.CodeDependency, "failed to store nonce", err)
	}

	log.Debug().Str("principal", principalID).Time("expires_at", nonce.ExpiresAt).Msg("issued login challenge")
	return value, nil
}

// Consume spends the challenge. Exactly one of four outcomes:
//
//   - no record: NONCE_NOT_FOUND
//   - record expired: record deleted, NONCE_EXPIRED
//   - value mismatch: attempt counted, NONCE_MISMATCH, or the record is
//     deleted and NONCE_TOO_MANY_ATTEMPTS once the bound is hit
//   - match: record deleted atomically, success
func (s *NonceService) Consume(ctx context.Context, principalID, suppliedValue string) error {
	if principalID == "" || suppliedValue == "" {
		return autherrors.New(autherrors.CodeValidation, "principal and nonce are required")
	}

	nonce, err := s.repo.ConsumeMatching(ctx, principalID, suppliedValue)
	if err == nil {
		if nonce.Expired(time.Now().UTC()) {
			// Matched but stale. The find-and-delete already removed it.
			return autherrors.New(autherrors.CodeNonceExpired, "challenge expired")
		}
		return nil
	}
	if !autherrors.Is(err, domain.ErrNotFound) {
		return autherrors.Wrap(autherrors.CodeDependency, "challenge store unavailable", err)
	}

	// No record matched the supplied value. Distinguish missing, expired,
	// and mismatched records.
	existing, err := s.repo.Get(ctx, principalID)
	if autherrors.Is(err, domain.ErrNotFound) {
		return autherrors.New(autherrors.CodeNonceNotFound, "no challenge issued for principal")
	}
	if err != nil {
		return autherrors.Wrap(autherrors.CodeDependency, "challenge store unavailable", err)
	}

	if existing.Expired(time.Now().UTC()) {
		if err := s.repo.Delete(ctx, principalID); err != nil {
			log.Warn().Err(err).Str("principal", principalID).Msg("failed to delete expired nonce")
		}
		return autherrors.New(autherrors.CodeNonceExpired, "challenge expired")
	}

	attempts, err := s.repo.IncrementAttempts(ctx, principalID)
	if err != nil {
		if autherrors.Is(err, domain.ErrNotFound) {
			// Lost a race with a concurrent consume or delete.
			return autherrors.New(autherrors.CodeNonceNotFound, "no challenge issued for principal")
		}
		return autherrors.Wrap(autherrors.CodeDependency, "challenge store unavailable", err)
	}

	if attempts >= nonceMaxAttempts {
		if err := s.repo.Delete(ctx, principalID); err != nil {
			log.Warn().Err(err).Str("principal", principalID).Msg("failed to delete exhausted nonce")
		}
		log.Warn().Str("principal", principalID).Int("attempts", attempts).Msg("challenge exhausted by repeated mismatches")
		return autherrors.New(autherrors.CodeNonceTooManyAttempts, "too many mismatched attempts")
	}
	return autherrors.New(autherrors.CodeNonceMismatch, "challenge value mismatch")
}

func randomHex(byteLength int) (string, error) {
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
