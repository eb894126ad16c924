package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
)

// revocationGCBuffer is how long an entry outlives its token's natural
// expiry before lazy garbage collection removes it. After this window the
// signature-level expiry alone rejects any replay.
const revocationGCBuffer = 10 * 24 * time.Hour

// RevocationService is the durable registry of invalidated token IDs.
// Tokens are immutable once signed; this registry is the source of truth
// for "this artifact is no longer acceptable".
type RevocationService struct {
	repo domain.RevocationRepository
}

func NewRevocationService(repo domain.RevocationRepository) *RevocationService {
	return &RevocationService{repo: repo}
}

// Add inserts an entry for the token. Adding an already-revoked token is a
// no-op success with the original reason preserved.
func (s *RevocationService) Add(ctx context.Context, tokenID string, originalExpiresAt time.Time, reason domain.RevocationReason) error {
	entry := &domain.RevocationEntry{
		TokenID:           tokenID,
		OriginalExpiresAt: originalExpiresAt,
		Reason:            reason,
		RevokedAt:         time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return autherrors.Wrap(autherrors.CodeDependency, "failed to record revocation", err)
	}
	return nil
}

// IsRevoked reports registry membership. Entries whose original expiry plus
// the GC buffer has passed are deleted lazily and reported as not revoked.
//
// Fail-open on store outage: the primary signature and expiry checks still
// apply, so a registry outage degrades this secondary check rather than
// rejecting all traffic. Operators must be aware of this trade-off.
func (s *RevocationService) IsRevoked(ctx context.Context, tokenID string) bool {
	entry, err := s.repo.Get(ctx, tokenID)
	if err != nil {
		if !autherrors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Str("token_id", tokenID).
				Msg("revocation registry unreachable, failing open")
		}
		return false
	}

	if time.Now().UTC().After(entry.OriginalExpiresAt.Add(revocationGCBuffer)) {
		if err := s.repo.Delete(ctx, tokenID); err != nil {
			log.Warn().Err(err).Str("token_id", tokenID).Msg("failed to GC stale revocation entry")
		}
		return false
	}
	return true
}

// CleanupExpired batch-deletes entries whose original expiry is older than
// the cutoff. Run periodically out-of-band.
func (s *RevocationService) CleanupExpired(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	deleted, err := s.repo.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, autherrors.Wrap(autherrors.CodeDependency, "revocation cleanup failed", err)
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("cleaned up expired revocation entries")
	}
	return deleted, nil
}
