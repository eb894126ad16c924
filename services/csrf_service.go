package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelvault/authgate/domain"
	autherrors "github.com/pixelvault/authgate/errors"
)

const csrfTTL = 30 * time.Minute

// CSRFService manages the session-bound synchronizer token each principal
// must echo on state-mutating requests. The access token already proves
// authentication; this token only proves the request originated from a page
// load that received it. It is deliberately not single-use, because a
// client may have several optimistic in-flight mutations sharing one token.
type CSRFService struct {
	repo domain.CSRFRepository
}

func NewCSRFService(repo domain.CSRFRepository) *CSRFService {
	return &CSRFService{repo: repo}
}

// Issue creates a fresh token for the principal, overwriting any prior
// record. Fails closed on store outage.
func (s *CSRFService) Issue(ctx context.Context, principalID string) (string, error) {
	if principalID == "" {
		return "", autherrors.New(autherrors.CodeValidation, "principal is required")
	}

	value, err := randomHex(nonceByteLength)
	if err != nil {
		return "", autherrors.Wrap(autherrors.CodeDependency, "failed to generate csrf token", err)
	}

	record := &domain.CSRFRecord{
		PrincipalID: principalID,
		Value:       value,
		ExpiresAt:   time.Now().UTC().Add(csrfTTL),
	}
	if err := s.repo.Put(ctx, record); err != nil {
		return "", autherrors.Wrap(autherrors.CodeDependency, "failed to store csrf token", err)
	}
	return value, nil
}

// GetOrCreate returns the live token if unexpired, else issues a new one.
func (s *CSRFService) GetOrCreate(ctx context.Context, principalID string) (string, error) {
	record, err := s.repo.Get(ctx, principalID)
	if err == nil && !record.Expired(time.Now().UTC()) {
		return record.Value, nil
	}
	if err != nil && !autherrors.Is(err, domain.ErrNotFound) {
		return "", autherrors.Wrap(autherrors.CodeDependency, "csrf store unavailable", err)
	}
	return s.Issue(ctx, principalID)
}

// Verify checks the supplied token. A match extends the expiry by another
// window; a mismatch deletes the record outright as a defense against
// guessing; an expired record is deleted and fails.
func (s *CSRFService) Verify(ctx context.Context, principalID, suppliedValue string) error {
	if principalID == "" || suppliedValue == "" {
		return autherrors.New(autherrors.CodeCSRFInvalid, "csrf token missing")
	}

	extended, err := s.repo.ExtendMatching(ctx, principalID, suppliedValue, time.Now().UTC().Add(csrfTTL))
	if err != nil {
		return autherrors.Wrap(autherrors.CodeDependency, "csrf store unavailable", err)
	}
	if extended {
		return nil
	}

	record, err := s.repo.Get(ctx, principalID)
	if autherrors.Is(err, domain.ErrNotFound) {
		return autherrors.New(autherrors.CodeCSRFInvalid, "csrf token not found")
	}
	if err != nil {
		return autherrors.Wrap(autherrors.CodeDependency, "csrf store unavailable", err)
	}

	if record.Expired(time.Now().UTC()) {
		if err := s.repo.Delete(ctx, principalID); err != nil {
			log.Warn().Err(err).Str("principal", principalID).Msg("failed to delete expired csrf record")
		}
		return autherrors.New(autherrors.CodeCSRFInvalid, "csrf token expired")
	}

	// Wrong value against a live record: invalidate it so guessing burns
	// the token instead of narrowing it down.
	if err := s.repo.Delete(ctx, principalID); err != nil {
		log.Warn().Err(err).Str("principal", principalID).Msg("failed to delete mismatched csrf record")
	}
	log.Warn().Str("principal", principalID).Msg("csrf token mismatch, record invalidated")
	return autherrors.New(autherrors.CodeCSRFInvalid, "csrf token mismatch")
}

// DeleteFor removes the principal's record. Called on logout.
func (s *CSRFService) DeleteFor(ctx context.Context, principalID string) error {
	if err := s.repo.Delete(ctx, principalID); err != nil {
		return autherrors.Wrap(autherrors.CodeDependency, "failed to delete csrf token", err)
	}
	return nil
}
