package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when a record does not exist.
// Services translate it into their own typed errors.
var ErrNotFound = errors.New("record not found")

// NonceRepository persists login challenges. ConsumeMatching must be atomic
// at the store level: of two concurrent consumers supplying the correct
// value, exactly one may receive the record.
type NonceRepository interface {
	// Put stores a challenge, overwriting any prior record for the principal.
	Put(ctx context.Context, nonce *Nonce) error
	// Get returns the live record, or ErrNotFound.
	Get(ctx context.Context, principalID string) (*Nonce, error)
	// ConsumeMatching atomically deletes and returns the record iff its value
	// matches. Returns ErrNotFound when no record matches.
	ConsumeMatching(ctx context.Context, principalID, value string) (*Nonce, error)
	// IncrementAttempts bumps the mismatch counter and returns the new count.
	IncrementAttempts(ctx context.Context, principalID string) (int, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, principalID string) error
}

// RevocationRepository is the durable set of revoked token identifiers.
type RevocationRepository interface {
	// Insert adds an entry. Inserting an existing token ID is a no-op
	// (first-write-wins, preserving the original reason).
	Insert(ctx context.Context, entry *RevocationEntry) error
	// Get returns the entry, or ErrNotFound.
	Get(ctx context.Context, tokenID string) (*RevocationEntry, error)
	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, tokenID string) error
	// DeleteExpiredBefore removes entries whose original expiry precedes the
	// cutoff, returning the number deleted.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CSRFRepository persists per-principal mutation tokens.
type CSRFRepository interface {
	// Put stores a record, overwriting any prior one for the principal.
	Put(ctx context.Context, record *CSRFRecord) error
	// Get returns the live record, or ErrNotFound.
	Get(ctx context.Context, principalID string) (*CSRFRecord, error)
	// ExtendMatching atomically pushes the expiry to until iff the stored
	// value matches and the record is not yet expired. Reports whether a
	// record was extended.
	ExtendMatching(ctx context.Context, principalID, value string, until time.Time) (bool, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, principalID string) error
}

// IPListRepository holds the durable allow and deny lists.
type IPListRepository interface {
	IsAllowed(ctx context.Context, ip string) (bool, error)
	IsDenied(ctx context.Context, ip string) (bool, error)
	Allow(ctx context.Context, ip, reason string) error
	// Deny adds the IP to the deny list until the given time.
	Deny(ctx context.Context, ip, reason string, until time.Time) error
}

// AbuseAuditRepository records exceeded rate checks for audit.
type AbuseAuditRepository interface {
	Insert(ctx context.Context, entry *AbuseAuditEntry) error
}
