// Package storetest provides in-memory repository implementations for
// tests. Each store is safe for concurrent use and can be forced to fail
// via its Err field to exercise dependency-outage branches.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/pixelvault/authgate/domain"
)

// NonceStore is an in-memory domain.NonceRepository.
type NonceStore struct {
	mu      sync.Mutex
	records map[string]*domain.Nonce
	Err     error
}

func NewNonceStore() *NonceStore {
	return &NonceStore{records: make(map[string]*domain.Nonce)}
}

func (s *NonceStore) Put(_ context.Context, nonce *domain.Nonce) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *nonce
	s.records[nonce.PrincipalID] = &clone
	return nil
}

func (s *NonceStore) Get(_ context.Context, principalID string) (*domain.Nonce, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[principalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *NonceStore) ConsumeMatching(_ context.Context, principalID, value string) (*domain.Nonce, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[principalID]
	if !ok || record.Value != value {
		return nil, domain.ErrNotFound
	}
	delete(s.records, principalID)
	return record, nil
}

func (s *NonceStore) IncrementAttempts(_ context.Context, principalID string) (int, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[principalID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	record.Attempts++
	return record.Attempts, nil
}

func (s *NonceStore) Delete(_ context.Context, principalID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, principalID)
	return nil
}

// RevocationStore is an in-memory domain.RevocationRepository.
type RevocationStore struct {
	mu      sync.Mutex
	entries map[string]*domain.RevocationEntry
	Err     error
}

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{entries: make(map[string]*domain.RevocationEntry)}
}

func (s *RevocationStore) Insert(_ context.Context, entry *domain.RevocationEntry) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.TokenID]; exists {
		return nil // first-write-wins
	}
	clone := *entry
	s.entries[entry.TokenID] = &clone
	return nil
}

func (s *RevocationStore) Get(_ context.Context, tokenID string) (*domain.RevocationEntry, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[tokenID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *RevocationStore) Delete(_ context.Context, tokenID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tokenID)
	return nil
}

func (s *RevocationStore) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, entry := range s.entries {
		if entry.OriginalExpiresAt.Before(cutoff) {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Len reports the number of live entries.
func (s *RevocationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// CSRFStore is an in-memory domain.CSRFRepository.
type CSRFStore struct {
	mu      sync.Mutex
	records map[string]*domain.CSRFRecord
	Err     error
}

func NewCSRFStore() *CSRFStore {
	return &CSRFStore{records: make(map[string]*domain.CSRFRecord)}
}

func (s *CSRFStore) Put(_ context.Context, record *domain.CSRFRecord) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.PrincipalID] = &clone
	return nil
}

func (s *CSRFStore) Get(_ context.Context, principalID string) (*domain.CSRFRecord, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[principalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *CSRFStore) ExtendMatching(_ context.Context, principalID, value string, until time.Time) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[principalID]
	if !ok || record.Value != value || record.Expired(time.Now().UTC()) {
		return false, nil
	}
	record.ExpiresAt = until
	return true, nil
}

func (s *CSRFStore) Delete(_ context.Context, principalID string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, principalID)
	return nil
}

// IPListStore is an in-memory domain.IPListRepository.
type IPListStore struct {
	mu    sync.Mutex
	allow map[string]*domain.IPListEntry
	deny  map[string]*domain.IPListEntry
	Err   error
}

func NewIPListStore() *IPListStore {
	return &IPListStore{
		allow: make(map[string]*domain.IPListEntry),
		deny:  make(map[string]*domain.IPListEntry),
	}
}

func (s *IPListStore) IsAllowed(_ context.Context, ip string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.allow[ip]
	return ok && entry.Active(time.Now().UTC()), nil
}

func (s *IPListStore) IsDenied(_ context.Context, ip string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.deny[ip]
	return ok && entry.Active(time.Now().UTC()), nil
}

func (s *IPListStore) Allow(_ context.Context, ip, reason string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allow[ip] = &domain.IPListEntry{IP: ip, Reason: reason, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *IPListStore) Deny(_ context.Context, ip, reason string, until time.Time) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deny[ip] = &domain.IPListEntry{IP: ip, Reason: reason, ExpiresAt: until, CreatedAt: time.Now().UTC()}
	return nil
}

// AuditStore is an in-memory domain.AbuseAuditRepository.
type AuditStore struct {
	mu      sync.Mutex
	entries []*domain.AbuseAuditEntry
	Err     error
}

func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Insert(_ context.Context, entry *domain.AbuseAuditEntry) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *entry
	s.entries = append(s.entries, &clone)
	return nil
}

// Entries returns a snapshot of the recorded entries.
func (s *AuditStore) Entries() []*domain.AbuseAuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.AbuseAuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
