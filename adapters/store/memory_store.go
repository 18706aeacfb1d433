package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/nostrauth/core"
)

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// pruneInterval bounds how often Increment sweeps expired entries.
// Challenges are kept for challengeRetention past their expiry so late
// lookups still report expired rather than not found.
const (
	pruneInterval      = time.Minute
	challengeRetention = time.Hour
)

type challengeKey struct {
	sessionID string
	nonce     string
}

// MemoryStore is an in-memory implementation of every store port. It is
// used by tests and by single-instance development runs.
type MemoryStore struct {
	mu                sync.RWMutex
	invalidatedTokens map[string]time.Time
	challenges        map[challengeKey]core.Challenge
	counters          map[string]counterEntry
	accounts          map[string]core.Account
	now               func() time.Time
	lastPrune         time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
		challenges:        make(map[challengeKey]core.Challenge),
		counters:          make(map[string]counterEntry),
		accounts:          make(map[string]core.Account),
		now:               time.Now,
	}
}

// SetClock overrides the time source used for expiries.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invalidatedTokens[tokenID] = s.now().Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	return !s.now().After(expiryTime), nil
}

// ClaimToken is a compare-and-set on the invalidation entry
func (s *MemoryStore) ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiryTime, exists := s.invalidatedTokens[tokenID]; exists && !now.After(expiryTime) {
		return false, nil
	}
	s.invalidatedTokens[tokenID] = now.Add(expiry)
	return true, nil
}

// CreateChallenge stores a copy of challenge
func (s *MemoryStore) CreateChallenge(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := *challenge
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = s.now()
	}
	s.challenges[challengeKey{ch.SessionID, ch.Nonce}] = ch
	return nil
}

// FindChallenge returns a copy of the stored challenge
func (s *MemoryStore) FindChallenge(ctx context.Context, sessionID, nonce string) (*core.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.challenges[challengeKey{sessionID, nonce}]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	return &ch, nil
}

// MarkChallengeUsed is a compare-and-set on the is_used flag
func (s *MemoryStore) MarkChallengeUsed(ctx context.Context, sessionID, nonce, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{sessionID, nonce}
	ch, ok := s.challenges[key]
	if !ok || ch.IsUsed {
		return false, nil
	}
	ch.IsUsed = true
	ch.EventID = &eventID
	s.challenges[key] = ch
	return true, nil
}

// Increment counts one hit against key inside a single critical section
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration, limit int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastPrune) >= pruneInterval {
		s.pruneLocked(now)
	}

	entry, ok := s.counters[key]
	if !ok || now.After(entry.expiresAt) {
		entry = counterEntry{expiresAt: now.Add(window)}
	}
	entry.count++
	s.counters[key] = entry

	return entry.count, entry.count > limit, nil
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	s.lastPrune = now
	for key, entry := range s.counters {
		if now.After(entry.expiresAt) {
			delete(s.counters, key)
		}
	}
	for id, expiry := range s.invalidatedTokens {
		if now.After(expiry) {
			delete(s.invalidatedTokens, id)
		}
	}
	for key, ch := range s.challenges {
		if now.After(ch.ExpiresAt.Add(challengeRetention)) {
			delete(s.challenges, key)
		}
	}
}

// PutAccount seeds an account record
func (s *MemoryStore) PutAccount(account core.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = account
}

// FindAccount resolves an account by DUID
func (s *MemoryStore) FindAccount(ctx context.Context, duid string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[duid]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return &acc, nil
}
