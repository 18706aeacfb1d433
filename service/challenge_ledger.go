package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/ports"
)

const nonceSize = 32

// ChallengeLedger owns the lifecycle of single-use challenges
type ChallengeLedger struct {
	store ports.ChallengeStore
	ttl   time.Duration
	now   func() time.Time
}

// NewChallengeLedger creates a ledger issuing challenges that live for ttl
func NewChallengeLedger(store ports.ChallengeStore, ttl time.Duration) *ChallengeLedger {
	return &ChallengeLedger{store: store, ttl: ttl, now: time.Now}
}

// Issue generates and stores a new challenge bound to domain
func (l *ChallengeLedger) Issue(ctx context.Context, domain string) (*core.Challenge, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, errors.New("domain is required")
	}

	// Generate random nonce
	nonceBytes := make([]byte, nonceSize)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	now := l.now()
	challenge := &core.Challenge{
		SessionID: uuid.New().String(),
		Nonce:     nonce,
		Text:      domain + ":" + nonce + ":" + strconv.FormatInt(now.Unix(), 10),
		Domain:    domain,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}

	if err := l.store.CreateChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return challenge, nil
}

// Lookup loads the challenge for a (session id, nonce) pair
func (l *ChallengeLedger) Lookup(ctx context.Context, sessionID, nonce string) (*core.Challenge, error) {
	ch, err := l.store.FindChallenge(ctx, sessionID, nonce)
	if err != nil {
		if errors.Is(err, core.ErrChallengeNotFound) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	return ch, nil
}

// Validate checks expiry, prior use and domain binding, in that order
func (l *ChallengeLedger) Validate(ch *core.Challenge, now time.Time, domain string) error {
	switch {
	case ch.Expired(now):
		return core.ErrChallengeExpired
	case ch.IsUsed:
		return core.ErrChallengeUsed
	case ch.Domain != domain:
		return core.ErrDomainMismatch
	}
	return nil
}

// Consume marks the challenge used by eventID. Losing a concurrent race
// yields core.ErrChallengeUsed; a store failure yields core.ErrPersistFailure.
func (l *ChallengeLedger) Consume(ctx context.Context, ch *core.Challenge, eventID string) error {
	ok, err := l.store.MarkChallengeUsed(ctx, ch.SessionID, ch.Nonce, eventID)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistFailure, err)
	}
	if !ok {
		return core.ErrChallengeUsed
	}
	return nil
}
