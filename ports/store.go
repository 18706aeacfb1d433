package ports

import (
	"context"
	"time"

	"github.com/layer-3/nostrauth/core"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
	// ClaimToken invalidates tokenID only if it is not invalidated yet. It
	// reports false when the token was already claimed or revoked.
	ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error)
}

// ChallengeStore persists issued challenges.
type ChallengeStore interface {
	CreateChallenge(ctx context.Context, challenge *core.Challenge) error
	// FindChallenge returns core.ErrChallengeNotFound when no row matches.
	FindChallenge(ctx context.Context, sessionID, nonce string) (*core.Challenge, error)
	// MarkChallengeUsed flips is_used only if it is still false. It reports
	// false when another caller consumed the challenge first.
	MarkChallengeUsed(ctx context.Context, sessionID, nonce, eventID string) (bool, error)
}

// CounterStore increments fixed-window counters atomically.
type CounterStore interface {
	// Increment adds one to key, starting a window of the given length on the
	// first hit, and reports whether the new count exceeds limit.
	Increment(ctx context.Context, key string, window time.Duration, limit int64) (count int64, limited bool, err error)
}

// AccountStore resolves accounts by DUID. It never creates them.
type AccountStore interface {
	// FindAccount returns core.ErrAccountNotFound when no account matches.
	FindAccount(ctx context.Context, duid string) (*core.Account, error)
}
