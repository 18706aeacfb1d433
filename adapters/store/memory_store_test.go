package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/ports"
)

var (
	_ ports.Store          = (*MemoryStore)(nil)
	_ ports.ChallengeStore = (*MemoryStore)(nil)
	_ ports.CounterStore   = (*MemoryStore)(nil)
	_ ports.AccountStore   = (*MemoryStore)(nil)
	_ ports.Store          = (*RedisStore)(nil)
	_ ports.CounterStore   = (*RedisStore)(nil)
	_ ports.ChallengeStore = (*PostgresStore)(nil)
	_ ports.AccountStore   = (*PostgresStore)(nil)
)

func TestMemoryChallengeLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindChallenge(ctx, "sid", "nonce")
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)

	require.NoError(t, s.CreateChallenge(ctx, &core.Challenge{
		SessionID: "sid", Nonce: "nonce", Text: "text", Domain: "example.com", ExpiresAt: time.Now().Add(time.Minute),
	}))

	ch, err := s.FindChallenge(ctx, "sid", "nonce")
	require.NoError(t, err)
	assert.False(t, ch.IsUsed)
	assert.False(t, ch.CreatedAt.IsZero())

	ok, err := s.MarkChallengeUsed(ctx, "sid", "nonce", "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkChallengeUsed(ctx, "sid", "nonce", "evt-2")
	require.NoError(t, err)
	assert.False(t, ok)

	ch, err = s.FindChallenge(ctx, "sid", "nonce")
	require.NoError(t, err)
	assert.True(t, ch.IsUsed)
	require.NotNil(t, ch.EventID)
	assert.Equal(t, "evt-1", *ch.EventID)
}

func TestMemoryMarkChallengeUsed_SingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateChallenge(ctx, &core.Challenge{SessionID: "sid", Nonce: "nonce"}))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.MarkChallengeUsed(ctx, "sid", "nonce", "evt"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryIncrement(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := int64(1); i <= 2; i++ {
		count, limited, err := s.Increment(ctx, "k", time.Minute, 2)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.False(t, limited)
	}
	count, limited, err := s.Increment(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.True(t, limited)

	now = now.Add(2 * time.Minute)
	count, limited, err = s.Increment(ctx, "k", time.Minute, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.False(t, limited)
}

func TestMemoryInvalidateToken(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.InvalidateToken(ctx, "jti", time.Minute))
	revoked, err := s.IsTokenInvalidated(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(time.Hour)
	revoked, err = s.IsTokenInvalidated(ctx, "jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryAccounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindAccount(ctx, "duid")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)

	s.PutAccount(core.Account{ID: "duid", Npub: "npub1abc", Role: core.RoleAdult, IsActive: true})
	acc, err := s.FindAccount(ctx, "duid")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdult, acc.Role)
}

func TestMemoryClaimToken_SingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ClaimToken(ctx, "rid", time.Hour)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	revoked, err := s.IsTokenInvalidated(ctx, "rid")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryClaimToken_RevokedAndExpired(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.InvalidateToken(ctx, "rid", time.Minute))
	ok, err := s.ClaimToken(ctx, "rid", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.ClaimToken(ctx, "rid", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryIncrement_PrunesExpiredEntries(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		_, _, err := s.Increment(ctx, fmt.Sprintf("caller-%d", i), time.Minute, 10)
		require.NoError(t, err)
	}
	require.NoError(t, s.InvalidateToken(ctx, "rid", time.Minute))
	require.NoError(t, s.CreateChallenge(ctx, &core.Challenge{
		SessionID: "sid",
		Nonce:     "nonce",
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	now = now.Add(2 * time.Hour)
	_, _, err := s.Increment(ctx, "fresh", time.Minute, 10)
	require.NoError(t, err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Len(t, s.counters, 1)
	assert.Contains(t, s.counters, "fresh")
	assert.Empty(t, s.invalidatedTokens)
	assert.Empty(t, s.challenges)
}

func TestMemoryIncrement_KeepsRecentlyExpiredChallenge(t *testing.T) {
	s := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.CreateChallenge(ctx, &core.Challenge{
		SessionID: "sid",
		Nonce:     "nonce",
		ExpiresAt: now.Add(5 * time.Minute),
	}))

	now = now.Add(10 * time.Minute)
	_, _, err := s.Increment(ctx, "k", time.Minute, 10)
	require.NoError(t, err)

	ch, err := s.FindChallenge(ctx, "sid", "nonce")
	require.NoError(t, err)
	assert.True(t, ch.Expired(now))
}
