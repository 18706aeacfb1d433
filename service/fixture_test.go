package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/layer-3/nostrauth/adapters/store"
	"github.com/layer-3/nostrauth/adapters/tokenizer"
	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/internal/assertion"
	"github.com/layer-3/nostrauth/internal/duid"
	"github.com/layer-3/nostrauth/ports"
)

const testDomain = "app.example.com"

var testDUIDSecret = []byte(strings.Repeat("d", 32))

type recordingPublisher struct {
	mu      sync.Mutex
	logins  []core.LoginEvent
	logouts []string
	err     error
}

func (p *recordingPublisher) PublishLogin(_ context.Context, evt core.LoginEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins = append(p.logins, evt)
	return p.err
}

func (p *recordingPublisher) PublishLogout(_ context.Context, sessionID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, sessionID)
	return p.err
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[core.State]int
}

func (m *recordingMetrics) RecordOutcome(state core.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[core.State]int)
	}
	m.counts[state]++
}

func (m *recordingMetrics) count(state core.State) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[state]
}

// failingStore wraps the memory store and breaks selected operations.
type failingStore struct {
	*store.MemoryStore
	findErr      error
	markErr      error
	incrementErr error
	accountErr   error
	claimErr     error
}

func (s *failingStore) FindChallenge(ctx context.Context, sessionID, nonce string) (*core.Challenge, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.MemoryStore.FindChallenge(ctx, sessionID, nonce)
}

func (s *failingStore) MarkChallengeUsed(ctx context.Context, sessionID, nonce, eventID string) (bool, error) {
	if s.markErr != nil {
		return false, s.markErr
	}
	return s.MemoryStore.MarkChallengeUsed(ctx, sessionID, nonce, eventID)
}

func (s *failingStore) Increment(ctx context.Context, key string, window time.Duration, limit int64) (int64, bool, error) {
	if s.incrementErr != nil {
		return 0, false, s.incrementErr
	}
	return s.MemoryStore.Increment(ctx, key, window, limit)
}

func (s *failingStore) FindAccount(ctx context.Context, id string) (*core.Account, error) {
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	return s.MemoryStore.FindAccount(ctx, id)
}

func (s *failingStore) ClaimToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	return s.MemoryStore.ClaimToken(ctx, tokenID, expiry)
}

type fixtureOptions struct {
	callerLimit  int64
	accountLimit int64
	noSecret     bool
}

type fixture struct {
	svc     *AuthService
	store   *failingStore
	tokens  *tokenizer.JWTTokenizer
	pub     *recordingPublisher
	metrics *recordingMetrics

	mu  sync.Mutex
	now time.Time

	sk, pk string
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	if opts.callerLimit == 0 {
		opts.callerLimit = 100
	}
	if opts.accountLimit == 0 {
		opts.accountLimit = 100
	}

	f := &fixture{
		store:   &failingStore{MemoryStore: store.NewMemoryStore()},
		pub:     &recordingPublisher{},
		metrics: &recordingMetrics{},
		now:     time.Now().Truncate(time.Second),
		sk:      nostr.GeneratePrivateKey(),
	}
	pk, err := nostr.GetPublicKey(f.sk)
	require.NoError(t, err)
	f.pk = pk
	f.store.SetClock(f.clock)

	f.tokens, err = tokenizer.NewJWTTokenizer(tokenizer.Config{
		Secret:   []byte(strings.Repeat("j", 32)),
		Issuer:   "nostrauth",
		Audience: "nostrauth-api",
		Now:      f.clock,
	})
	require.NoError(t, err)

	var deriver *duid.Deriver
	if !opts.noSecret {
		deriver, err = duid.New(testDUIDSecret)
		require.NoError(t, err)
	}

	ledger := NewChallengeLedger(f.store, 5*time.Minute)
	ledger.now = f.clock
	limiter := NewRateLimiter(f.store,
		RatePolicy{Limit: opts.callerLimit, Window: time.Minute},
		RatePolicy{Limit: opts.accountLimit, Window: 15 * time.Minute},
	)
	limiter.now = f.clock
	sessions := NewSessionIssuer(f.tokens, f.store, SessionConfig{
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
		SecureCookie: true,
	})
	sessions.now = f.clock

	f.svc = NewAuthService(ledger, limiter, deriver, f.store, sessions, f.pub, f.metrics, zaptest.NewLogger(t))
	f.svc.now = f.clock
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// duid returns the identifier of the fixture key.
func (f *fixture) duid(t *testing.T) string {
	t.Helper()
	npub, err := duid.EncodeNpub(f.pk)
	require.NoError(t, err)
	d, err := duid.New(testDUIDSecret)
	require.NoError(t, err)
	id, err := d.Derive(npub)
	require.NoError(t, err)
	return id
}

func (f *fixture) register(t *testing.T, role core.Role, active bool) core.Account {
	t.Helper()
	npub, err := duid.EncodeNpub(f.pk)
	require.NoError(t, err)
	alias := "alice@example.com"
	acc := core.Account{ID: f.duid(t), Npub: npub, Nip05: &alias, Role: role, IsActive: active}
	f.store.PutAccount(acc)
	return acc
}

func (f *fixture) challenge(t *testing.T) *core.Challenge {
	t.Helper()
	ch, err := f.svc.CreateChallenge(context.Background(), "10.0.0.1", testDomain)
	require.NoError(t, err)
	return ch
}

func (f *fixture) sign(t *testing.T, content string, at time.Time) *nostr.Event {
	t.Helper()
	evt := &nostr.Event{
		PubKey:    f.pk,
		CreatedAt: nostr.Timestamp(at.Unix()),
		Kind:      assertion.AuthKind,
		Tags:      nostr.Tags{{"challenge", content}},
		Content:   content,
	}
	require.NoError(t, evt.Sign(f.sk))
	return evt
}

func (f *fixture) request(t *testing.T, ch *core.Challenge) *core.AuthRequest {
	t.Helper()
	return &core.AuthRequest{
		SignedEvent: f.sign(t, ch.Text, f.clock()),
		Domain:      ch.Domain,
		SessionID:   ch.SessionID,
		Nonce:       ch.Nonce,
	}
}

func requireState(t *testing.T, err error, want core.State) *core.AuthError {
	t.Helper()
	require.Error(t, err)
	var authErr *core.AuthError
	require.True(t, errors.As(err, &authErr), "expected *core.AuthError, got %T: %v", err, err)
	require.Equal(t, want, authErr.State, "state %s, want %s (%v)", authErr.State, want, authErr.Err)
	return authErr
}

var _ ports.EventPublisher = (*recordingPublisher)(nil)
