package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/internal/assertion"
	"github.com/layer-3/nostrauth/internal/duid"
	"github.com/layer-3/nostrauth/ports"
)

// AuthService handles authentication business logic
type AuthService struct {
	challenges *ChallengeLedger
	limiter    *RateLimiter
	deriver    *duid.Deriver
	accounts   ports.AccountStore
	sessions   *SessionIssuer
	eventPub   ports.EventPublisher
	metrics    ports.MetricsRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service. A nil deriver is
// accepted: every sign-in then fails closed until the secret is configured.
func NewAuthService(
	challenges *ChallengeLedger,
	limiter *RateLimiter,
	deriver *duid.Deriver,
	accounts ports.AccountStore,
	sessions *SessionIssuer,
	eventPub ports.EventPublisher,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *AuthService {
	if eventPub == nil {
		eventPub = noopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		challenges: challenges,
		limiter:    limiter,
		deriver:    deriver,
		accounts:   accounts,
		sessions:   sessions,
		eventPub:   eventPub,
		metrics:    metrics,
		logger:     logger.Named("auth"),
		now:        time.Now,
	}
}

// CreateChallenge issues a fresh challenge for domain
func (s *AuthService) CreateChallenge(ctx context.Context, caller, domain string) (*core.Challenge, error) {
	if _, err := s.limiter.Allow(ctx, core.ScopeCaller, caller); err != nil {
		return nil, &core.AuthError{State: core.StateRateLimitedByCaller, Err: err}
	}

	ch, err := s.challenges.Issue(ctx, domain)
	if err != nil {
		s.logger.Warn("challenge issuance failed", zap.Error(err))
		return nil, err
	}
	return ch, nil
}

// Authenticate runs one sign-in attempt through the fixed pipeline. Every
// failure is a *core.AuthError carrying the terminal state.
func (s *AuthService) Authenticate(ctx context.Context, caller string, req *core.AuthRequest) (*core.AuthResult, error) {
	if _, err := s.limiter.Allow(ctx, core.ScopeCaller, caller); err != nil {
		return nil, s.fail(core.StateRateLimitedByCaller, err)
	}

	if err := checkShape(req); err != nil {
		return nil, s.fail(core.StateStructureInvalid, err)
	}
	evt := req.SignedEvent

	ch, err := s.challenges.Lookup(ctx, req.SessionID, req.Nonce)
	if err != nil {
		if errors.Is(err, core.ErrChallengeNotFound) {
			return nil, s.fail(core.StateChallengeNotFound, err)
		}
		return nil, s.fail(core.StateChallengeLookupFailed, err)
	}

	now := s.now()
	if err := s.challenges.Validate(ch, now, req.Domain); err != nil {
		return nil, s.fail(core.StateChallengeInvalid, err)
	}

	if err := assertion.Validate(evt, ch.Text, now); err != nil {
		return nil, s.fail(core.StateEventInvalid, err)
	}

	if !assertion.Verify(evt) {
		return nil, s.fail(core.StateSignatureInvalid, core.ErrInvalidSignature)
	}

	npub, err := duid.EncodeNpub(evt.PubKey)
	if err != nil {
		return nil, s.fail(core.StateIdentifierDerivationFailed, err)
	}
	id, err := s.deriver.Derive(npub)
	if err != nil {
		return nil, s.fail(core.StateIdentifierDerivationFailed, err)
	}

	if _, err := s.limiter.Allow(ctx, core.ScopeAccount, id); err != nil {
		return nil, s.fail(core.StateRateLimitedByAccount, err)
	}

	account, err := s.accounts.FindAccount(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			return nil, s.fail(core.StateAccountNotFound, err)
		}
		return nil, s.fail(core.StateAccountLookupFailed, err)
	}
	if !account.IsActive {
		return nil, s.fail(core.StateAccountInactive, core.ErrAccountInactive)
	}

	if err := s.challenges.Consume(ctx, ch, evt.ID); err != nil {
		if errors.Is(err, core.ErrChallengeUsed) {
			return nil, s.fail(core.StateChallengeInvalid, err)
		}
		return nil, s.fail(core.StateChallengeConsumeFailed, err)
	}

	issued, err := s.sessions.Issue(account)
	if err != nil {
		return nil, s.fail(core.StateSessionIssueFailed, err)
	}

	s.metrics.RecordOutcome(core.StateSessionIssued)
	s.logger.Info("session issued",
		zap.String("session_id", issued.Session.ID),
		zap.Stringer("role", account.Role),
	)

	// Publishing is best effort; the session already exists
	if err := s.eventPub.PublishLogin(ctx, core.LoginEvent{
		SessionID: issued.Session.ID,
		Role:      account.Role.String(),
		Domain:    ch.Domain,
		At:        now,
	}); err != nil {
		s.logger.Warn("failed to publish login event", zap.Error(err))
	}

	return &core.AuthResult{
		Account:     account,
		Session:     issued,
		Sovereignty: account.Role.Sovereignty(),
		At:          now,
	}, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*core.IssuedSession, error) {
	issued, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh failed: %w", err)
	}
	return issued, nil
}

// Logout invalidates a refresh token. An already expired token is not an
// error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessions.Revoke(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("logout failed: %w", err)
	}

	// Publish logout event for cross-instance notifications
	if err := s.eventPub.PublishLogout(ctx, session.ID, session.RefreshID); err != nil {
		s.logger.Warn("failed to publish logout event", zap.Error(err))
	}
	return nil
}

// ValidateAccessToken returns the session behind a live access token
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	return s.sessions.ValidateAccess(ctx, accessToken)
}

// ClearRefreshCookie returns the directive that removes the refresh cookie
func (s *AuthService) ClearRefreshCookie() core.Cookie {
	return s.sessions.ClearCookie()
}

func (s *AuthService) fail(state core.State, err error) error {
	s.metrics.RecordOutcome(state)

	// Only the state name is logged; identifiers and key material never are.
	if state.HTTPStatus() >= 500 {
		s.logger.Error("authentication failed", zap.Stringer("state", state), zap.Error(err))
	} else {
		s.logger.Info("authentication rejected", zap.Stringer("state", state))
	}
	return &core.AuthError{State: state, Err: err}
}

func checkShape(req *core.AuthRequest) error {
	if req == nil || req.SignedEvent == nil {
		return errors.New("signed event is required")
	}
	if req.Domain == "" || req.SessionID == "" || req.Nonce == "" {
		return errors.New("domain, session id and nonce are required")
	}
	if req.UserRole != "" {
		if _, err := core.ParseRole(req.UserRole); err != nil {
			return err
		}
	}
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishLogin(context.Context, core.LoginEvent) error { return nil }

func (noopPublisher) PublishLogout(context.Context, string, string) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordOutcome(core.State) {}
