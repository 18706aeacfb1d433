package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/ports"
)

const (
	// RefreshCookieName is the cookie carrying the refresh token
	RefreshCookieName = "refresh_token"
	// RefreshCookiePath scopes the refresh cookie to the auth endpoints
	RefreshCookiePath = "/auth"
)

// SessionConfig holds token lifetimes and cookie policy
type SessionConfig struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SecureCookie bool
}

// SessionIssuer mints, rotates and revokes access/refresh token pairs
type SessionIssuer struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	cfg       SessionConfig
	now       func() time.Time
}

// NewSessionIssuer creates a new session issuer
func NewSessionIssuer(tokenizer ports.Tokenizer, store ports.Store, cfg SessionConfig) *SessionIssuer {
	return &SessionIssuer{tokenizer: tokenizer, store: store, cfg: cfg, now: time.Now}
}

// Issue creates a new session for account
func (i *SessionIssuer) Issue(account *core.Account) (*core.IssuedSession, error) {
	if account == nil || account.ID == "" {
		return nil, errors.New("account is required")
	}

	var nip05 string
	if account.Nip05 != nil {
		nip05 = *account.Nip05
	}
	return i.mint(uuid.New().String(), account.ID, nip05, account.Role)
}

// Refresh rotates the refresh token and issues new access and refresh tokens
// under the same session id
func (i *SessionIssuer) Refresh(ctx context.Context, refreshToken string) (*core.IssuedSession, error) {
	session, err := i.tokenizer.RefreshTokenToSession(refreshToken)
	if err != nil {
		return nil, err
	}

	// Claim the old refresh token for the rest of its lifetime; only the
	// winner of the claim gets a new pair
	claimed, err := i.store.ClaimToken(ctx, session.RefreshID, i.remaining(session.RefreshExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to claim refresh token: %w", err)
	}
	if !claimed {
		return nil, core.ErrTokenInvalidated
	}

	return i.mint(session.ID, session.Subject, session.Nip05, session.Role)
}

// Revoke invalidates a refresh token, and with it every access token minted
// alongside it
func (i *SessionIssuer) Revoke(ctx context.Context, refreshToken string) (*core.Session, error) {
	session, err := i.tokenizer.RefreshTokenToSession(refreshToken)
	if err != nil {
		return nil, err
	}

	if err := i.store.InvalidateToken(ctx, session.RefreshID, i.remaining(session.RefreshExpiry)); err != nil {
		return nil, fmt.Errorf("failed to invalidate token: %w", err)
	}
	return session, nil
}

// ValidateAccess parses an access token and checks its refresh token has not
// been revoked
func (i *SessionIssuer) ValidateAccess(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := i.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, err
	}

	if i.now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := i.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}
	return session, nil
}

// ClearCookie returns a directive that deletes the refresh cookie
func (i *SessionIssuer) ClearCookie() core.Cookie {
	c := i.cookie("")
	c.MaxAge = -1
	return c
}

func (i *SessionIssuer) mint(sessionID, subject, nip05 string, role core.Role) (*core.IssuedSession, error) {
	now := i.now()
	session := &core.Session{
		ID:            sessionID,
		Subject:       subject,
		Nip05:         nip05,
		Role:          role,
		AccessID:      uuid.New().String(),
		RefreshID:     uuid.New().String(),
		IssuedAt:      now,
		AccessExpiry:  now.Add(i.cfg.AccessTTL),
		RefreshExpiry: now.Add(i.cfg.RefreshTTL),
	}

	accessToken, err := i.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := i.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &core.IssuedSession{
		Session:       session,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		RefreshCookie: i.cookie(refreshToken),
	}, nil
}

func (i *SessionIssuer) cookie(value string) core.Cookie {
	return core.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     RefreshCookiePath,
		MaxAge:   int(i.cfg.RefreshTTL / time.Second),
		HTTPOnly: true,
		Secure:   i.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// remaining is the revocation TTL for a token expiring at expiry. Already
// expired tokens keep a short record to cover clock drift.
func (i *SessionIssuer) remaining(expiry time.Time) time.Duration {
	d := expiry.Sub(i.now())
	if d <= 0 {
		return time.Hour
	}
	return d
}
