package core

import (
	"net/http"
	"time"
)

// State is a terminal outcome of one authentication attempt.
type State int

const (
	StateReceived State = iota
	StateRateLimitedByCaller
	StateStructureInvalid
	StateChallengeNotFound
	StateChallengeLookupFailed
	StateChallengeInvalid
	StateEventInvalid
	StateSignatureInvalid
	StateIdentifierDerivationFailed
	StateRateLimitedByAccount
	StateAccountNotFound
	StateAccountInactive
	StateAccountLookupFailed
	StateChallengeConsumeFailed
	StateSessionIssueFailed
	StateSessionIssued
)

var stateNames = map[State]string{
	StateReceived:                   "received",
	StateRateLimitedByCaller:        "rate_limited_by_caller",
	StateStructureInvalid:           "structure_invalid",
	StateChallengeNotFound:          "challenge_not_found",
	StateChallengeLookupFailed:      "challenge_lookup_failed",
	StateChallengeInvalid:           "challenge_invalid",
	StateEventInvalid:               "event_invalid",
	StateSignatureInvalid:           "signature_invalid",
	StateIdentifierDerivationFailed: "identifier_derivation_failed",
	StateRateLimitedByAccount:       "rate_limited_by_account",
	StateAccountNotFound:            "account_not_found",
	StateAccountInactive:            "account_inactive",
	StateAccountLookupFailed:        "account_lookup_failed",
	StateChallengeConsumeFailed:     "challenge_consume_failed",
	StateSessionIssueFailed:         "session_issue_failed",
	StateSessionIssued:              "session_issued",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// HTTPStatus maps the state to its response status code.
func (s State) HTTPStatus() int {
	switch s {
	case StateSessionIssued:
		return http.StatusOK
	case StateRateLimitedByCaller, StateRateLimitedByAccount:
		return http.StatusTooManyRequests
	case StateStructureInvalid:
		return http.StatusBadRequest
	case StateChallengeNotFound, StateChallengeInvalid, StateEventInvalid,
		StateSignatureInvalid, StateAccountInactive:
		return http.StatusUnauthorized
	case StateAccountNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message is the public, generic message for the state.
func (s State) Message() string {
	switch s {
	case StateSessionIssued:
		return "Authenticated"
	case StateRateLimitedByCaller, StateRateLimitedByAccount:
		return "Too many authentication attempts, please try again later"
	case StateStructureInvalid:
		return "Invalid request"
	case StateChallengeNotFound, StateChallengeInvalid:
		return "Invalid or expired challenge"
	case StateEventInvalid:
		return "Invalid authentication event"
	case StateSignatureInvalid:
		return "Invalid signature"
	case StateAccountNotFound:
		return "Account not found"
	case StateAccountInactive:
		return "Authentication failed"
	default:
		return "Internal server error"
	}
}

// AuthError is returned by the orchestrator for every non-success outcome.
type AuthError struct {
	State State
	Err   error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.State.String()
	}
	return e.State.String() + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// AuthRequest is the body of a sign-in request.
type AuthRequest struct {
	SignedEvent *SignedAssertion `json:"signedEvent"`
	Domain      string           `json:"domain"`
	SessionID   string           `json:"sessionId"`
	Nonce       string           `json:"nonce"`
	UserRole    string           `json:"userRole,omitempty"`
}

// Cookie is a transport-neutral Set-Cookie directive.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	MaxAge   int
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
}

// IssuedSession is the product of the session issuer.
type IssuedSession struct {
	Session       *Session
	AccessToken   string
	RefreshToken  string
	RefreshCookie Cookie
}

// AuthResult is the successful outcome of an authentication attempt.
type AuthResult struct {
	Account     *Account
	Session     *IssuedSession
	Sovereignty SovereigntyStatus
	At          time.Time
}

// LoginEvent is published after a session is issued.
type LoginEvent struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Domain    string    `json:"domain"`
	At        time.Time `json:"at"`
}
