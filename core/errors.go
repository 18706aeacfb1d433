package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")

	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeUsed     = errors.New("challenge already used")
	ErrDomainMismatch    = errors.New("challenge domain mismatch")
	ErrPersistFailure    = errors.New("challenge persist failure")

	ErrRateLimited        = errors.New("rate limited")
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account inactive")

	ErrInvalidRole = errors.New("invalid role")
)
