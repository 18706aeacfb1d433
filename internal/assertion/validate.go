// Package assertion checks the signed authentication events presented at
// sign-in: their shape and freshness, and their schnorr signature.
package assertion

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// AuthKind is the event kind accepted for authentication (NIP-42).
const AuthKind = nostr.KindClientAuthentication

// MaxSkew bounds how far created_at may drift from the verification time,
// in either direction.
const MaxSkew = 5 * time.Minute

const (
	idSize     = 32
	pubkeySize = 32
	sigSize    = 64
)

var (
	ErrMissingFields     = errors.New("event is missing required fields")
	ErrBadFormat         = errors.New("event fields are malformed")
	ErrWrongKind         = errors.New("event kind is not an authentication event")
	ErrChallengeMismatch = errors.New("event content does not match challenge")
	ErrStale             = errors.New("event timestamp outside allowed window")
)

// Validate runs the structural and temporal checks on evt in a fixed order
// and returns the first failure.
func Validate(evt *nostr.Event, challenge string, now time.Time) error {
	if evt == nil || evt.ID == "" || evt.PubKey == "" || evt.CreatedAt == 0 || evt.Sig == "" {
		return ErrMissingFields
	}

	if !hexOfSize(evt.Sig, sigSize) || !hexOfSize(evt.PubKey, pubkeySize) || !hexOfSize(evt.ID, idSize) {
		return ErrBadFormat
	}

	if evt.Kind != AuthKind {
		return ErrWrongKind
	}

	if evt.Content != challenge {
		return ErrChallengeMismatch
	}

	skew := now.Sub(evt.CreatedAt.Time())
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxSkew {
		return ErrStale
	}

	return nil
}

// hexOfSize reports whether s is plain hex (either case, no prefix) that
// decodes to exactly size bytes.
func hexOfSize(s string, size int) bool {
	if len(s) != hex.EncodedLen(size) {
		return false
	}
	b, err := hex.DecodeString(s)
	clear(b)
	return err == nil
}
