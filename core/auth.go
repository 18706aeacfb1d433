package core

import (
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// SignedAssertion is the signed authentication event presented by the caller.
type SignedAssertion = nostr.Event

// Challenge represents a server-issued, single-use authentication challenge
type Challenge struct {
	SessionID string    // Correlates the challenge with the client session
	Nonce     string    // Random nonce embedded in the challenge text
	Text      string    // Exact string the caller must sign as event content
	Domain    string    // Domain the challenge was issued for
	ExpiresAt time.Time // When the challenge expires
	IsUsed    bool      // Set once, when the challenge is consumed
	EventID   *string   // ID of the event that consumed the challenge
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Account is the pre-existing identity record resolved from a DUID
type Account struct {
	ID       string  // DUID
	Npub     string  // bech32 encoded public key
	Nip05    *string // Optional NIP-05 alias
	Role     Role
	IsActive bool
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Session correlation id shared by both tokens
	Subject       string    // DUID of the account
	Nip05         string    // Optional alias carried in both tokens
	Role          Role      // Role at issuance time
	AccessID      string    // Unique id of the access token
	RefreshID     string    // Unique id of the refresh token
	IssuedAt      time.Time // When the session was created
	AccessExpiry  time.Time // When the access capability expires
	RefreshExpiry time.Time // When the refresh capability expires
}

// Scope is the dimension a rate counter is keyed on.
type Scope string

const (
	ScopeCaller  Scope = "caller"
	ScopeAccount Scope = "account"
)

// Counter is the state of one fixed-window rate counter after an increment.
type Counter struct {
	Key         string
	Scope       Scope
	WindowStart time.Time
	Count       int64
	Limit       int64
	Limited     bool
}
