// Package duid derives the opaque account identifier (DUID) from a public
// key. A DUID is HMAC-SHA256 over the bech32 npub, keyed with a server-only
// secret, so it is stable per key and cannot be reversed without the secret.
package duid

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
)

// MinSecretLen is the shortest server secret accepted.
const MinSecretLen = 32

// Size is the length of a DUID in hex characters.
const Size = sha256.Size * 2

var (
	// ErrSecretMissing means the server secret is not configured.
	ErrSecretMissing = errors.New("duid: server secret is not configured")
	ErrInvalidNpub   = errors.New("duid: invalid npub")
)

// Deriver computes DUIDs with a fixed secret.
type Deriver struct {
	secret []byte
}

// New returns a Deriver keyed with secret. The secret is copied.
func New(secret []byte) (*Deriver, error) {
	if len(secret) < MinSecretLen {
		return nil, ErrSecretMissing
	}
	return &Deriver{secret: append([]byte(nil), secret...)}, nil
}

// Derive returns the lowercase hex DUID for npub. A nil Deriver fails closed.
func (d *Deriver) Derive(npub string) (string, error) {
	if d == nil || len(d.secret) == 0 {
		return "", ErrSecretMissing
	}
	if !strings.HasPrefix(npub, "npub1") {
		return "", ErrInvalidNpub
	}

	mac := hmac.New(sha256.New, d.secret)
	mac.Write([]byte(npub))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// EncodeNpub normalises a hex public key into its bech32 npub form.
func EncodeNpub(pubkeyHex string) (string, error) {
	npub, err := nip19.EncodePublicKey(strings.ToLower(pubkeyHex))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNpub, err)
	}
	return npub, nil
}
