package assertion

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
)

// Verify checks that evt.ID is the NIP-01 digest of the event and that
// evt.Sig is a valid BIP-340 signature of that digest by evt.PubKey.
//
// Verify never panics: decode and parse failures, as well as panics raised
// by the curve code, are reported as false. Every decoded buffer is zeroed
// before Verify returns.
func Verify(evt *nostr.Event) (ok bool) {
	var g wipeGuard
	defer g.wipe()
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if evt == nil {
		return false
	}

	digest := sha256.Sum256(evt.Serialize())
	g.track(digest[:])

	id, err := hex.DecodeString(evt.ID)
	g.track(id)
	if err != nil || len(id) != idSize {
		return false
	}
	if subtle.ConstantTimeCompare(digest[:], id) != 1 {
		return false
	}

	pub, err := hex.DecodeString(evt.PubKey)
	g.track(pub)
	if err != nil || len(pub) != pubkeySize {
		return false
	}

	rawSig, err := hex.DecodeString(evt.Sig)
	g.track(rawSig)
	if err != nil || len(rawSig) != sigSize {
		return false
	}

	pubKey, err := schnorr.ParsePubKey(pub)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(rawSig)
	if err != nil {
		return false
	}

	return sig.Verify(id, pubKey)
}

// wipeGuard collects byte buffers and zeroes all of them in wipe. It is
// meant to be deferred right after declaration so the wipe runs on every
// return path, including panics.
type wipeGuard struct {
	bufs [][]byte
}

func (g *wipeGuard) track(b []byte) {
	if len(b) > 0 {
		g.bufs = append(g.bufs, b)
	}
}

func (g *wipeGuard) wipe() {
	for _, b := range g.bufs {
		clear(b)
	}
	g.bufs = nil
}
