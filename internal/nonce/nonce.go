// Package nonce issues and verifies the anti-forgery tokens echoed back with
// metric submissions.
//
// Tokens are HMAC-SHA256 over the action name and a coarse time tick, so they
// are stateless server-side and expire on their own. A token verifies during
// the tick it was issued in and the following one.
package nonce

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// DefaultLifetime is how long an issued token stays valid.
const DefaultLifetime = 12 * time.Hour

// tokenLen is the number of hex characters exposed per token.
const tokenLen = 12

// Issuer creates and checks tokens for named actions.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewIssuer creates an issuer with the given shared secret. A zero lifetime
// selects DefaultLifetime.
func NewIssuer(secret []byte, lifetime time.Duration) *Issuer {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Issuer{secret: secret, lifetime: lifetime, now: time.Now}
}

// Issue returns a token bound to the action for the current time tick.
func (i *Issuer) Issue(action string) string {
	return i.token(action, i.tick())
}

// Verify reports whether the token was issued for the action within its
// lifetime. Both the current and the previous tick are accepted, so tokens do
// not all expire at a tick boundary.
func (i *Issuer) Verify(token, action string) bool {
	if token == "" {
		return false
	}
	tick := i.tick()
	for _, t := range []int64{tick, tick - 1} {
		if subtle.ConstantTimeCompare([]byte(token), []byte(i.token(action, t))) == 1 {
			return true
		}
	}
	return false
}

// tick advances every half lifetime; a token therefore survives at least half
// a lifetime and at most a full one.
func (i *Issuer) tick() int64 {
	half := i.lifetime / 2
	return i.now().UnixNano() / int64(half)
}

func (i *Issuer) token(action string, tick int64) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(action))
	mac.Write([]byte{'|'})
	var buf [8]byte
	for n := 0; n < 8; n++ {
		buf[n] = byte(tick >> (8 * n))
	}
	mac.Write(buf[:])
	sum := hex.EncodeToString(mac.Sum(nil))
	return sum[:tokenLen]
}
