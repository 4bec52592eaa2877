package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/trezcool/masomo-qa/core"
)

// Nonce actions
const (
	NonceActionFrontend = "qa-frontend"
	NonceActionAdmin    = "qa-admin"
)

const (
	defaultNonceLifetime = 24 * time.Hour
	minNonceLifetime     = time.Minute
)

var (
	nonceSalt = []byte("masomo.qa.core.user.nonce")
	NowFunc   = time.Now // mockable
)

// Nonces issues and verifies anti-forgery tokens bound to a user, an action and a time tick.
// A nonce stays valid for at least half and at most the full lifetime.
type Nonces struct {
	key      [32]byte
	lifetime time.Duration
}

func NewNonces(conf *core.Config) *Nonces {
	lifetime := conf.Server.NonceLifetime
	switch {
	case lifetime <= 0:
		lifetime = defaultNonceLifetime
	case lifetime < minNonceLifetime:
		lifetime = minNonceLifetime
	}
	return &Nonces{
		key:      sha256.Sum256(append(append([]byte{}, nonceSalt...), conf.SecretKey...)),
		lifetime: lifetime,
	}
}

// Make returns the current nonce for userID (empty for anonymous users) and action.
func (n *Nonces) Make(userID, action string) string {
	return n.makeWithTick(userID, action, n.tick(NowFunc()))
}

// Verify returns core.ErrSecurityCheckFailed unless nonce was issued for userID and action
// during the current or the previous tick.
func (n *Nonces) Verify(userID, action, nonce string) error {
	if nonce == "" {
		return core.ErrSecurityCheckFailed
	}
	tick := n.tick(NowFunc())
	for _, t := range []int64{tick, tick - 1} {
		expected := n.makeWithTick(userID, action, t)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(nonce)) == 1 {
			return nil
		}
	}
	return core.ErrSecurityCheckFailed
}

func (n *Nonces) tick(t time.Time) int64 {
	half := int64(n.lifetime / 2)
	return (t.UnixNano() + half - 1) / half
}

func (n *Nonces) makeWithTick(userID, action string, tick int64) string {
	h := hmac.New(sha256.New, n.key[:])
	_, _ = h.Write([]byte(strconv.FormatInt(tick, 10) + "|" + action + "|" + userID))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:12])
}
