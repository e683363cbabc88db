package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/example/pianostore/internal/utils"
)

// Tokens interprets backend access tokens. With a signing secret the claims
// are verified and trusted; without one they are only decoded, and nothing
// that grants access or shares cached data is derived from them.
type Tokens struct {
	secret []byte
}

// NewTokens returns an interpreter. An empty secret disables verification.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret)}
}

// Verifying reports whether token signatures are checked.
func (t *Tokens) Verifying() bool {
	return t != nil && len(t.secret) > 0
}

// Claims decodes token, checking the signature when a secret is configured.
func (t *Tokens) Claims(token string) (utils.TokenClaims, error) {
	if t.Verifying() {
		return utils.VerifyClaims(token, t.secret)
	}
	return utils.ParseClaims(token)
}

// Expired reports whether token is unusable at now. Tokens that fail to
// decode or verify count as expired.
func (t *Tokens) Expired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	claims, err := t.Claims(token)
	if err != nil {
		return true
	}
	return claims.Expired(now)
}

// Subject scopes per-user caches and realtime channels. A verified subject
// is shared by all of a user's tokens; anything else is scoped to a digest of
// the token itself.
func (t *Tokens) Subject(token string) string {
	if token == "" {
		return "anonymous"
	}
	if claims, err := t.Claims(token); err == nil && claims.Verified && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:16])
}

// Role returns the role claim of a verified token.
func (t *Tokens) Role(token string) (string, bool) {
	claims, err := t.Claims(token)
	if err != nil || !claims.Verified || claims.Role == "" {
		return "", false
	}
	return claims.Role, true
}
