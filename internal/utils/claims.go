package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is what the gateway reads from a backend access token. Only
// claims with Verified set came from a token whose signature was checked.
type TokenClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
	Verified  bool
}

type accessClaims struct {
	UserID any    `json:"userId"`
	ID     any    `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

var ErrMalformedToken = errors.New("malformed access token")

// ParseClaims decodes an access token without verifying its signature.
func ParseClaims(token string) (TokenClaims, error) {
	if token == "" {
		return TokenClaims{}, ErrMalformedToken
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenClaims{}, errors.Join(ErrMalformedToken, err)
	}
	return claims.toTokenClaims(false), nil
}

// VerifyClaims validates the HMAC signature with secret and returns the
// claims. Expiry is left to TokenClaims.Expired.
func VerifyClaims(token string, secret []byte) (TokenClaims, error) {
	if token == "" {
		return TokenClaims{}, ErrMalformedToken
	}

	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithoutClaimsValidation())
	if err != nil {
		return TokenClaims{}, errors.Join(ErrMalformedToken, err)
	}
	if !parsed.Valid {
		return TokenClaims{}, ErrMalformedToken
	}
	return claims.toTokenClaims(true), nil
}

func (c accessClaims) toTokenClaims(verified bool) TokenClaims {
	out := TokenClaims{Subject: c.Subject, Role: c.Role, Verified: verified}
	if out.Subject == "" {
		out.Subject = stringify(c.UserID)
	}
	if out.Subject == "" {
		out.Subject = stringify(c.ID)
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

// Expired reports whether the claims carry an expiry that has passed.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	}
	return ""
}
