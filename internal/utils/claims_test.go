package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, jwt.MapClaims{"userId": float64(42), "role": "admin", "exp": exp.Unix()})

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp.Add(time.Second)))
}

func TestParseClaimsPrefersSubject(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "user-7", "userId": "ignored"})

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.Subject)
	assert.False(t, claims.Expired(time.Now()))
}

func TestParseClaimsMalformed(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := ParseClaims(token)
		assert.ErrorIs(t, err, ErrMalformedToken, token)
	}
}

func TestVerifyClaims(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "42", "role": "admin"})

	claims, err := VerifyClaims(token, []byte("backend-secret"))
	require.NoError(t, err)
	assert.True(t, claims.Verified)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "admin", claims.Role)

	_, err = VerifyClaims(token, []byte("other-secret"))
	assert.ErrorIs(t, err, ErrMalformedToken)

	unverified, err := ParseClaims(token)
	require.NoError(t, err)
	assert.False(t, unverified.Verified)
}

func TestVerifyClaimsKeepsExpiredTokensReadable(t *testing.T) {
	exp := time.Now().Add(-time.Hour)
	token := signToken(t, jwt.MapClaims{"sub": "42", "exp": exp.Unix()})

	claims, err := VerifyClaims(token, []byte("backend-secret"))
	require.NoError(t, err)
	assert.True(t, claims.Expired(time.Now()))
}

func TestVerifyClaimsRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "42", "role": "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyClaims(token, []byte("backend-secret"))
	assert.ErrorIs(t, err, ErrMalformedToken)
}
