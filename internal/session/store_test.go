package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pianostore/internal/models"
)

type memoryPersister struct {
	creds   Credentials
	saves   int
	cleared bool
}

func (m *memoryPersister) Load() Credentials { return m.creds }
func (m *memoryPersister) Save(c Credentials) {
	m.creds = c
	m.saves++
}
func (m *memoryPersister) Clear() {
	m.creds = Credentials{}
	m.cleared = true
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestHydrateIsExplicitAndOneTime(t *testing.T) {
	p := &memoryPersister{creds: Credentials{Token: "t1", Role: models.RoleAdmin}}
	s := NewStore(p, nil)

	assert.False(t, s.Hydrated())
	assert.False(t, s.IsAuthenticated(), "nothing is read before Hydrate")

	s.Hydrate()
	assert.True(t, s.Hydrated())
	assert.True(t, s.HasElevatedAccess())

	p.creds = Credentials{}
	s.Hydrate()
	assert.True(t, s.IsAuthenticated(), "second Hydrate must not re-read")
}

func TestSetTokenAndRolePersist(t *testing.T) {
	p := &memoryPersister{}
	s := NewStore(p, nil)

	s.SetToken("abc")
	s.SetRole(models.RoleCustomer)

	assert.Equal(t, Credentials{Token: "abc", Role: models.RoleCustomer}, p.creds)
	assert.Equal(t, 2, p.saves)
	assert.True(t, s.IsAuthenticated())
	assert.False(t, s.HasElevatedAccess())
}

func TestClearAuthAlwaysLogsOut(t *testing.T) {
	for _, role := range []models.Role{models.RoleAdmin, models.RoleStaff, models.RoleCustomer, ""} {
		p := &memoryPersister{}
		s := NewStore(p, nil)
		s.SetToken("tok")
		s.SetRole(role)

		s.ClearAuth()

		assert.False(t, s.IsAuthenticated(), role)
		assert.False(t, s.HasElevatedAccess(), role)
		assert.True(t, p.cleared, role)
		assert.Equal(t, Credentials{}, p.creds, role)
	}
}

func TestElevatedAccessNeedsToken(t *testing.T) {
	s := NewStore(nil, nil)
	s.SetRole(models.RoleAdmin)
	assert.False(t, s.HasElevatedAccess())
	s.SetToken("x")
	assert.True(t, s.HasElevatedAccess())
	s.SetRole(models.RoleStaff)
	assert.True(t, s.HasElevatedAccess())
}

func TestExpired(t *testing.T) {
	s := NewStore(nil, nil)
	assert.True(t, s.Expired())

	s.SetToken(token(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()}))
	assert.False(t, s.Expired())

	s.SetToken(token(t, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(-time.Hour).Unix()}))
	assert.True(t, s.Expired())

	s.SetToken("opaque")
	assert.True(t, s.Expired())
}

func TestVerifyingStoreRejectsForeignSignature(t *testing.T) {
	s := NewStore(nil, NewTokens("k"))
	s.SetToken(token(t, jwt.MapClaims{"sub": "1", "role": "admin"}))
	assert.False(t, s.Expired())
	role, ok := s.VerifiedRole()
	require.True(t, ok)
	assert.Equal(t, models.RoleAdmin, role)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "role": "admin"}).SignedString([]byte("other"))
	require.NoError(t, err)
	s.SetToken(forged)
	assert.True(t, s.Expired())
	_, ok = s.VerifiedRole()
	assert.False(t, ok)
}

func TestRoleCookieIsNotVerified(t *testing.T) {
	s := NewStore(nil, NewTokens("k"))
	s.SetToken(token(t, jwt.MapClaims{"sub": "1", "role": "customer"}))
	s.SetRole(models.RoleAdmin)

	assert.True(t, s.HasElevatedAccess())
	role, ok := s.VerifiedRole()
	require.True(t, ok)
	assert.Equal(t, models.RoleCustomer, role)
}
