// Package session holds the visitor's authentication state. Fields in memory
// are the source of truth; persistence is an explicit side effect of each
// mutation, and loading from persisted storage happens once in Hydrate.
package session

import (
	"sync"
	"time"

	"github.com/example/pianostore/internal/models"
)

const (
	TokenCookie = "accessToken"
	RoleCookie  = "userRole"

	LoginPath      = "/login"
	AdminLoginPath = "/admin/login"
)

// Credentials is what gets persisted between requests.
type Credentials struct {
	Token string
	Role  models.Role
}

// Persister stores credentials outside the process, e.g. in cookies.
type Persister interface {
	Load() Credentials
	Save(Credentials)
	Clear()
}

// Store is the session state for one visitor.
type Store struct {
	mu        sync.RWMutex
	creds     Credentials
	hydrated  bool
	persister Persister
	tokens    *Tokens
	now       func() time.Time
}

// NewStore returns an empty, not yet hydrated store. tokens may be nil, in
// which case claims are decoded but never trusted.
func NewStore(p Persister, tokens *Tokens) *Store {
	return &Store{persister: p, tokens: tokens, now: time.Now}
}

// Hydrate loads persisted credentials once. Later calls are no-ops so an
// in-memory change is never overwritten by a stale persisted copy.
func (s *Store) Hydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hydrated {
		return
	}
	if s.persister != nil {
		s.creds = s.persister.Load()
	}
	s.hydrated = true
}

// Hydrated reports whether role-dependent output can be rendered.
func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// SetToken stores the access token and persists it.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds.Token = token
	s.hydrated = true
	s.persistLocked()
}

// SetRole stores the role and persists it.
func (s *Store) SetRole(role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds.Role = role
	s.hydrated = true
	s.persistLocked()
}

// ClearAuth wipes memory and persisted state. Callers send the visitor to a
// login view afterwards.
func (s *Store) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = Credentials{}
	s.hydrated = true
	if s.persister != nil {
		s.persister.Clear()
	}
}

func (s *Store) persistLocked() {
	if s.persister != nil {
		s.persister.Save(s.creds)
	}
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token
}

func (s *Store) Role() models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Role
}

// IsAuthenticated reports whether a token is present.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// HasElevatedAccess is token present AND role in {admin, staff}. The role is
// the persisted one, so this only decides what to render; route guards use
// VerifiedRole.
func (s *Store) HasElevatedAccess() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token != "" && s.creds.Role.Elevated()
}

// VerifiedRole returns the role claim of a signature-checked token.
func (s *Store) VerifiedRole() (models.Role, bool) {
	token := s.Token()
	if token == "" {
		return "", false
	}
	role, ok := s.tokens.Role(token)
	return models.Role(role), ok
}

// Expired reports whether the token carries an expiry in the past. Tokens the
// gateway cannot decode or verify are treated as expired.
func (s *Store) Expired() bool {
	return s.tokens.Expired(s.Token(), s.now())
}

// Subject scopes per-user caches.
func (s *Store) Subject() string {
	return s.tokens.Subject(s.Token())
}
