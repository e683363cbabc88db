package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
)

// CookieName carries the checkout id between requests.
const CookieName = "checkout_id"

type registryEntry struct {
	owner   string
	orch    *Orchestrator
	touched time.Time
}

// Registry holds one orchestrator per checkout id. An orchestrator is only
// handed back to the session subject that created it.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	idle    time.Duration
	now     func() time.Time
}

// NewRegistry creates a registry whose entries expire after idle.
func NewRegistry(idle time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		idle:    idle,
		now:     time.Now,
	}
}

// Acquire returns the orchestrator for id, or a fresh one under a new id when
// id is unknown, owned by someone else, finished, or expired. The returned
// orchestrator is rebound to backend.
func (r *Registry) Acquire(id, owner string, backend Backend) (string, *Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.entries[id]; ok {
		if entry.owner == owner && !entry.orch.Done() && now.Sub(entry.touched) < r.idle {
			entry.touched = now
			entry.orch.bind(backend)
			return id, entry.orch
		}
		entry.orch.Close()
		delete(r.entries, id)
	}

	id = uuid.NewString()
	orch := New(backend)
	r.entries[id] = &registryEntry{owner: owner, orch: orch, touched: now}
	return id, orch
}

// Lookup returns the live orchestrator for id without creating one.
func (r *Registry) Lookup(id, owner string, backend Backend) (*Orchestrator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || entry.owner != owner || entry.orch.Done() {
		return nil, false
	}
	entry.touched = r.now()
	entry.orch.bind(backend)
	return entry.orch, true
}

// Release closes and forgets the orchestrator for id.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		entry.orch.Close()
		delete(r.entries, id)
	}
}

// Sweep drops idle and finished orchestrators and returns how many went.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, entry := range r.entries {
		if entry.orch.Done() || now.Sub(entry.touched) >= r.idle {
			entry.orch.Close()
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type cachedBackend struct {
	Backend
	cache *query.Cache
	key   query.Key
}

// WithCachedCart reads the cart through cache under key so checkout shares
// the cart view with the rest of the session.
func WithCachedCart(backend Backend, cache *query.Cache, key query.Key) Backend {
	return &cachedBackend{Backend: backend, cache: cache, key: key}
}

func (b *cachedBackend) GetCart(ctx context.Context) (models.Cart, error) {
	return query.Fetch(ctx, b.cache, b.key, b.Backend.GetCart)
}
