package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
)

func TestRegistryAcquire(t *testing.T) {
	r := NewRegistry(time.Hour)
	backend := newFakeBackend()

	id, first := r.Acquire("", "user:1", backend)
	require.NotEmpty(t, id)

	sameID, same := r.Acquire(id, "user:1", backend)
	assert.Equal(t, id, sameID)
	assert.Same(t, first, same)

	otherID, other := r.Acquire(id, "user:2", backend)
	assert.NotEqual(t, id, otherID)
	assert.NotSame(t, first, other)
	assert.True(t, first.Done())
	assert.Equal(t, 1, r.Len())
}

func TestRegistryLookupAndRelease(t *testing.T) {
	r := NewRegistry(time.Hour)
	backend := newFakeBackend()

	_, ok := r.Lookup("missing", "user:1", backend)
	assert.False(t, ok)

	id, orch := r.Acquire("", "user:1", backend)
	found, ok := r.Lookup(id, "user:1", backend)
	require.True(t, ok)
	assert.Same(t, orch, found)

	r.Release(id)
	_, ok = r.Lookup(id, "user:1", backend)
	assert.False(t, ok)
	assert.True(t, orch.Done())
}

func TestRegistrySweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(30 * time.Minute)
	r.now = func() time.Time { return now }
	backend := newFakeBackend()

	idle, _ := r.Acquire("", "user:1", backend)
	now = now.Add(20 * time.Minute)
	_, fresh := r.Acquire("", "user:2", backend)
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, r.Sweep())
	_, ok := r.Lookup(idle, "user:1", backend)
	assert.False(t, ok)
	assert.False(t, fresh.Done())
}

func TestCachedCartSharesEntry(t *testing.T) {
	backend := newFakeBackend()
	cache := query.New(time.Minute)
	key := query.Key{"user:1", "cart"}
	o := New(WithCachedCart(backend, cache, key))

	_, err := o.Totals(context.Background())
	require.NoError(t, err)

	cached, ok := query.Peek[models.Cart](cache, key)
	require.True(t, ok)
	assert.Len(t, cached.Items, 2)
}
