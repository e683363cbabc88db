package query

import "context"

// Mutation describes a write: its identity for the re-entrance guard, the
// reads it invalidates, and the caller's callbacks.
type Mutation[Out any] struct {
	Key         Key
	Invalidates []Key
	OnSuccess   func(Out)
	OnError     func(error)
}

// Mutate runs fn unless a mutation with the same key is pending. On success
// the declared keys are invalidated before OnSuccess runs, so the callback
// and every later read observe post-write state.
func Mutate[Out any](ctx context.Context, c *Cache, m Mutation[Out], fn func(context.Context) (Out, error)) (Out, error) {
	var zero Out

	if !c.begin(m.Key) {
		if m.OnError != nil {
			m.OnError(ErrPending)
		}
		return zero, ErrPending
	}

	out, err := fn(ctx)
	if err == nil {
		for _, key := range m.Invalidates {
			c.Invalidate(key)
		}
	}
	c.end(m.Key)

	if err != nil {
		if m.OnError != nil {
			m.OnError(err)
		}
		return zero, err
	}
	if m.OnSuccess != nil {
		m.OnSuccess(out)
	}
	return out, nil
}

// IsPending reports whether a mutation with key is running.
func (c *Cache) IsPending(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[mutationID(key)]
	return ok && e.pending
}

func (c *Cache) begin(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := mutationID(key)
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key{"~mutation"}, key...)}
		c.entries[id] = e
	}
	e.accessedAt = c.now()
	if e.pending {
		return false
	}
	e.pending = true
	return true
}

func (c *Cache) end(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[mutationID(key)]; ok {
		e.pending = false
	}
}

func mutationID(key Key) string {
	return "~mutation/" + key.String()
}
