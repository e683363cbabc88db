package realtime

import (
	"context"
	"log"
	"sync"
	"time"
)

// Factory builds an unopened channel for token.
type Factory func(token string) *Channel

// Scope groups tokens by the user they belong to.
type Scope interface {
	Subject(token string) string
	Expired(token string, now time.Time) bool
}

// subscription is the channel of one subject and every live token that uses
// it. The channel runs on one of those tokens.
type subscription struct {
	channel *Channel
	tokens  map[string]struct{}
}

// Manager owns at most one channel per session subject. A user signed in on
// several devices shares that channel; it closes when the last token leaves.
type Manager struct {
	ctx     context.Context
	scope   Scope
	factory Factory
	now     func() time.Time

	mu   sync.Mutex
	subs map[string]*subscription
}

// NewManager ties channel lifetimes to ctx.
func NewManager(ctx context.Context, scope Scope, factory Factory) *Manager {
	return &Manager{
		ctx:     ctx,
		scope:   scope,
		factory: factory,
		now:     time.Now,
		subs:    make(map[string]*subscription),
	}
}

// Attach joins token to its subject's channel, opening one if needed. A
// running channel is only replaced once the token it runs on has expired.
func (m *Manager) Attach(token string) (*Channel, error) {
	if token == "" {
		return nil, ErrClosed
	}
	subject := m.scope.Subject(token)
	now := m.now()

	m.mu.Lock()
	sub, ok := m.subs[subject]
	if !ok {
		sub = &subscription{tokens: make(map[string]struct{})}
		m.subs[subject] = sub
	}
	m.pruneLocked(sub, now)
	sub.tokens[token] = struct{}{}

	if sub.channel != nil && (sub.channel.Token() == token || !m.scope.Expired(sub.channel.Token(), now)) {
		ch := sub.channel
		m.mu.Unlock()
		return ch, nil
	}

	stale := sub.channel
	ch := m.factory(token)
	sub.channel = ch
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	if err := ch.Open(m.ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// Detach removes token from its subject. The channel closes when no token is
// left, and moves to another live token when it was running on this one.
func (m *Manager) Detach(token string) {
	if token == "" {
		return
	}
	subject := m.scope.Subject(token)

	m.mu.Lock()
	sub, ok := m.subs[subject]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(sub.tokens, token)
	m.pruneLocked(sub, m.now())

	stale := sub.channel
	var next *Channel
	switch {
	case len(sub.tokens) == 0:
		delete(m.subs, subject)
	case stale != nil && stale.Token() == token:
		for other := range sub.tokens {
			next = m.factory(other)
			break
		}
		sub.channel = next
	default:
		stale = nil
	}
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	if next != nil {
		if err := next.Open(m.ctx); err != nil {
			log.Printf("[Realtime] Reopen for %s failed: %v", subject, err)
		}
	}
}

// pruneLocked drops expired tokens other than the one the channel runs on.
func (m *Manager) pruneLocked(sub *subscription, now time.Time) {
	for token := range sub.tokens {
		if sub.channel != nil && sub.channel.Token() == token {
			continue
		}
		if m.scope.Expired(token, now) {
			delete(sub.tokens, token)
		}
	}
}

// Get returns the running channel token belongs to.
func (m *Manager) Get(token string) (*Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[m.scope.Subject(token)]
	if !ok || sub.channel == nil {
		return nil, false
	}
	if _, member := sub.tokens[token]; !member {
		return nil, false
	}
	return sub.channel, true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// CloseAll tears every channel down.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.channel != nil {
			sub.channel.Close()
		}
	}
}
