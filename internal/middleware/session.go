package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/realtime"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/session"
)

const (
	sessionContextKey = "session"
	clientContextKey  = "backendClient"
)

// SessionConfig wires the per-request session.
type SessionConfig struct {
	Cookies  session.CookieOptions
	Tokens   *session.Tokens
	Backend  *services.Client
	Channels *realtime.Manager
}

// Session hydrates the auth state from cookies and stores it, together with a
// backend client carrying the visitor's token, in the request context. A 401
// from the backend tears the session down.
func Session(cfg SessionConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		store := session.NewStore(session.NewCookiePersister(c, cfg.Cookies), cfg.Tokens)
		store.Hydrate()

		token := store.Token()
		client := cfg.Backend.WithToken(token).OnUnauthorized(func() {
			Logout(store, cfg.Channels)
		})

		if token != "" && cfg.Channels != nil && !store.Expired() {
			if _, err := cfg.Channels.Attach(token); err != nil {
				log.Printf("[Realtime] Attach failed for %s: %v", store.Subject(), err)
			}
		}

		c.Locals(sessionContextKey, store)
		c.Locals(clientContextKey, client)
		return c.Next()
	}
}

// Logout clears the session and closes its realtime channel.
func Logout(store *session.Store, channels *realtime.Manager) {
	token := store.Token()
	store.ClearAuth()
	if channels != nil {
		channels.Detach(token)
	}
}

// GetSession returns the request's session store.
func GetSession(c *fiber.Ctx) *session.Store {
	if store, ok := c.Locals(sessionContextKey).(*session.Store); ok {
		return store
	}
	return session.NewStore(nil, nil)
}

// GetClient returns the backend client scoped to the request's session.
func GetClient(c *fiber.Ctx) *services.Client {
	if client, ok := c.Locals(clientContextKey).(*services.Client); ok {
		return client
	}
	return nil
}
