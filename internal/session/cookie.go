package session

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/models"
)

// CookieOptions configures the auth cookies.
type CookieOptions struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// CookiePersister keeps credentials in the accessToken and userRole cookies
// of one request/response pair.
type CookiePersister struct {
	c    *fiber.Ctx
	opts CookieOptions
}

func NewCookiePersister(c *fiber.Ctx, opts CookieOptions) *CookiePersister {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7 * 24 * time.Hour
	}
	return &CookiePersister{c: c, opts: opts}
}

func (p *CookiePersister) Load() Credentials {
	return Credentials{
		Token: p.c.Cookies(TokenCookie),
		Role:  models.Role(p.c.Cookies(RoleCookie)),
	}
}

func (p *CookiePersister) Save(creds Credentials) {
	p.set(TokenCookie, creds.Token)
	p.set(RoleCookie, string(creds.Role))
}

func (p *CookiePersister) Clear() {
	for _, name := range []string{TokenCookie, RoleCookie} {
		p.c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   p.opts.Domain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   p.opts.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}

func (p *CookiePersister) set(name, value string) {
	if value == "" {
		return
	}
	p.c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.opts.Domain,
		Expires:  time.Now().Add(p.opts.MaxAge),
		Secure:   p.opts.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
