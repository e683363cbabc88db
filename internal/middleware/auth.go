package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/session"
)

// RequireAuth rejects requests without a session token.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		store := GetSession(c)
		if !store.IsAuthenticated() || store.Expired() {
			store.ClearAuth()
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success":    false,
				"message":    "please log in to continue",
				"error_code": "unauthorized",
				"redirect":   session.LoginPath,
			})
		}
		return c.Next()
	}
}

// RequireElevated guards admin API routes: token valid and not expired, role
// admin or staff. Anything else clears the cookies.
func RequireElevated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		store := GetSession(c)
		if !store.IsAuthenticated() || store.Expired() {
			return denyElevated(c, fiber.StatusUnauthorized)
		}

		ok, err := elevated(c)
		if err != nil {
			return err
		}
		if !ok {
			return denyElevated(c, fiber.StatusForbidden)
		}
		return c.Next()
	}
}

func denyElevated(c *fiber.Ctx, status int) error {
	GetSession(c).ClearAuth()
	return c.Status(status).JSON(fiber.Map{
		"success":    false,
		"message":    "admin access required",
		"error_code": "forbidden",
		"redirect":   session.AdminLoginPath,
	})
}

// AdminGate protects the admin pages under /admin. The login page itself
// stays reachable; every other path redirects there and clears stale cookies.
func AdminGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == session.AdminLoginPath {
			return c.Next()
		}

		store := GetSession(c)
		if store.IsAuthenticated() && !store.Expired() {
			ok, err := elevated(c)
			if err != nil {
				return err
			}
			if ok {
				return c.Next()
			}
		}

		store.ClearAuth()
		return c.Redirect(session.AdminLoginPath, fiber.StatusFound)
	}
}

var errRoleUnknown = fiber.NewError(fiber.StatusServiceUnavailable, "cannot confirm admin access right now")

// elevated decides back-office access for a live token. The role cookie is
// never consulted: a verified role claim decides, otherwise the backend's
// view of the profile does. The persisted role is synced to the answer.
func elevated(c *fiber.Ctx) (bool, error) {
	store := GetSession(c)

	role, ok := store.VerifiedRole()
	if !ok {
		client := GetClient(c)
		if client == nil {
			return false, nil
		}
		profile, err := client.GetProfile(c.UserContext())
		if err != nil {
			var apiErr *services.APIError
			if errors.As(err, &apiErr) && apiErr.Status < fiber.StatusInternalServerError {
				return false, nil
			}
			log.Printf("[Auth] Role lookup failed: %v", err)
			return false, errRoleUnknown
		}
		role = profile.Role
	}

	if store.Role() != role {
		store.SetRole(role)
	}
	return role.Elevated(), nil
}
