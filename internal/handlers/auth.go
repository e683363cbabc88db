package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/middleware"
	"github.com/example/pianostore/internal/models"
	"github.com/example/pianostore/internal/query"
	"github.com/example/pianostore/internal/realtime"
	"github.com/example/pianostore/internal/services"
	"github.com/example/pianostore/internal/session"
	"github.com/example/pianostore/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	cache    *query.Cache
	channels *realtime.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(cache *query.Cache, channels *realtime.Manager) *AuthHandler {
	return &AuthHandler{cache: cache, channels: channels}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// Login validates credentials locally, then signs in against the backend.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	return h.login(c, false)
}

// AdminLogin is Login for the back-office; customer accounts are refused.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	return h.login(c, true)
}

func (h *AuthHandler) login(c *fiber.Ctx, admin bool) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := utils.ValidateCredentials(req.Email, req.Password); err != nil {
		return respondError(c, err)
	}

	client := middleware.GetClient(c)
	creds := services.LoginRequest{Email: req.Email, Password: req.Password}

	var (
		result models.AuthResult
		err    error
	)
	if admin {
		result, err = client.AdminLogin(c.UserContext(), creds)
	} else {
		result, err = client.Login(c.UserContext(), creds)
	}
	if err != nil {
		return respondError(c, err)
	}

	if admin && !result.Role.Elevated() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success":    false,
			"message":    "this account cannot access the admin area",
			"error_code": "forbidden",
		})
	}

	h.startSession(c, result)
	return respondData(c, sessionView(result.User, result.Role, admin))
}

// Register creates an account and signs the visitor in.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	if err := utils.ValidateCredentials(req.Email, req.Password); err != nil {
		return respondError(c, err)
	}
	if req.FullName == "" {
		return respondError(c, &utils.ValidationError{Field: "fullName", Message: "full name is required"})
	}
	if req.Phone != "" {
		if err := utils.ValidatePhone(req.Phone); err != nil {
			return respondError(c, err)
		}
	}

	result, err := middleware.GetClient(c).Register(c.UserContext(), services.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	})
	if err != nil {
		return respondError(c, err)
	}

	h.startSession(c, result)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    sessionView(result.User, result.Role, false),
	})
}

func (h *AuthHandler) startSession(c *fiber.Ctx, result models.AuthResult) {
	store := middleware.GetSession(c)
	previous := store.Subject()

	store.SetToken(result.AccessToken)
	store.SetRole(result.Role)

	h.cache.Invalidate(query.Key{previous})
	h.cache.Invalidate(query.Key{store.Subject()})

	if h.channels != nil {
		if _, err := h.channels.Attach(result.AccessToken); err != nil {
			log.Printf("[Auth] Realtime attach failed: %v", err)
		}
	}
}

// Logout revokes the token, wipes cookies and cached data, and points the
// visitor at the login view.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	store := middleware.GetSession(c)
	subject := store.Subject()

	if store.IsAuthenticated() {
		if err := middleware.GetClient(c).Logout(c.UserContext()); err != nil {
			log.Printf("[Auth] Backend logout failed: %v", err)
		}
	}

	middleware.Logout(store, h.channels)
	h.cache.Invalidate(query.Key{subject})

	return c.JSON(fiber.Map{"success": true, "redirect": session.LoginPath})
}

// Session reports the visitor's auth state.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	store := middleware.GetSession(c)
	return respondData(c, fiber.Map{
		"authenticated": store.IsAuthenticated(),
		"role":          store.Role(),
		"elevated":      store.HasElevatedAccess(),
		"hydrated":      store.Hydrated(),
	})
}

func sessionView(user models.Profile, role models.Role, admin bool) fiber.Map {
	view := fiber.Map{
		"user":     user,
		"role":     role,
		"elevated": role.Elevated(),
		"redirect": "/",
	}
	if admin {
		view["redirect"] = "/admin"
	}
	return view
}
